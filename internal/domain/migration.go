package domain

import "time"

// MigrationStatus はマイグレーションの適用状態を表す
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration はバイナリに埋め込まれたスキーママイグレーション1件を表す
type Migration struct {
	Version   string // 例: "001"
	Name      string // 例: "create_decoded_pages"
	File      string // 埋め込みFS内のファイル名
	AppliedAt *time.Time
	Status    MigrationStatus
}
