// Package migrations はバイナリに埋め込むスキーママイグレーションを提供する。
// ファイル名は {version}_{name}.sql とし、MySQLとSQLiteの両方で実行できるSQLのみを書く。
package migrations

import "embed"

// FS は埋め込まれたマイグレーションファイル。
//
//go:embed *.sql
var FS embed.FS
