// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"fmt"
	"regexp"
	"time"
)

// RowBlock は並べ替え後の画像における1本の水平ストリップを表す。
// スライス内の順序がそのまま積み上げ順になる。
type RowBlock struct {
	Offset int `json:"offset"`
	Height int `json:"height"`
}

// Region はストリップ1本分の転送矩形を表す。
// SY は元画像上のカーソル位置、Width が0の場合は画像の全幅を意味する。
type Region struct {
	SX     int `json:"sx"`
	SY     int `json:"sy"`
	DX     int `json:"dx"`
	DY     int `json:"dy"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Page は復号済みのページを表す。
type Page struct {
	ID        string
	ChapterID string
	Index     int
	URL       string
	Blocks    []RowBlock
	CreatedAt time.Time
}

// ManifestPage はマニフェスト内の未復号ページを表す。
type ManifestPage struct {
	Order    int
	Path     string // 暗号化された画像パス
	ImageURL string // 平文の画像URL（Pathが空の場合に使用）
	DrmData  string
}

// Manifest はチャプターのページ一覧と、それを復号するためのラップ済み鍵を表す。
type Manifest struct {
	WrappedKey string
	Pages      []ManifestPage
}

var chapterIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateChapterID はチャプターIDが英数字・アンダースコア・ハイフンの1〜64文字であるか検証する。
func ValidateChapterID(id string) error {
	if !chapterIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidChapterID, id)
	}
	return nil
}
