package domain

import "errors"

var (
	// ErrMalformedEncoding はbase64のアルファベット外の文字、またはデコード後のUTF-8が不正な場合のエラー。
	ErrMalformedEncoding = errors.New("malformed encoding")

	// ErrTruncatedInput は入力が最小長に満たない場合、またはレイアウトのフィールドが空の場合のエラー。
	ErrTruncatedInput = errors.New("truncated input")

	// ErrAuthenticationFailure はAES-GCMの認証タグ検証に失敗した場合のエラー。
	// 改ざんと破損は区別しない。
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrInvalidKeyMaterial はアンラップした鍵が32バイトでない場合のエラー。
	ErrInvalidKeyMaterial = errors.New("invalid key material")

	// ErrCipherInit は暗号器の初期化に失敗した場合のエラー。
	ErrCipherInit = errors.New("cipher init failed")

	// ErrBadMagic はDRMデータが #v4| で始まらない場合のエラー。
	ErrBadMagic = errors.New("invalid DRM data: bad magic")

	// ErrIntegerParse はレイアウトのフィールドが数値として解釈できない場合のエラー。
	ErrIntegerParse = errors.New("integer parse failure")

	// ErrLayoutOutOfBounds はストリップが画像の範囲外を指す場合のエラー。
	ErrLayoutOutOfBounds = errors.New("layout out of bounds")

	// ErrInvalidManifest はチャプターマニフェストの形式が不正な場合のエラー。
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrEmptyChapter はマニフェストにページが含まれない場合のエラー。
	ErrEmptyChapter = errors.New("chapter has no pages")

	// ErrChapterNotFound は保存済みのページが存在しない場合のエラー。
	ErrChapterNotFound = errors.New("chapter not found")

	// ErrInvalidChapterID はチャプターIDの形式が不正な場合のエラー。
	ErrInvalidChapterID = errors.New("invalid chapter ID")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
