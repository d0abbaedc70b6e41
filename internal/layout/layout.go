// Package layout はDRM記述子から画像ストリップの並び順を復元する。
package layout

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"page-drm-service/internal/codec"
	"page-drm-service/internal/domain"
)

// Magic はDRM記述子の先頭に必須のマーカー。
const Magic = "#v4|"

// xorKey は記述子の難読化に使う固定鍵（ASCII "3141592653589793"）。秘密ではない。
var xorKey = [16]byte{51, 49, 52, 49, 53, 57, 50, 54, 53, 51, 53, 56, 57, 55, 57, 51}

var newlineStripper = strings.NewReplacer("\n", "", "\r", "")

// DecodeRowLayout はDRM記述子をデコードし、積み上げ順のRowBlock列を返す。
//
// 2要素に分割できないフィールドや、数字で始まらない要素を含むフィールドは読み飛ばす。
// 数字で始まるのに32bit整数として解釈できない要素はエラーとする。
func DecodeRowLayout(descriptorText string) ([]domain.RowBlock, error) {
	cleaned := strings.TrimSpace(newlineStripper.Replace(descriptorText))

	decoded, err := codec.DecodeBase64(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decoding DRM data: %w", err)
	}
	plain := codec.XORWithRepeatingKey(decoded, xorKey[:])
	if !utf8.Valid(plain) {
		return nil, fmt.Errorf("%w: DRM data is not valid UTF-8", domain.ErrMalformedEncoding)
	}

	text := string(plain)
	if !strings.HasPrefix(text, Magic) {
		return nil, domain.ErrBadMagic
	}

	var blocks []domain.RowBlock
	for i, field := range strings.Split(text[len(Magic):], "|") {
		values := strings.Split(field, "-")
		if len(values) != 2 || !startsWithDigit(values[0]) || !startsWithDigit(values[1]) {
			continue
		}
		offset, err := strconv.ParseInt(values[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d %q: offset", domain.ErrIntegerParse, i, field)
		}
		height, err := strconv.ParseInt(values[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d %q: height", domain.ErrIntegerParse, i, field)
		}
		blocks = append(blocks, domain.RowBlock{Offset: int(offset), Height: int(height)})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: DRM data has no row blocks", domain.ErrTruncatedInput)
	}
	return blocks, nil
}

// EncodeRowLayout はRowBlock列をDRM記述子にエンコードする。DecodeRowLayoutの逆変換。
// 負の値は区切り文字と衝突するため往復できない。
func EncodeRowLayout(blocks []domain.RowBlock) string {
	var sb strings.Builder
	sb.WriteString(Magic)
	for i, b := range blocks {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(strconv.Itoa(b.Offset))
		sb.WriteByte('-')
		sb.WriteString(strconv.Itoa(b.Height))
	}
	return codec.EncodeBase64(codec.XORWithRepeatingKey([]byte(sb.String()), xorKey[:]))
}

// Regions はRowBlockごとの転送矩形を返す。SYは元画像上を上から順に進むカーソル。
func Regions(blocks []domain.RowBlock) []domain.Region {
	regions := make([]domain.Region, len(blocks))
	cursor := 0
	for i, b := range blocks {
		regions[i] = domain.Region{
			SX:     0,
			SY:     cursor,
			DX:     0,
			DY:     b.Offset,
			Width:  0,
			Height: b.Height,
		}
		cursor += b.Height
	}
	return regions
}

func startsWithDigit(s string) bool {
	return s != "" && '0' <= s[0] && s[0] <= '9'
}
