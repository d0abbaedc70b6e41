// Package codec は復号パイプラインで共有するバイト変換（base64・XOR・ローテーション・シフト）を提供する。
// いずれも状態を持たない関数で、入力を書き換えず新しいスライスを返す。
package codec

import (
	"encoding/base64"
	"fmt"
	"math/bits"

	"page-drm-service/internal/domain"
)

// DecodeBase64 はbase64文字列をビットアキュムレータ方式でデコードする。
// 改行・タブ・空白はどの位置でも読み飛ばす。'=' はビットを供給せず、
// パディング以降にアルファベットが現れた場合はエラーとする。
func DecodeBase64(text string) ([]byte, error) {
	out := make([]byte, 0, len(text)*3/4+1)
	var acc uint32
	nbits := 0
	padded := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		var v byte
		switch {
		case c >= 'A' && c <= 'Z':
			v = c - 'A'
		case c >= 'a' && c <= 'z':
			v = c - 'a' + 26
		case c >= '0' && c <= '9':
			v = c - '0' + 52
		case c == '+':
			v = 62
		case c == '/':
			v = 63
		case c == '=':
			padded = true
			continue
		case c == '\n', c == '\r', c == '\t', c == ' ':
			continue
		default:
			return nil, fmt.Errorf("%w: invalid base64 byte %#x at offset %d", domain.ErrMalformedEncoding, c, i)
		}
		if padded {
			return nil, fmt.Errorf("%w: base64 data after padding at offset %d", domain.ErrMalformedEncoding, i)
		}

		acc = acc<<6 | uint32(v)
		nbits += 6
		if nbits >= 8 {
			nbits -= 8
			out = append(out, byte(acc>>nbits))
			acc &= 1<<nbits - 1
		}
	}

	return out, nil
}

// EncodeBase64 は標準アルファベット・パディング付きでエンコードする。DecodeBase64の逆変換。
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// XORWithRepeatingKey は data[i] ^ key[i%len(key)] を返す。
// 同じ鍵で2回適用すると元に戻るため、エンコードとデコードの両方に使う。
func XORWithRepeatingKey(data, key []byte) []byte {
	out := make([]byte, len(data))
	if len(key) == 0 {
		copy(out, data)
		return out
	}
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// RotateByteRight は1バイト内で右に循環シフトする。shiftは8の剰余で扱う。
func RotateByteRight(b byte, shift uint) byte {
	return bits.RotateLeft8(b, -int(shift%8))
}

// RotateByteLeft は1バイト内で左に循環シフトする。
func RotateByteLeft(b byte, shift uint) byte {
	return bits.RotateLeft8(b, int(shift%8))
}

// SubtractShift は各バイトからshiftを引く（256の剰余）。
func SubtractShift(buf []byte, shift byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	if shift == 0 {
		return out
	}
	for i := range out {
		out[i] -= shift
	}
	return out
}

// AddShift は各バイトにshiftを足す。SubtractShiftの逆変換。
func AddShift(buf []byte, shift byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	if shift == 0 {
		return out
	}
	for i := range out {
		out[i] += shift
	}
	return out
}
