// Package secret はバイナリに埋め込まれた難読化済みマスター鍵を保持する。
//
// マスター鍵はバイトローテーションで隠しているだけで、バイナリを解析できる相手には無力である。
// これは難読化であり、機密性を提供するものではない。
package secret

import (
	"fmt"
	"sync"
	"sync/atomic"

	"page-drm-service/internal/codec"
)

// MasterKeySize はマスター鍵のバイト長（AES-256）。
const MasterKeySize = 32

// Store は難読化された定数から一度だけマスター鍵を復元して保持する。
type Store struct {
	master       func() *[MasterKeySize]byte
	computations atomic.Int64
}

// NewStore は新しいStoreを生成する。復元は初回のMasterSecret呼び出しまで遅延する。
func NewStore(obfuscated []byte, shift byte) *Store {
	s := &Store{}
	s.master = sync.OnceValue(func() *[MasterKeySize]byte {
		s.computations.Add(1)
		if len(obfuscated) != MasterKeySize {
			panic(fmt.Sprintf("secret: obfuscated master key must be %d bytes, got %d", MasterKeySize, len(obfuscated)))
		}
		var master [MasterKeySize]byte
		for i, b := range obfuscated {
			master[i] = codec.RotateByteRight(b, uint(shift))
		}
		return &master
	})
	return s
}

// MasterSecret は復元済みのマスター鍵を返す。
// 定数が32バイトでない場合は設定の不備としてpanicし、以降の呼び出しも同じ値でpanicし続ける。
func (s *Store) MasterSecret() *[MasterKeySize]byte {
	return s.master()
}

// Computations は復元処理が実行された回数を返す。
func (s *Store) Computations() int64 {
	return s.computations.Load()
}

// Obfuscate は鍵をStoreが復元できる形に変換する。埋め込み定数の生成とテストに使う。
func Obfuscate(key []byte, shift byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = codec.RotateByteLeft(b, uint(shift))
	}
	return out
}
