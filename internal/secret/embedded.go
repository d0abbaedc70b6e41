package secret

// shiftKey は転送時のバイトシフト量で、マスター鍵のローテーション量も兼ねる（8の剰余で5ビット）。
const shiftKey byte = 0x2d

// obfuscatedMasterKey はマスター鍵を shiftKey で左ローテーションした値。
var obfuscatedMasterKey = []byte{
	0x11, 0x0a, 0xbf, 0x5d, 0x76, 0x30, 0x11, 0x74,
	0x3d, 0x6b, 0xa3, 0x13, 0x47, 0x1b, 0x04, 0x61,
	0xca, 0x90, 0x97, 0xa2, 0xa5, 0x42, 0x91, 0xf3,
	0xea, 0xbb, 0xaf, 0xb4, 0xc9, 0x7a, 0x83, 0xef,
}

var defaultStore = NewStore(obfuscatedMasterKey, shiftKey)

// Default はプロセス全体で共有するStoreを返す。
func Default() *Store {
	return defaultStore
}

// ShiftKey は埋め込まれたシフト量を返す。
func ShiftKey() byte {
	return shiftKey
}
