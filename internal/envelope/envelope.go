// Package envelope はラップされたデータ鍵の復元と、その鍵によるペイロードの復号を提供する。
//
// トークンの形式: base64( shift( nonce(12) || ciphertext || tag(16) ) )
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"unicode/utf8"

	"page-drm-service/internal/codec"
	"page-drm-service/internal/domain"
	"page-drm-service/internal/secret"
)

const (
	NonceSize = 12
	TagSize   = 16
	KeySize   = 32 // AES-256
)

// SecretSource はマスター鍵の取得元のインターフェース。
type SecretSource interface {
	MasterSecret() *[secret.MasterKeySize]byte
}

// Decryptor はラップ済み鍵とペイロードの組を復号する。
type Decryptor struct {
	secrets SecretSource
	shift   byte
}

// NewDecryptor は新しいDecryptorを生成する。
func NewDecryptor(secrets SecretSource, shift byte) *Decryptor {
	return &Decryptor{
		secrets: secrets,
		shift:   shift,
	}
}

// NewDefaultDecryptor は埋め込みのマスター鍵とシフト量を使うDecryptorを生成する。
func NewDefaultDecryptor() *Decryptor {
	return NewDecryptor(secret.Default(), secret.ShiftKey())
}

// DecryptWithWrappedKey はデータ鍵をアンラップし、そのデータ鍵でペイロードを復号する。
func (d *Decryptor) DecryptWithWrappedKey(wrappedKeyText, payloadText string) (string, error) {
	key, err := d.UnwrapKey(wrappedKeyText)
	if err != nil {
		return "", err
	}
	return DecryptPayload(payloadText, key, d.shift)
}

// UnwrapKey はマスター鍵でデータ鍵をアンラップする。
func (d *Decryptor) UnwrapKey(wrappedKeyText string) ([]byte, error) {
	return UnwrapKey(wrappedKeyText, d.secrets.MasterSecret(), d.shift)
}

// WrapKey はデータ鍵をマスター鍵でラップする。UnwrapKeyの逆変換。
func (d *Decryptor) WrapKey(key []byte) (string, error) {
	return Seal(key, d.secrets.MasterSecret()[:], d.shift)
}

// Shift は転送シフト量を返す。
func (d *Decryptor) Shift() byte {
	return d.shift
}

// UnwrapKey はラップ済み鍵トークンからデータ鍵を復元する。
// 長さの検証は暗号器の初期化より前に行う。
func UnwrapKey(wrappedKeyText string, master *[secret.MasterKeySize]byte, shift byte) ([]byte, error) {
	decoded, err := codec.DecodeBase64(wrappedKeyText)
	if err != nil {
		return nil, fmt.Errorf("decoding wrapped key: %w", err)
	}
	data := codec.SubtractShift(decoded, shift)
	if len(data) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: wrapped key too short (%d bytes)", domain.ErrTruncatedInput, len(data))
	}

	key, err := open(master[:], data)
	if err != nil {
		return nil, fmt.Errorf("master unwrap failed: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: unwrapped key length is not %d bytes, got %d", domain.ErrInvalidKeyMaterial, KeySize, len(key))
	}
	return key, nil
}

// DecryptPayload はデータ鍵でペイロードトークンを復号し、UTF-8文字列として返す。
func DecryptPayload(payloadText string, key []byte, shift byte) (string, error) {
	decoded, err := codec.DecodeBase64(payloadText)
	if err != nil {
		return "", fmt.Errorf("decoding payload: %w", err)
	}
	data := codec.SubtractShift(decoded, shift)
	if len(data) < NonceSize {
		return "", fmt.Errorf("%w: data too short (%d bytes)", domain.ErrTruncatedInput, len(data))
	}

	plaintext, err := open(key, data)
	if err != nil {
		return "", fmt.Errorf("decrypting payload: %w", err)
	}
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: invalid UTF-8 plaintext", domain.ErrMalformedEncoding)
	}
	return string(plaintext), nil
}

// Seal はplaintextをkeyで暗号化し、シフトとbase64を適用したトークンを返す。
func Seal(plaintext, key []byte, shift byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return codec.EncodeBase64(codec.AddShift(sealed, shift)), nil
}

func open(key, data []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce, ciphertext := data[:NonceSize], data[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// 改ざんと破損は呼び出し側に区別させない
		return nil, domain.ErrAuthenticationFailure
	}
	return plaintext, nil
}

// newGCM はAES-256-GCMの暗号器を生成する。32バイト以外の鍵は受け付けない。
func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", domain.ErrCipherInit, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCipherInit, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCipherInit, err)
	}
	return aead, nil
}
