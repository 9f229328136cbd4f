// Package crypto implements the symmetric payload envelope shared with the
// payment gateway: AES-256-GCM, base64(nonce || ciphertext || tag).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"

	topupErrors "topup-service/internal/errors"
)

const (
	// KeyHexLength 密钥长度（64 个十六进制字符，即 32 字节）
	KeyHexLength = 64
	// NonceSize GCM 随机数长度
	NonceSize = 12
	// TagSize GCM 认证标签长度
	TagSize = 16
)

// ParseKey 校验并解析 64 位十六进制密钥
func ParseKey(secretKey string) ([]byte, error) {
	if len(secretKey) != KeyHexLength {
		return nil, topupErrors.ErrorConfiguration("secret key must be %d hex characters", KeyHexLength)
	}
	key, err := hex.DecodeString(secretKey)
	if err != nil {
		return nil, topupErrors.ErrorConfiguration("secret key is not valid hex")
	}
	return key, nil
}

func newGCM(secretKey string) (cipher.AEAD, error) {
	key, err := ParseKey(secretKey)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, topupErrors.ErrorConfiguration("init cipher").WithCause(err)
	}
	// 标准 12 字节 nonce、16 字节 tag
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, topupErrors.ErrorConfiguration("init gcm").WithCause(err)
	}
	return gcm, nil
}

// Encrypt 将 payload 序列化为 JSON 后加密，返回 base64 字符串
func Encrypt(payload interface{}, secretKey string) (string, error) {
	gcm, err := newGCM(secretKey)
	if err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", topupErrors.ErrorInvalidArgument("payload is not serializable").WithCause(err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", topupErrors.ErrorConfiguration("read nonce").WithCause(err)
	}
	// Seal 输出 ciphertext||tag，追加到 nonce 之后
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open 解密 base64 密文，返回原始 JSON 字节
func Open(blob, secretKey string) ([]byte, error) {
	gcm, err := newGCM(secretKey)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, topupErrors.ErrorDecryption("payload is not valid base64")
	}
	if len(raw) < NonceSize+TagSize {
		return nil, topupErrors.ErrorDecryption("payload too short")
	}
	nonce := raw[:NonceSize]
	sealed := raw[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, topupErrors.ErrorDecryption("payload authentication failed")
	}
	return plaintext, nil
}

// Decrypt 解密并反序列化到 v
func Decrypt(blob, secretKey string, v interface{}) error {
	plaintext, err := Open(blob, secretKey)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return topupErrors.ErrorDecryption("payload is not valid json")
	}
	return nil
}

// DecryptMap 解密为通用 JSON 对象
func DecryptMap(blob, secretKey string) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := Decrypt(blob, secretKey, &out); err != nil {
		return nil, err
	}
	return out, nil
}
