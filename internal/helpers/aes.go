package helpers

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"strings"
)

const defaultEncryptionKey = "t7KpXw2dMzUohgENrAc9fLqYsB0eJnQi"

// encryptionKey 优先使用环境变量DSYNC_ENCRYPTION_KEY
func encryptionKey() []byte {
	key := os.Getenv("DSYNC_ENCRYPTION_KEY")
	if key == "" {
		key = defaultEncryptionKey
	}
	keyHash := sha256.Sum256([]byte(key))
	return keyHash[:]
}

// Encrypt AES-256-CBC 加密（URL安全），用于连接串落库前加密
func Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(encryptionKey())
	if err != nil {
		return "", err
	}

	// PKCS7 填充
	padding := aes.BlockSize - len(plaintext)%aes.BlockSize
	padtext := append([]byte(plaintext), make([]byte, padding)...)
	for i := 0; i < padding; i++ {
		padtext[len(plaintext)+i] = byte(padding)
	}

	// IV + 密文
	ciphertext := make([]byte, aes.BlockSize+len(padtext))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext[aes.BlockSize:], padtext)

	encoded := base64.StdEncoding.EncodeToString(ciphertext)
	encoded = strings.ReplaceAll(encoded, "+", "-")
	encoded = strings.ReplaceAll(encoded, "/", "_")
	encoded = strings.TrimRight(encoded, "=")

	return encoded, nil
}

// Decrypt AES-256-CBC 解密（URL安全）
func Decrypt(encrypted string) (string, error) {
	encoded := strings.ReplaceAll(encrypted, "-", "+")
	encoded = strings.ReplaceAll(encoded, "_", "/")
	padding := (4 - len(encoded)%4) % 4
	encoded += strings.Repeat("=", padding)

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(encryptionKey())
	if err != nil {
		return "", err
	}

	if len(ciphertext) < aes.BlockSize {
		return "", errors.New("ciphertext too short")
	}

	iv := ciphertext[:aes.BlockSize]
	ciphertext = ciphertext[aes.BlockSize:]

	if len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a multiple of the block size")
	}

	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(ciphertext, ciphertext)

	// 去除PKCS7填充
	paddingLen := int(ciphertext[len(ciphertext)-1])
	if paddingLen > len(ciphertext) || paddingLen > aes.BlockSize {
		return "", errors.New("invalid padding")
	}

	return string(ciphertext[:len(ciphertext)-paddingLen]), nil
}
