// Package cryptox implements the authenticated token format used by the
// ActivityTracker agent to protect per-record fields.
//
// Tokens follow the Fernet layout:
//
//	version (1) | timestamp (8) | iv (16) | ciphertext (n*16) | hmac (32)
//
// The HMAC-SHA256 covers every byte before it and is keyed with the first
// half of the 32-byte key; AES-128-CBC uses the second half. Values stored
// in the activity database are base64 encoded twice: the token itself is
// URL-safe base64 and the agent base64-encodes that text once more.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/shared"
)

const (
	// Version is the only supported token version byte.
	Version byte = 0x80

	keySize       = 32
	halfKeySize   = 16
	timestampSize = 8
	ivOffset      = 1 + timestampSize
	ivSize        = aes.BlockSize
	headerSize    = ivOffset + ivSize
	macSize       = sha256.Size
)

var (
	errBadKey     = errors.New("key must decode to 32 bytes")
	errShortToken = errors.New("token too short")
	errBadVersion = errors.New("unsupported token version")
	errBadMAC     = errors.New("HMAC verification failed")
	errBadBlocks  = errors.New("ciphertext is not a whole number of blocks")
	errBadPadding = errors.New("invalid padding")
)

// Decrypt opens a base64-of-base64 token with the base64 key and returns
// the plaintext.
//
// The HMAC is verified in constant time before any ciphertext byte is
// decrypted. The timestamp field is carried but not checked: tokens have
// no TTL here.
//
// Every failure wraps common.ErrDecryption:
//   - outer or inner base64 decoding fails,
//   - the key is not 32 bytes,
//   - the version byte is not 0x80,
//   - the HMAC does not match,
//   - the ciphertext or its PKCS#7 padding is malformed.
func Decrypt(envelopeB64, keyB64 string) (string, error) {
	signing, encryption, err := DecodeKey(keyB64)
	if err != nil {
		return "", err
	}
	defer shared.WipeByteArray(signing)
	defer shared.WipeByteArray(encryption)

	return decryptWithKeys(envelopeB64, signing, encryption)
}

// DecodeKey splits a base64 key into its signing and encryption halves.
// Both standard and URL-safe alphabets are accepted.
func DecodeKey(keyB64 string) (signing, encryption []byte, err error) {
	raw, err := decodeBase64(keyB64)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: key: %v", common.ErrDecryption, err)
	}
	if len(raw) != keySize {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrDecryption, errBadKey)
	}
	return raw[:halfKeySize], raw[halfKeySize:], nil
}

func decryptWithKeys(envelopeB64 string, signing, encryption []byte) (string, error) {
	inner, err := decodeBase64(envelopeB64)
	if err != nil {
		return "", fmt.Errorf("%w: outer base64: %v", common.ErrDecryption, err)
	}
	token, err := decodeBase64(string(inner))
	if err != nil {
		return "", fmt.Errorf("%w: inner base64: %v", common.ErrDecryption, err)
	}

	if len(token) < headerSize+macSize {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, errShortToken)
	}
	if token[0] != Version {
		return "", fmt.Errorf("%w: %v 0x%02x", common.ErrDecryption, errBadVersion, token[0])
	}

	macStart := len(token) - macSize
	mac := hmac.New(sha256.New, signing)
	mac.Write(token[:macStart])
	if !hmac.Equal(mac.Sum(nil), token[macStart:]) {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, errBadMAC)
	}

	iv := token[ivOffset:headerSize]
	ciphertext := token[headerSize:macStart]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, errBadBlocks)
	}

	block, err := aes.NewCipher(encryption)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, err = unpad(plain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return string(plain), nil
}

// Encrypt is the reference encoder: it seals plaintext with a random IV and
// the given timestamp and returns the doubly base64-encoded token, the form
// the agent stores in the database.
func Encrypt(plaintext, keyB64 string, now time.Time) (string, error) {
	return encryptWithIV(plaintext, keyB64, now, shared.GenerateRandByteArray(ivSize))
}

func encryptWithIV(plaintext, keyB64 string, now time.Time, iv []byte) (string, error) {
	signing, encryption, err := DecodeKey(keyB64)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(encryption)
	if err != nil {
		return "", err
	}

	padded := pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	token := make([]byte, 0, headerSize+len(ciphertext)+macSize)
	token = append(token, Version)
	token = binary.BigEndian.AppendUint64(token, uint64(now.Unix()))
	token = append(token, iv...)
	token = append(token, ciphertext...)

	mac := hmac.New(sha256.New, signing)
	mac.Write(token)
	token = mac.Sum(token)

	inner := base64.URLEncoding.EncodeToString(token)
	return base64.StdEncoding.EncodeToString([]byte(inner)), nil
}

// GenerateKey returns a new random key in URL-safe base64.
func GenerateKey() string {
	return base64.URLEncoding.EncodeToString(shared.GenerateRandByteArray(keySize))
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}

// decodeBase64 accepts padded or unpadded input in either alphabet.
func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
