package cryptox

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Decrypter opens field values with a fixed key. A Decrypter built from an
// empty key passes values through unchanged.
type Decrypter struct {
	signing    []byte
	encryption []byte
	keyErr     error
	enabled    bool
}

// NewDecrypter decodes keyB64 once. A malformed key is not reported here:
// it surfaces as a decryption error on every Open call, so batch callers can
// apply their per-record policy.
func NewDecrypter(keyB64 string) *Decrypter {
	if keyB64 == "" {
		return &Decrypter{}
	}
	signing, encryption, err := DecodeKey(keyB64)
	return &Decrypter{signing: signing, encryption: encryption, keyErr: err, enabled: true}
}

// Enabled reports whether values are decrypted.
func (d *Decrypter) Enabled() bool { return d != nil && d.enabled }

// Open returns the plaintext of value.
func (d *Decrypter) Open(value string) (string, error) {
	if !d.Enabled() {
		return value, nil
	}
	if d.keyErr != nil {
		return "", d.keyErr
	}
	return decryptWithKeys(value, d.signing, d.encryption)
}

// Fingerprint returns a short blake2b digest of the decoded key, suitable for
// showing which key is configured without revealing it. Invalid keys yield "".
func Fingerprint(keyB64 string) string {
	raw, err := decodeBase64(keyB64)
	if err != nil || len(raw) != keySize {
		return ""
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}
