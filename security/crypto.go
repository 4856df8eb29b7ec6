package security

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HashAlgorithm is a keyless or keyed content hash, used to fingerprint a
// plugin's entry file across reloads.
type HashAlgorithm interface {
	Hash(data []byte) []byte
	Verify(data []byte, hash []byte) bool
}

// SHA256Hash is a plain, unkeyed SHA-256 fingerprint.
type SHA256Hash struct{}

func (h *SHA256Hash) Hash(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}

func (h *SHA256Hash) Verify(data []byte, hash []byte) bool {
	expected := h.Hash(data)
	return hmac.Equal(expected, hash)
}

// HMACHash is a keyed SHA-256 fingerprint, for audit policies that want to
// detect tampering by a party without the key rather than just any edit.
type HMACHash struct {
	key []byte
}

func NewHMACHash(key string) *HMACHash {
	return &HMACHash{key: []byte(key)}
}

func (h *HMACHash) Hash(data []byte) []byte {
	hasher := hmac.New(sha256.New, h.key)
	hasher.Write(data)
	return hasher.Sum(nil)
}

func (h *HMACHash) Verify(data []byte, hash []byte) bool {
	expected := h.Hash(data)
	return hmac.Equal(expected, hash)
}

// MaskString redacts the middle of a string, for logging identifiers that
// shouldn't appear in full (e.g. a plugin's signing key ID).
func MaskString(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
