package audit

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// KeySize is the length of keys produced by GenerateKey.
const KeySize = 32

// ErrEmptyKey is returned when a signer is built without a secret.
var ErrEmptyKey = errors.New("audit: secret key is empty")

// Key is an HMAC secret.
type Key []byte

// GenerateKey returns a fresh random key. Signatures made with it cannot be
// verified by another process unless the key is shared.
func GenerateKey() (Key, error) {
	k := make(Key, KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("audit: generate key: %w", err)
	}
	return k, nil
}

// ParseKey decodes a hex-encoded key.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return nil, ErrEmptyKey
	}
	k, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("audit: parse key: %w", err)
	}
	return k, nil
}

// String returns the hex form of the key.
func (k Key) String() string {
	return hex.EncodeToString(k)
}

// Signer computes and checks HMAC-SHA256 signatures with a fixed key.
// It is safe for concurrent use.
type Signer struct {
	key Key
}

// NewSigner copies key into a new Signer.
func NewSigner(key Key) (*Signer, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return &Signer{key: append(Key(nil), key...)}, nil
}

// SignHash signs the UTF-8 bytes of a hex payload hash.
func (s *Signer) SignHash(hash string) string {
	return s.mac([]byte(hash))
}

// Sign signs context followed by payload.
func (s *Signer) Sign(payload []byte, context string) string {
	return s.mac([]byte(context), payload)
}

// Verify reports whether signature is the hex HMAC of context||payload.
// Malformed signatures yield false.
func (s *Signer) Verify(payload []byte, context string, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want := s.sum([]byte(context), payload)
	return hmac.Equal(want, got)
}

// VerifyRecord reports whether r.Signature matches r.Hash under this key.
func (s *Signer) VerifyRecord(r Record) bool {
	got, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false
	}
	return hmac.Equal(s.sum([]byte(r.Hash)), got)
}

func (s *Signer) mac(parts ...[]byte) string {
	return hex.EncodeToString(s.sum(parts...))
}

func (s *Signer) sum(parts ...[]byte) []byte {
	m := hmac.New(sha256.New, s.key)
	for _, p := range parts {
		m.Write(p)
	}
	return m.Sum(nil)
}
