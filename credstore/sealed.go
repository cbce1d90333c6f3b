package credstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealedBackend encrypts values with XChaCha20-Poly1305 before handing them
// to the wrapped Backend. The key name is bound as additional data so a
// value cannot be replayed under another key.
type SealedBackend struct {
	inner Backend
	key   []byte
}

var _ Backend = (*SealedBackend)(nil)

func NewSealedBackend(inner Backend, key []byte) (*SealedBackend, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credstore: seal key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &SealedBackend{inner: inner, key: append([]byte(nil), key...)}, nil
}

// ParseSealKey decodes a standard base64 key.
func ParseSealKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("credstore: invalid seal key encoding: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credstore: seal key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

func (s *SealedBackend) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("credstore: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, value, []byte(key))
	return s.inner.Put(ctx, key, sealed, ttl)
}

func (s *SealedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCorrupt
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, ErrCorrupt
	}
	return plain, nil
}

func (s *SealedBackend) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
