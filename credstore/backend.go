// Package credstore holds short-lived secrets for in-flight auth flows.
// Values live only until their TTL passes or they are deleted.
package credstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("credstore: not found")
	ErrCorrupt  = errors.New("credstore: value cannot be opened")
)

// Backend is an ephemeral key/value store with per-key expiry.
type Backend interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
