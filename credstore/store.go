package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const DefaultPendingSSOTTL = time.Hour

// PendingSSO is the in-flight state between SSO initiation and
// verification. Password is system generated and secret.
type PendingSSO struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

// String omits the password.
func (p PendingSSO) String() string {
	return fmt.Sprintf("PendingSSO{Email:%s Username:%s Password:[REDACTED]}", p.Email, p.Username)
}

// Store hands out client-scoped views over a Backend.
type Store struct {
	backend Backend
	ttl     time.Duration
}

func NewStore(backend Backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultPendingSSOTTL
	}
	return &Store{backend: backend, ttl: ttl}
}

// Scope returns the view for one client. At most one PendingSSO exists per
// scope; saving replaces the previous one.
func (s *Store) Scope(clientID string) *Scoped {
	return &Scoped{store: s, key: "sso:" + clientID}
}

type Scoped struct {
	store *Store
	key   string
}

func (s *Scoped) SavePendingSSO(ctx context.Context, pending PendingSSO) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.store.backend.Put(ctx, s.key, data, s.store.ttl)
}

// PendingSSO returns ErrNotFound when nothing is outstanding or it expired.
func (s *Scoped) PendingSSO(ctx context.Context) (*PendingSSO, error) {
	data, err := s.store.backend.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	var pending PendingSSO
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	return &pending, nil
}

func (s *Scoped) ClearPendingSSO(ctx context.Context) error {
	return s.store.backend.Delete(ctx, s.key)
}
