package loginsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-agent-chat/credstore"
	internalErrors "github.com/jrsteele09/go-agent-chat/internal/errors"
)

const keyPrefix = "login:"

// BackendRepo keeps sessions in a credstore.Backend so they can live in
// Redis and be sealed at rest like the other credentials.
type BackendRepo struct {
	backend     credstore.Backend
	nowTimeFunc func() time.Time
}

var _ Repo = (*BackendRepo)(nil)

func NewBackendRepo(backend credstore.Backend) *BackendRepo {
	return &BackendRepo{backend: backend, nowTimeFunc: time.Now}
}

// WithNowTime sets the clock (primarily for testing)
func (r *BackendRepo) WithNowTime(nowFunc func() time.Time) *BackendRepo {
	r.nowTimeFunc = nowFunc
	return r
}

func (r *BackendRepo) Upsert(ctx context.Context, clientID string, session Session) error {
	if clientID == "" {
		return fmt.Errorf("clientID is required")
	}
	session.ClientID = clientID
	ttl := session.ExpiresAt().Sub(r.nowTimeFunc())
	if ttl <= 0 {
		return r.Delete(ctx, clientID)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.backend.Put(ctx, keyPrefix+clientID, data, ttl)
}

func (r *BackendRepo) Get(ctx context.Context, clientID string) (Session, error) {
	if clientID == "" {
		return Session{}, fmt.Errorf("clientID is required")
	}
	data, err := r.backend.Get(ctx, keyPrefix+clientID)
	if errors.Is(err, credstore.ErrNotFound) {
		return Session{}, internalErrors.ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, internalErrors.Wrapf(credstore.ErrCorrupt, "login session %s", clientID)
	}
	return session, nil
}

func (r *BackendRepo) Delete(ctx context.Context, clientID string) error {
	if clientID == "" {
		return fmt.Errorf("clientID is required")
	}
	return r.backend.Delete(ctx, keyPrefix+clientID)
}
