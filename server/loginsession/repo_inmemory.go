package loginsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	internalErrors "github.com/jrsteele09/go-agent-chat/internal/errors"
)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu          sync.RWMutex
	sessions    map[string]Session // clientID -> Session
	nowTimeFunc func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory login session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions:    make(map[string]Session),
		nowTimeFunc: time.Now,
	}
}

// WithNowTime sets the clock (primarily for testing)
func (r *InMemoryRepo) WithNowTime(nowFunc func() time.Time) *InMemoryRepo {
	r.nowTimeFunc = nowFunc
	return r
}

// Upsert creates or replaces the client's session
func (r *InMemoryRepo) Upsert(_ context.Context, clientID string, session Session) error {
	if clientID == "" {
		return fmt.Errorf("clientID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session.ClientID = clientID
	r.sessions[clientID] = session
	return nil
}

// Get retrieves the client's session, dropping it once expired
func (r *InMemoryRepo) Get(_ context.Context, clientID string) (Session, error) {
	if clientID == "" {
		return Session{}, fmt.Errorf("clientID is required")
	}

	r.mu.RLock()
	session, ok := r.sessions[clientID]
	r.mu.RUnlock()
	if !ok {
		return Session{}, internalErrors.ErrSessionNotFound
	}

	if !r.nowTimeFunc().Before(session.ExpiresAt()) {
		r.mu.Lock()
		delete(r.sessions, clientID)
		r.mu.Unlock()
		return Session{}, internalErrors.ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a login session
func (r *InMemoryRepo) Delete(_ context.Context, clientID string) error {
	if clientID == "" {
		return fmt.Errorf("clientID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, clientID) // already gone is not an error
	return nil
}

func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
