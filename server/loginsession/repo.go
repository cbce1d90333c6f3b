// Package loginsession keeps the identity provider tokens of each signed in
// browser client.
package loginsession

import (
	"context"
	"time"

	"github.com/jrsteele09/go-agent-chat/identity"
)

// DefaultSessionTTL bounds sessions whose tokens carry no expiry.
const DefaultSessionTTL = 12 * time.Hour

type Session struct {
	ClientID  string          `json:"client_id"`
	Tokens    identity.Tokens `json:"tokens"`
	CreatedAt time.Time       `json:"created_at"`
}

// ExpiresAt is when the tokens stop being usable.
func (s Session) ExpiresAt() time.Time {
	if !s.Tokens.Expiry.IsZero() {
		return s.Tokens.Expiry
	}
	return s.CreatedAt.Add(DefaultSessionTTL)
}

// Repo stores one Session per client. Get returns
// internal/errors.ErrSessionNotFound when nothing is held or it expired.
type Repo interface {
	Upsert(ctx context.Context, clientID string, session Session) error
	Get(ctx context.Context, clientID string) (Session, error)
	Delete(ctx context.Context, clientID string) error
}
