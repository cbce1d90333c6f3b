package loginsession

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/go-agent-chat/identity"
	internalErrors "github.com/jrsteele09/go-agent-chat/internal/errors"
)

// Holder binds a Repo to one client so it can serve as that client's
// identity.TokenHolder.
type Holder struct {
	repo     Repo
	clientID string
}

var _ identity.TokenHolder = (*Holder)(nil)

func NewHolder(repo Repo, clientID string) *Holder {
	return &Holder{repo: repo, clientID: clientID}
}

func (h *Holder) Load(ctx context.Context) (*identity.Tokens, error) {
	session, err := h.repo.Get(ctx, h.clientID)
	if errors.Is(err, internalErrors.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session.Tokens, nil
}

func (h *Holder) Save(ctx context.Context, tokens *identity.Tokens) error {
	return h.repo.Upsert(ctx, h.clientID, Session{
		ClientID:  h.clientID,
		Tokens:    *tokens,
		CreatedAt: time.Now(),
	})
}

func (h *Holder) Clear(ctx context.Context) error {
	return h.repo.Delete(ctx, h.clientID)
}
