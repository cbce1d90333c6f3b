// Package session publishes the authenticated state of one client and
// decides where navigation goes.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-agent-chat/identity"
	"github.com/rs/zerolog/log"
)

// ErrIncompleteSession is returned by Refresh when the provider session
// lacks a user id or an email.
var ErrIncompleteSession = errors.New("session: provider session is missing user id or email")

type Route string

const (
	RouteChat  Route = "/chat"
	RouteLogin Route = "/login"
)

// Session is the published state. The zero value is unauthenticated.
type Session struct {
	UserID          string `json:"userId,omitempty"`
	Email           string `json:"email,omitempty"`
	DisplayName     string `json:"displayName,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Clearer discards pending flow state on sign out.
type Clearer interface {
	ClearPending(ctx context.Context) error
}

type Publisher struct {
	gateway identity.Gateway

	mu          sync.RWMutex
	current     Session
	initialized bool
	closed      bool
	subs        map[int]chan Session
	nextSub     int
	clearers    []Clearer
}

func NewPublisher(gateway identity.Gateway) *Publisher {
	return &Publisher{
		gateway: gateway,
		subs:    make(map[int]chan Session),
	}
}

// AddClearer registers state to discard on sign out.
func (p *Publisher) AddClearer(c Clearer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearers = append(p.clearers, c)
}

// Init looks up the provider session once. Any failure, "no session"
// included, leaves the client unauthenticated and is not an error.
func (p *Publisher) Init(ctx context.Context) Session {
	if err := p.Refresh(ctx); err != nil {
		log.Debug().Err(err).Msg("session: no current session at start")
	}
	p.mu.Lock()
	p.initialized = true
	s := p.current
	p.mu.Unlock()
	return s
}

// Initialized reports whether Init has run.
func (p *Publisher) Initialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

// Refresh materializes the Session from the provider. A session without
// both a user id and an email is never published as authenticated.
func (p *Publisher) Refresh(ctx context.Context) error {
	current, err := p.gateway.GetCurrentSession(ctx)
	if err != nil {
		p.publish(Session{})
		return err
	}
	if current == nil || current.UserID == "" || current.Attributes.Email == "" {
		p.publish(Session{})
		return ErrIncompleteSession
	}

	p.publish(Session{
		UserID:          current.UserID,
		Email:           current.Attributes.Email,
		DisplayName:     current.Attributes.DisplayName(),
		IsAuthenticated: true,
	})
	return nil
}

// SignOut always ends unauthenticated. Provider and clearer failures are
// logged and swallowed.
func (p *Publisher) SignOut(ctx context.Context) {
	if err := p.gateway.SignOut(ctx); err != nil {
		log.Warn().Err(err).Msg("session: provider sign out failed")
	}
	p.publish(Session{})

	p.mu.RLock()
	clearers := append([]Clearer(nil), p.clearers...)
	p.mu.RUnlock()
	for _, c := range clearers {
		if err := c.ClearPending(ctx); err != nil {
			log.Warn().Err(err).Msg("session: failed to clear pending auth state")
		}
	}
}

func (p *Publisher) Current() Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Route is where the navigation layer should send the client.
func (p *Publisher) Route() Route {
	if p.Current().IsAuthenticated {
		return RouteChat
	}
	return RouteLogin
}

// Subscribe returns a channel holding the latest Session. Slow readers only
// ever see the most recent value. The returned func unsubscribes.
func (p *Publisher) Subscribe() (<-chan Session, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Session, 1)
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	ch <- p.current

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if sub, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(sub)
			}
		})
	}
}

// Close ends every subscription.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}

func (p *Publisher) publish(s Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = s
	for _, ch := range p.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
