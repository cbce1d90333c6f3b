// Package identityfake is an in-memory identity.Gateway that records every
// call, for tests of the auth flows and the session publisher.
package identityfake

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-agent-chat/identity"
)

// DefaultCode is the confirmation code accepted unless Code is changed.
const DefaultCode = "123456"

type Call struct {
	Op         string
	Username   string
	Password   string
	Code       string
	Attributes identity.Attributes
}

type account struct {
	id        string
	username  string
	password  string
	attrs     identity.Attributes
	confirmed bool
}

var _ identity.Gateway = (*Gateway)(nil)

type Gateway struct {
	mu       sync.Mutex
	calls    []Call
	accounts map[string]*account
	session  *identity.CurrentSession
	failures map[string]error

	// Code is the confirmation code ConfirmAccount accepts.
	Code string
	// AutoConfirm makes CreateAccount return ConfirmationRequired=false.
	AutoConfirm bool
	// ExpiredCodes makes ConfirmAccount fail with KindCodeExpired.
	ExpiredCodes bool
}

func New() *Gateway {
	return &Gateway{
		accounts: make(map[string]*account),
		failures: make(map[string]error),
		Code:     DefaultCode,
	}
}

// FailWith makes every later call of op return err until cleared with a nil err.
func (g *Gateway) FailWith(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, op)
		return
	}
	g.failures[op] = err
}

// AddUser seeds an account.
func (g *Gateway) AddUser(username, email, name, password string, confirmed bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := uuid.New().String()
	g.accounts[username] = &account{
		id:        id,
		username:  username,
		password:  password,
		attrs:     identity.Attributes{Email: email, Name: name},
		confirmed: confirmed,
	}
	return id
}

// SetSession makes GetCurrentSession return s (nil for no session).
func (g *Gateway) SetSession(s *identity.CurrentSession) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = s
}

func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// CallsFor returns the recorded calls of a single operation.
func (g *Gateway) CallsFor(op string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Confirmed reports whether the account for username is confirmed.
func (g *Gateway) Confirmed(username string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	acc, ok := g.accounts[username]
	return ok && acc.confirmed
}

func (g *Gateway) record(c Call) error {
	g.calls = append(g.calls, c)
	return g.failures[c.Op]
}

func (g *Gateway) CreateAccount(_ context.Context, username, password string, attrs identity.Attributes) (identity.CreateAccountResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(Call{Op: identity.OpCreateAccount, Username: username, Password: password, Attributes: attrs}); err != nil {
		return identity.CreateAccountResult{}, err
	}

	if _, ok := g.accounts[username]; ok {
		return identity.CreateAccountResult{}, identity.NewError(identity.OpCreateAccount, identity.KindUsernameTaken, "", nil)
	}
	if holder := g.byEmail(attrs.Email); holder != nil {
		if holder.confirmed {
			return identity.CreateAccountResult{}, identity.NewError(identity.OpCreateAccount, identity.KindUsernameTaken, "", nil)
		}
		// unconfirmed accounts do not hold their email
		delete(g.accounts, holder.username)
	}

	acc := &account{
		id:        uuid.New().String(),
		username:  username,
		password:  password,
		attrs:     attrs,
		confirmed: g.AutoConfirm,
	}
	g.accounts[username] = acc
	return identity.CreateAccountResult{ConfirmationRequired: !g.AutoConfirm, UserID: acc.id}, nil
}

func (g *Gateway) ConfirmAccount(_ context.Context, username, code string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(Call{Op: identity.OpConfirmAccount, Username: username, Code: code}); err != nil {
		return err
	}

	acc, ok := g.accounts[username]
	if !ok {
		return identity.NewError(identity.OpConfirmAccount, identity.KindUserNotFound, "", nil)
	}
	if acc.confirmed {
		return identity.NewError(identity.OpConfirmAccount, identity.KindNotAuthorized, "", nil)
	}
	if g.ExpiredCodes {
		return identity.NewError(identity.OpConfirmAccount, identity.KindCodeExpired, "", nil)
	}
	if code != g.Code {
		return identity.NewError(identity.OpConfirmAccount, identity.KindCodeMismatch, "", nil)
	}
	acc.confirmed = true
	return nil
}

func (g *Gateway) SignIn(_ context.Context, username, password string) (identity.SignInResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(Call{Op: identity.OpSignIn, Username: username, Password: password}); err != nil {
		return identity.SignInResult{}, err
	}

	acc, ok := g.accounts[username]
	if !ok {
		acc = g.byEmail(username)
	}
	if acc == nil {
		return identity.SignInResult{}, identity.NewError(identity.OpSignIn, identity.KindUserNotFound, "", nil)
	}
	if acc.password != password {
		return identity.SignInResult{}, identity.NewError(identity.OpSignIn, identity.KindNotAuthorized, "", nil)
	}
	if !acc.confirmed {
		return identity.SignInResult{}, identity.NewError(identity.OpSignIn, identity.KindUserUnconfirmed, "", nil)
	}
	g.session = &identity.CurrentSession{UserID: acc.id, Attributes: acc.attrs}
	return identity.SignInResult{SignedIn: true}, nil
}

// SignOut clears the fake session before reporting any injected failure.
func (g *Gateway) SignOut(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = nil
	return g.record(Call{Op: identity.OpSignOut})
}

func (g *Gateway) GetCurrentSession(_ context.Context) (*identity.CurrentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(Call{Op: identity.OpGetCurrentSession}); err != nil {
		return nil, err
	}
	if g.session == nil {
		return nil, identity.NewError(identity.OpGetCurrentSession, identity.KindNoSession, "", nil)
	}
	s := *g.session
	return &s, nil
}

func (g *Gateway) byEmail(email string) *account {
	for _, acc := range g.accounts {
		if strings.EqualFold(acc.attrs.Email, email) {
			return acc
		}
	}
	return nil
}
