package identity

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Provider is a stateless view of an identity provider's primitives. One
// Provider is shared by every client; per-client state (tokens) is held by
// the Gateway that wraps it.
type Provider interface {
	SignUp(ctx context.Context, username, password string, attrs Attributes) (CreateAccountResult, error)
	ConfirmSignUp(ctx context.Context, username, code string) error
	InitiateAuth(ctx context.Context, username, password string) (*Tokens, error)
	GlobalSignOut(ctx context.Context, tokens *Tokens) error
	GetUser(ctx context.Context, tokens *Tokens) (CurrentSession, error)
}

// TokenHolder keeps one client's provider tokens.
type TokenHolder interface {
	Load(ctx context.Context) (*Tokens, error) // nil, nil when nothing is held
	Save(ctx context.Context, tokens *Tokens) error
	Clear(ctx context.Context) error
}

// Gateway is the typed façade over the five provider operations the auth
// flows need. All failures are *Error values.
type Gateway interface {
	CreateAccount(ctx context.Context, username, password string, attrs Attributes) (CreateAccountResult, error)
	ConfirmAccount(ctx context.Context, username, code string) error
	SignIn(ctx context.Context, username, password string) (SignInResult, error)
	SignOut(ctx context.Context) error
	GetCurrentSession(ctx context.Context) (*CurrentSession, error)
}

// ProviderGateway binds a Provider to a single client's TokenHolder.
type ProviderGateway struct {
	provider Provider
	tokens   TokenHolder
	nowTime  func() time.Time
}

var _ Gateway = (*ProviderGateway)(nil)

// GatewayOption configures a ProviderGateway.
type GatewayOption func(*ProviderGateway)

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) GatewayOption {
	return func(g *ProviderGateway) {
		g.nowTime = nowFunc
	}
}

func NewGateway(provider Provider, tokens TokenHolder, options ...GatewayOption) *ProviderGateway {
	g := &ProviderGateway{
		provider: provider,
		tokens:   tokens,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *ProviderGateway) CreateAccount(ctx context.Context, username, password string, attrs Attributes) (CreateAccountResult, error) {
	res, err := g.provider.SignUp(ctx, username, password, attrs)
	if err != nil {
		return CreateAccountResult{}, asError(OpCreateAccount, err)
	}
	return res, nil
}

func (g *ProviderGateway) ConfirmAccount(ctx context.Context, username, code string) error {
	if err := g.provider.ConfirmSignUp(ctx, username, code); err != nil {
		return asError(OpConfirmAccount, err)
	}
	return nil
}

// SignIn authenticates and keeps the resulting tokens for later
// GetCurrentSession calls. A challenge response (tokens without an access
// token) is reported as not signed in.
func (g *ProviderGateway) SignIn(ctx context.Context, username, password string) (SignInResult, error) {
	tokens, err := g.provider.InitiateAuth(ctx, username, password)
	if err != nil {
		return SignInResult{}, asError(OpSignIn, err)
	}
	if tokens == nil || tokens.AccessToken == "" {
		return SignInResult{SignedIn: false}, nil
	}
	if err := g.tokens.Save(ctx, tokens); err != nil {
		return SignInResult{}, NewError(OpSignIn, KindUnavailable, "", err)
	}
	return SignInResult{SignedIn: true}, nil
}

// SignOut is best effort: the held tokens are cleared even when the
// provider call fails, and the provider error is still returned so the
// caller can log it.
func (g *ProviderGateway) SignOut(ctx context.Context) error {
	tokens, loadErr := g.tokens.Load(ctx)
	if clearErr := g.tokens.Clear(ctx); clearErr != nil {
		log.Warn().Err(clearErr).Msg("identity: failed to clear held tokens")
	}
	if loadErr != nil {
		return NewError(OpSignOut, KindUnavailable, "", loadErr)
	}
	if tokens == nil {
		return nil
	}
	if err := g.provider.GlobalSignOut(ctx, tokens); err != nil {
		return asError(OpSignOut, err)
	}
	return nil
}

// GetCurrentSession returns the live session, or an error of KindNoSession
// when no usable tokens are held.
func (g *ProviderGateway) GetCurrentSession(ctx context.Context) (*CurrentSession, error) {
	tokens, err := g.tokens.Load(ctx)
	if err != nil {
		return nil, NewError(OpGetCurrentSession, KindUnavailable, "", err)
	}
	if !tokens.Live(g.nowTime()) {
		return nil, NewError(OpGetCurrentSession, KindNoSession, "", nil)
	}
	current, err := g.provider.GetUser(ctx, tokens)
	if err != nil {
		return nil, asError(OpGetCurrentSession, err)
	}
	return &current, nil
}

// asError makes sure err is an *Error tagged with op.
func asError(op string, err error) error {
	if idErr, ok := err.(*Error); ok {
		if idErr.Op == "" {
			idErr.Op = op
		}
		return idErr
	}
	return NewError(op, KindOf(err), MessageOf(err), err)
}
