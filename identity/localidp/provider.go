// Package localidp is a self-contained identity provider for development and
// tests. It mirrors the behaviour of the hosted provider closely enough for
// the auth flows: synthetic usernames, emailed confirmation codes, the same
// password policy and the same failure kinds.
package localidp

import (
	"context"
	"crypto/subtle"
	"net/mail"
	"strings"
	"time"

	"github.com/jrsteele09/go-agent-chat/identity"
	"github.com/jrsteele09/go-agent-chat/token"
	"github.com/jrsteele09/go-agent-chat/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const DefaultCodeExpiry = 24 * time.Hour

var _ identity.Provider = (*Provider)(nil)

type Provider struct {
	users       users.UserRepo
	issuer      *token.Issuer
	revoked     token.RevokedTokenCache
	codes       CodeSender
	codeExpiry  time.Duration
	nowTimeFunc func() time.Time
	genCode     func() (string, error)
}

type Option func(*Provider)

func WithCodeSender(sender CodeSender) Option {
	return func(p *Provider) {
		p.codes = sender
	}
}

func WithCodeExpiry(d time.Duration) Option {
	return func(p *Provider) {
		p.codeExpiry = d
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(p *Provider) {
		p.nowTimeFunc = nowFunc
	}
}

// WithCodeGenerator replaces the random code source (primarily for testing)
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(p *Provider) {
		p.genCode = gen
	}
}

func New(repo users.UserRepo, issuer *token.Issuer, revoked token.RevokedTokenCache, options ...Option) *Provider {
	p := &Provider{
		users:       repo,
		issuer:      issuer,
		revoked:     revoked,
		codes:       LogCodeSender{},
		codeExpiry:  DefaultCodeExpiry,
		nowTimeFunc: time.Now,
		genCode:     generateCode,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *Provider) SignUp(ctx context.Context, username, password string, attrs identity.Attributes) (identity.CreateAccountResult, error) {
	if strings.TrimSpace(username) == "" || strings.Contains(username, "@") {
		return identity.CreateAccountResult{}, identity.NewError(identity.OpCreateAccount, identity.KindInvalidAttributes, "username must be a non-email identifier", nil)
	}
	if _, err := mail.ParseAddress(attrs.Email); err != nil {
		return identity.CreateAccountResult{}, identity.NewError(identity.OpCreateAccount, identity.KindInvalidAttributes, "invalid email address", err)
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return identity.CreateAccountResult{}, identity.NewError(identity.OpCreateAccount, identity.KindWeakPassword, err.Error(), err)
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return identity.CreateAccountResult{}, errors.Wrap(err, "failed to hash password")
	}
	code, err := p.genCode()
	if err != nil {
		return identity.CreateAccountResult{}, errors.Wrap(err, "failed to generate confirmation code")
	}

	now := p.nowTimeFunc()
	user := &users.User{
		Username:         username,
		Email:            strings.TrimSpace(attrs.Email),
		Name:             attrs.Name,
		PasswordHash:     hash,
		DateJoined:       now,
		ConfirmationCode: code,
		CodeExpiry:       now.Add(p.codeExpiry),
	}
	if err := p.users.Create(user); err != nil {
		if errors.Is(err, users.ErrUsernameTaken) || errors.Is(err, users.ErrEmailTaken) {
			return identity.CreateAccountResult{}, identity.NewError(identity.OpCreateAccount, identity.KindUsernameTaken, "", err)
		}
		return identity.CreateAccountResult{}, errors.Wrap(err, "failed to create user")
	}

	if err := p.codes.SendConfirmationCode(ctx, user.Email, code); err != nil {
		log.Err(err).Str("username", username).Msg("local idp: failed to deliver confirmation code")
	}

	return identity.CreateAccountResult{ConfirmationRequired: true, UserID: user.ID}, nil
}

func (p *Provider) ConfirmSignUp(_ context.Context, username, code string) error {
	user, err := p.users.GetByUsername(username)
	if err != nil {
		return identity.NewError(identity.OpConfirmAccount, identity.KindUserNotFound, "", err)
	}
	if user.Confirmed {
		return identity.NewError(identity.OpConfirmAccount, identity.KindNotAuthorized, "user is already confirmed", nil)
	}
	if user.CodeExpired(p.nowTimeFunc()) {
		return identity.NewError(identity.OpConfirmAccount, identity.KindCodeExpired, "", nil)
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(user.ConfirmationCode)) != 1 {
		return identity.NewError(identity.OpConfirmAccount, identity.KindCodeMismatch, "", nil)
	}
	if holder, err := p.users.GetByEmail(user.Email); err == nil && holder.Username != user.Username && holder.Confirmed {
		return identity.NewError(identity.OpConfirmAccount, identity.KindUsernameTaken, "email already belongs to a confirmed account", nil)
	}

	user.Confirmed = true
	user.ConfirmationCode = ""
	user.CodeExpiry = time.Time{}
	return p.users.Update(user)
}

// InitiateAuth accepts the username or, for confirmed accounts, the email.
func (p *Provider) InitiateAuth(_ context.Context, username, password string) (*identity.Tokens, error) {
	user, err := p.lookupForSignIn(username)
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, identity.NewError(identity.OpSignIn, identity.KindNotAuthorized, "Incorrect username or password.", nil)
	}
	if !user.Confirmed {
		return nil, identity.NewError(identity.OpSignIn, identity.KindUserUnconfirmed, "", nil)
	}

	sub := token.Subject{ID: user.ID, Username: user.Username, Email: user.Email, Name: user.Name}
	access, expiry, err := p.issuer.CreateAccessToken(sub)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create access token")
	}
	idToken, err := p.issuer.CreateIDToken(sub)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create id token")
	}

	user.LastLogin = p.nowTimeFunc()
	if err := p.users.Update(user); err != nil {
		log.Warn().Err(err).Str("username", user.Username).Msg("local idp: failed to record last login")
	}

	return &identity.Tokens{
		Token: oauth2.Token{
			AccessToken: access,
			TokenType:   "Bearer",
			Expiry:      expiry,
		},
		IDToken: idToken,
	}, nil
}

func (p *Provider) lookupForSignIn(username string) (*users.User, error) {
	user, err := p.users.GetByUsername(username)
	if err == nil {
		return user, nil
	}
	if strings.Contains(username, "@") {
		user, err = p.users.GetByEmail(username)
		if err == nil && user.Confirmed {
			return user, nil
		}
	}
	return nil, identity.NewError(identity.OpSignIn, identity.KindUserNotFound, "", err)
}

func (p *Provider) GlobalSignOut(_ context.Context, tokens *identity.Tokens) error {
	claims, err := p.parse(identity.OpSignOut, tokens)
	if err != nil {
		return err
	}
	return p.revoked.Add(claims.JTI, claims.ExpiresAt)
}

func (p *Provider) GetUser(_ context.Context, tokens *identity.Tokens) (identity.CurrentSession, error) {
	claims, err := p.parse(identity.OpGetCurrentSession, tokens)
	if err != nil {
		return identity.CurrentSession{}, err
	}
	user, err := p.users.GetByID(claims.Subject)
	if err != nil {
		return identity.CurrentSession{}, identity.NewError(identity.OpGetCurrentSession, identity.KindUserNotFound, "", err)
	}
	return identity.CurrentSession{
		UserID: user.ID,
		Attributes: identity.Attributes{
			Email: user.Email,
			Name:  user.Name,
		},
	}, nil
}

func (p *Provider) parse(op string, tokens *identity.Tokens) (*token.Claims, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, identity.NewError(op, identity.KindNoSession, "", nil)
	}
	claims, err := p.issuer.ParseAccessToken(tokens.AccessToken)
	if err != nil {
		return nil, identity.NewError(op, identity.KindNotAuthorized, "invalid access token", err)
	}
	if p.revoked.IsRevoked(claims.JTI) {
		return nil, identity.NewError(op, identity.KindNotAuthorized, "Access Token has been revoked", nil)
	}
	return claims, nil
}
