// Package cognito adapts an Amazon Cognito user pool to identity.Provider.
package cognito

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-agent-chat/identity"
	"golang.org/x/oauth2"
)

// API is the subset of the Cognito client used here.
type API interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
}

type Config struct {
	UserPoolID   string
	ClientID     string
	ClientSecret string // optional, app clients without a secret leave it empty
	Region       string // derived from UserPoolID when empty
}

// RegionFromPoolID returns the region prefix of a pool id such as
// "eu-west-2_AbCdEf".
func RegionFromPoolID(poolID string) string {
	region, _, found := strings.Cut(poolID, "_")
	if !found {
		return ""
	}
	return region
}

func (c Config) region() string {
	if c.Region != "" {
		return c.Region
	}
	return RegionFromPoolID(c.UserPoolID)
}

// IssuerURL is the OIDC issuer of the user pool.
func (c Config) IssuerURL() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.region(), c.UserPoolID)
}

var _ identity.Provider = (*Provider)(nil)

type Provider struct {
	api API
	cfg Config

	verifierLock sync.Mutex
	verifier     *oidc.IDTokenVerifier
}

type Option func(*Provider)

// WithVerifier supplies the ID token verifier instead of discovering it
// from the pool's issuer.
func WithVerifier(v *oidc.IDTokenVerifier) Option {
	return func(p *Provider) {
		p.verifier = v
	}
}

// New loads the default AWS configuration for the pool's region.
func New(ctx context.Context, cfg Config, options ...Option) (*Provider, error) {
	if cfg.UserPoolID == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("cognito: user pool id and client id are required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.region()))
	if err != nil {
		return nil, fmt.Errorf("cognito: failed to load aws config: %w", err)
	}
	return NewWithAPI(cip.NewFromConfig(awsCfg), cfg, options...), nil
}

func NewWithAPI(api API, cfg Config, options ...Option) *Provider {
	p := &Provider{api: api, cfg: cfg}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// secretHash is HMAC-SHA256(username + clientID) keyed by the client secret.
func (p *Provider) secretHash(username string) *string {
	if p.cfg.ClientSecret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(p.cfg.ClientSecret))
	mac.Write([]byte(username + p.cfg.ClientID))
	return aws.String(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func (p *Provider) SignUp(ctx context.Context, username, password string, attrs identity.Attributes) (identity.CreateAccountResult, error) {
	userAttrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(attrs.Email)},
	}
	if attrs.Name != "" {
		userAttrs = append(userAttrs, types.AttributeType{Name: aws.String("name"), Value: aws.String(attrs.Name)})
	}

	out, err := p.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(p.cfg.ClientID),
		Username:       aws.String(username),
		Password:       aws.String(password),
		SecretHash:     p.secretHash(username),
		UserAttributes: userAttrs,
	})
	if err != nil {
		return identity.CreateAccountResult{}, mapError(identity.OpCreateAccount, err)
	}
	return identity.CreateAccountResult{
		ConfirmationRequired: !out.UserConfirmed,
		UserID:               aws.ToString(out.UserSub),
	}, nil
}

func (p *Provider) ConfirmSignUp(ctx context.Context, username, code string) error {
	_, err := p.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.cfg.ClientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		SecretHash:       p.secretHash(username),
	})
	if err != nil {
		return mapError(identity.OpConfirmAccount, err)
	}
	return nil
}

// InitiateAuth runs the USER_PASSWORD_AUTH flow. A challenge (MFA, new
// password) yields empty tokens, which the gateway reports as not signed in.
func (p *Provider) InitiateAuth(ctx context.Context, username, password string) (*identity.Tokens, error) {
	params := map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	}
	if hash := p.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.cfg.ClientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, mapError(identity.OpSignIn, err)
	}
	if out.AuthenticationResult == nil {
		return &identity.Tokens{}, nil
	}

	res := out.AuthenticationResult
	tokens := &identity.Tokens{
		Token: oauth2.Token{
			AccessToken:  aws.ToString(res.AccessToken),
			RefreshToken: aws.ToString(res.RefreshToken),
			TokenType:    aws.ToString(res.TokenType),
		},
		IDToken: aws.ToString(res.IdToken),
	}
	if res.ExpiresIn > 0 {
		tokens.Expiry = time.Now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	return tokens, nil
}

func (p *Provider) GlobalSignOut(ctx context.Context, tokens *identity.Tokens) error {
	if tokens == nil || tokens.AccessToken == "" {
		return nil
	}
	_, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(tokens.AccessToken)})
	if err != nil {
		return mapError(identity.OpSignOut, err)
	}
	return nil
}

// GetUser verifies the ID token when one is held and then reads the
// current attributes with the access token.
func (p *Provider) GetUser(ctx context.Context, tokens *identity.Tokens) (identity.CurrentSession, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return identity.CurrentSession{}, identity.NewError(identity.OpGetCurrentSession, identity.KindNoSession, "", nil)
	}

	var subject string
	if tokens.IDToken != "" {
		verifier, err := p.idTokenVerifier(ctx)
		if err != nil {
			return identity.CurrentSession{}, identity.NewError(identity.OpGetCurrentSession, identity.KindUnavailable, "", err)
		}
		idToken, err := verifier.Verify(ctx, tokens.IDToken)
		if err != nil {
			return identity.CurrentSession{}, identity.NewError(identity.OpGetCurrentSession, identity.KindNotAuthorized, "id token verification failed", err)
		}
		subject = idToken.Subject
	}

	out, err := p.api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(tokens.AccessToken)})
	if err != nil {
		return identity.CurrentSession{}, mapError(identity.OpGetCurrentSession, err)
	}

	current := identity.CurrentSession{}
	for _, attr := range out.UserAttributes {
		switch aws.ToString(attr.Name) {
		case "sub":
			current.UserID = aws.ToString(attr.Value)
		case "email":
			current.Attributes.Email = aws.ToString(attr.Value)
		case "name":
			current.Attributes.Name = aws.ToString(attr.Value)
		}
	}
	if current.UserID == "" {
		current.UserID = aws.ToString(out.Username)
	}
	if subject != "" && subject != current.UserID {
		return identity.CurrentSession{}, identity.NewError(identity.OpGetCurrentSession, identity.KindNotAuthorized, "id token subject mismatch", nil)
	}
	return current, nil
}

func (p *Provider) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	p.verifierLock.Lock()
	defer p.verifierLock.Unlock()
	if p.verifier != nil {
		return p.verifier, nil
	}

	provider, err := oidc.NewProvider(ctx, p.cfg.IssuerURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	p.verifier = provider.Verifier(&oidc.Config{ClientID: p.cfg.ClientID})
	return p.verifier, nil
}
