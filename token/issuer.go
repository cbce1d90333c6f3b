package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultAccessTokenExpiry = time.Hour
	DefaultIDTokenExpiry     = time.Hour
)

// Subject is the identity a token is issued for.
type Subject struct {
	ID       string
	Username string
	Email    string
	Name     string
}

// Claims is the parsed, verified content of an access token.
type Claims struct {
	Subject   string
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// Issuer creates and parses the tokens of the local identity provider.
type Issuer struct {
	issuer      string
	audience    string
	signer      Signer
	accessTTL   time.Duration
	idTTL       time.Duration
	nowTimeFunc func() time.Time
}

type IssuerOption func(*Issuer)

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTimeFunc = nowFunc
	}
}

func WithAccessTokenExpiry(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTTL = d
	}
}

func NewIssuer(issuer, audience string, signer Signer, options ...IssuerOption) *Issuer {
	i := &Issuer{
		issuer:      issuer,
		audience:    audience,
		signer:      signer,
		accessTTL:   DefaultAccessTokenExpiry,
		idTTL:       DefaultIDTokenExpiry,
		nowTimeFunc: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// CreateIDToken creates an OpenID Connect style ID token carrying the
// profile attributes.
func (i *Issuer) CreateIDToken(sub Subject) (string, error) {
	now := i.nowTimeFunc()
	claims := jwt.MapClaims{
		"iss":              i.issuer,
		"sub":              sub.ID,
		"aud":              i.audience,
		"email":            sub.Email,
		"name":             sub.Name,
		"cognito:username": sub.Username,
		"iat":              now.Unix(),
		"exp":              now.Add(i.idTTL).Unix(),
		"jti":              uuid.New().String(),
	}
	return i.signer.Sign(claims)
}

// CreateAccessToken creates an access token and returns it with its expiry.
func (i *Issuer) CreateAccessToken(sub Subject) (string, time.Time, error) {
	now := i.nowTimeFunc()
	expiry := now.Add(i.accessTTL)
	claims := jwt.MapClaims{
		"iss":       i.issuer,            // The issuer of the token
		"aud":       i.audience,          // The audience for which the token is intended
		"sub":       sub.ID,              // The user the token was issued to
		"username":  sub.Username,        // Provider namespace username
		"token_use": "access",            // Distinguishes access from ID tokens
		"iat":       now.Unix(),          // Issued At
		"exp":       expiry.Unix(),       // Expiry
		"jti":       uuid.New().String(), // Unique token ID for revocation
	}
	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

// ParseAccessToken verifies signature, issuer, audience and expiry.
func (i *Issuer) ParseAccessToken(raw string) (*Claims, error) {
	parsed, err := jwt.Parse(raw, i.signer.Key,
		jwt.WithValidMethods([]string{i.signer.Method().Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithTimeFunc(i.nowTimeFunc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "invalid access token")
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid access token claims")
	}
	if use, _ := mapClaims["token_use"].(string); use != "access" {
		return nil, errors.New("token is not an access token")
	}

	sub, _ := mapClaims.GetSubject()
	exp, _ := mapClaims.GetExpirationTime()
	username, _ := mapClaims["username"].(string)
	jti, _ := mapClaims["jti"].(string)

	claims := &Claims{Subject: sub, Username: username, JTI: jti}
	if exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}
