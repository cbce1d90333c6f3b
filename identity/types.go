package identity

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Operation names used in *Error.Op.
const (
	OpCreateAccount     = "createAccount"
	OpConfirmAccount    = "confirmAccount"
	OpSignIn            = "signIn"
	OpSignOut           = "signOut"
	OpGetCurrentSession = "getCurrentSession"
)

// Attributes are the profile attributes sent on account creation and read
// back when a session is materialized.
type Attributes struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// DisplayName returns Name, falling back to Email.
func (a Attributes) DisplayName() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.Email
}

type CreateAccountResult struct {
	ConfirmationRequired bool
	UserID               string // provider subject, when the provider returns one
}

type SignInResult struct {
	SignedIn bool
}

// CurrentSession is what getCurrentSession yields when a provider session is
// live.
type CurrentSession struct {
	UserID     string
	Attributes Attributes
}

// Tokens are the credentials a provider issues on sign in. The embedded
// oauth2.Token carries the access/refresh pair and expiry.
type Tokens struct {
	oauth2.Token
	IDToken string `json:"id_token,omitempty"`
}

// Live reports whether the tokens can still be presented to the provider.
func (t *Tokens) Live(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return now.Before(t.Expiry)
}
