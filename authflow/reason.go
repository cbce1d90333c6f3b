package authflow

import (
	"fmt"

	"github.com/jrsteele09/go-agent-chat/identity"
)

// Reason is the user-facing failure category of a flow.
type Reason int

const (
	ReasonNone Reason = iota

	// local validation, never reaches the gateway
	ReasonPasswordMismatch
	ReasonMissingFields

	// standard login
	ReasonUnknownUser
	ReasonBadCredentials
	ReasonUnconfirmedAccount
	ReasonLoginFailed
	ReasonSignInIncomplete

	// standard signup and confirmation
	ReasonUsernameTaken
	ReasonWeakPassword
	ReasonInvalidAttributes
	ReasonSignupFailed
	ReasonNoPendingSignup
	ReasonCodeMismatch
	ReasonCodeExpired
	ReasonNotAuthorized
	ReasonVerificationFailed

	// sso
	ReasonDomainNotVerified
	ReasonAccountExists
	ReasonSSOFailed
	ReasonSessionExpired

	// guards
	ReasonBusy
	ReasonRateLimited
)

var reasonInfo = map[Reason]struct {
	code    string
	message string
}{
	ReasonNone:               {"none", ""},
	ReasonPasswordMismatch:   {"password_mismatch", "Passwords do not match"},
	ReasonMissingFields:      {"missing_fields", "Please fill in all required fields"},
	ReasonUnknownUser:        {"unknown_user", "User not found. Please sign up first."},
	ReasonBadCredentials:     {"bad_credentials", "Incorrect username or password"},
	ReasonUnconfirmedAccount: {"unconfirmed_account", "Please verify your email first"},
	ReasonLoginFailed:        {"login_failed", "Invalid email or password"},
	ReasonSignInIncomplete:   {"sign_in_incomplete", "Sign in could not be completed. Please try again."},
	ReasonUsernameTaken:      {"username_taken", "An account with this email already exists"},
	ReasonWeakPassword:       {"weak_password", "Password must be at least 8 characters with uppercase, lowercase, and numbers"},
	ReasonInvalidAttributes:  {"invalid_attributes", "Invalid email or password format"},
	ReasonSignupFailed:       {"signup_failed", "Failed to create account"},
	ReasonNoPendingSignup:    {"no_pending_signup", "Your sign up session has expired. Please sign up again."},
	ReasonCodeMismatch:       {"code_mismatch", "Invalid verification code. Please try again."},
	ReasonCodeExpired:        {"code_expired", "Verification code has expired. Please request a new one."},
	ReasonNotAuthorized:      {"not_authorized", "Verification was not authorized. Please start again."},
	ReasonVerificationFailed: {"verification_failed", "Invalid verification code"},
	ReasonDomainNotVerified:  {"domain_not_verified", "Your email domain is not enabled for company SSO. Please sign in with your email and password."},
	ReasonAccountExists:      {"account_exists", "An account with this email already exists. Please sign in with your email and password instead."},
	ReasonSSOFailed:          {"sso_failed", "SSO login failed. Please try again."},
	ReasonSessionExpired:     {"session_expired", "Your SSO session has expired. Please start company SSO sign in again."},
	ReasonBusy:               {"busy", "A request is already in progress"},
	ReasonRateLimited:        {"rate_limited", "Too many attempts. Please wait a moment and try again."},
}

// String is the stable machine code of the reason.
func (r Reason) String() string {
	if info, ok := reasonInfo[r]; ok {
		return info.code
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Message is the fixed human-readable text for the reason.
func (r Reason) Message() string {
	return reasonInfo[r].message
}

func loginReason(kind identity.ErrorKind) Reason {
	switch kind {
	case identity.KindUserNotFound:
		return ReasonUnknownUser
	case identity.KindNotAuthorized:
		return ReasonBadCredentials
	case identity.KindUserUnconfirmed:
		return ReasonUnconfirmedAccount
	default:
		return ReasonLoginFailed
	}
}

func signupReason(kind identity.ErrorKind) Reason {
	switch kind {
	case identity.KindUsernameTaken:
		return ReasonUsernameTaken
	case identity.KindWeakPassword:
		return ReasonWeakPassword
	case identity.KindInvalidAttributes:
		return ReasonInvalidAttributes
	default:
		return ReasonSignupFailed
	}
}

func confirmReason(kind identity.ErrorKind) Reason {
	switch kind {
	case identity.KindCodeMismatch:
		return ReasonCodeMismatch
	case identity.KindCodeExpired:
		return ReasonCodeExpired
	default:
		return ReasonVerificationFailed
	}
}

func ssoInitiationReason(kind identity.ErrorKind) Reason {
	switch kind {
	case identity.KindUsernameTaken:
		return ReasonAccountExists
	case identity.KindInvalidAttributes:
		return ReasonInvalidAttributes
	default:
		return ReasonSSOFailed
	}
}

func ssoVerificationReason(kind identity.ErrorKind) Reason {
	switch kind {
	case identity.KindCodeMismatch:
		return ReasonCodeMismatch
	case identity.KindCodeExpired:
		return ReasonCodeExpired
	case identity.KindNotAuthorized, identity.KindUserNotFound, identity.KindUserUnconfirmed:
		return ReasonNotAuthorized
	default:
		return ReasonVerificationFailed
	}
}
