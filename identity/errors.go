package identity

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failures an identity provider can report.
// Provider adapters translate their native errors into one of these kinds so
// callers never depend on a vendor's error naming.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUsernameTaken
	KindWeakPassword
	KindInvalidAttributes
	KindCodeMismatch
	KindCodeExpired
	KindUserNotFound
	KindNotAuthorized
	KindUserUnconfirmed
	KindNoSession
	KindUnavailable
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "unknown",
	KindUsernameTaken:     "username_taken",
	KindWeakPassword:      "weak_password",
	KindInvalidAttributes: "invalid_attributes",
	KindCodeMismatch:      "code_mismatch",
	KindCodeExpired:       "code_expired",
	KindUserNotFound:      "user_not_found",
	KindNotAuthorized:     "not_authorized",
	KindUserUnconfirmed:   "user_unconfirmed",
	KindNoSession:         "no_session",
	KindUnavailable:       "unavailable",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every Gateway and Provider operation that fails.
type Error struct {
	Kind    ErrorKind
	Op      string // createAccount, confirmAccount, signIn, signOut, getCurrentSession
	Message string // provider supplied detail, safe to show for InvalidAttributes
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error for op.
func NewError(op string, kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// KindOf extracts the ErrorKind from err. Errors that did not come from a
// provider adapter are KindUnknown.
func KindOf(err error) ErrorKind {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Kind
	}
	return KindUnknown
}

// MessageOf returns the provider supplied detail carried by err, if any.
func MessageOf(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Message
	}
	return ""
}
