package cognito

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/jrsteele09/go-agent-chat/identity"
)

// mapError translates Cognito exceptions into identity error kinds.
func mapError(op string, err error) error {
	var message string
	var withMessage interface{ ErrorMessage() string }
	if errors.As(err, &withMessage) {
		message = withMessage.ErrorMessage()
	}
	return identity.NewError(op, kindOf(err), message, err)
}

func kindOf(err error) identity.ErrorKind {
	var (
		usernameExists   *types.UsernameExistsException
		aliasExists      *types.AliasExistsException
		invalidPassword  *types.InvalidPasswordException
		invalidParameter *types.InvalidParameterException
		codeMismatch     *types.CodeMismatchException
		expiredCode      *types.ExpiredCodeException
		userNotFound     *types.UserNotFoundException
		notAuthorized    *types.NotAuthorizedException
		userNotConfirmed *types.UserNotConfirmedException
		resetRequired    *types.PasswordResetRequiredException
		tooManyRequests  *types.TooManyRequestsException
		limitExceeded    *types.LimitExceededException
	)

	switch {
	case errors.As(err, &usernameExists), errors.As(err, &aliasExists):
		return identity.KindUsernameTaken
	case errors.As(err, &invalidPassword):
		return identity.KindWeakPassword
	case errors.As(err, &invalidParameter):
		return identity.KindInvalidAttributes
	case errors.As(err, &codeMismatch):
		return identity.KindCodeMismatch
	case errors.As(err, &expiredCode):
		return identity.KindCodeExpired
	case errors.As(err, &userNotFound):
		return identity.KindUserNotFound
	case errors.As(err, &notAuthorized), errors.As(err, &resetRequired):
		return identity.KindNotAuthorized
	case errors.As(err, &userNotConfirmed):
		return identity.KindUserUnconfirmed
	case errors.As(err, &tooManyRequests), errors.As(err, &limitExceeded):
		return identity.KindUnavailable
	default:
		return identity.KindUnknown
	}
}
