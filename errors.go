package auth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMalformedToken        = "MALFORMED_TOKEN"
	TextCodeExpiredOrUnrecognized = "EXPIRED_OR_UNRECOGNIZED_CLAIMS"
	TextCodeCredentialsRejected   = "CREDENTIALS_REJECTED"
	TextCodeMissingToken          = "MISSING_TOKEN"
	TextCodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeRegistrationRejected  = "REGISTRATION_REJECTED"
	TextCodeRemoteUnavailable     = "REMOTE_UNAVAILABLE"
	TextCodeInvalidInput          = "INVALID_INPUT"
	TextCodeInvalidSession        = "INVALID_SESSION"
	TextCodeSessionPersistence    = "SESSION_PERSISTENCE_FAILED"
)

const (
	defaultLoginFailureMessage        = "there was an error signing in"
	defaultRegistrationFailureMessage = "there was an error registering the user"
)

// ErrMalformedToken is returned when a token cannot be structurally parsed.
var ErrMalformedToken = goerrors.New("malformed token", goerrors.CategoryAuth).
	WithTextCode(TextCodeMalformedToken).
	WithCode(goerrors.CodeBadRequest)

// ErrExpiredOrUnrecognizedClaims is returned when claims parse but do not
// normalize into an Identity.
var ErrExpiredOrUnrecognizedClaims = goerrors.New("expired or unrecognized claims", goerrors.CategoryAuth).
	WithTextCode(TextCodeExpiredOrUnrecognized).
	WithCode(goerrors.CodeUnauthorized)

// ErrCredentialsRejected is returned when the remote API refuses a login.
var ErrCredentialsRejected = goerrors.New("credentials are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeCredentialsRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingToken is returned when a login succeeds without a token.
var ErrMissingToken = goerrors.New("token not received", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidOrExpiredToken is returned after a login rollback.
var ErrInvalidOrExpiredToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidOrExpiredToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrRegistrationRejected is returned when the remote API refuses a registration.
var ErrRegistrationRejected = goerrors.New(defaultRegistrationFailureMessage, goerrors.CategoryValidation).
	WithTextCode(TextCodeRegistrationRejected).
	WithCode(goerrors.CodeBadRequest)

// ErrRemoteUnavailable is returned when no response was obtained from the remote API.
var ErrRemoteUnavailable = goerrors.New("remote API unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeRemoteUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrInvalidInput wraps validation failures on credentials or registration data.
var ErrInvalidInput = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidSession is returned when saving a session without a token.
var ErrInvalidSession = goerrors.New("session requires a token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidSession).
	WithCode(goerrors.CodeBadRequest)

// ErrSessionPersistence is returned when the store could not persist a session.
var ErrSessionPersistence = goerrors.New("failed to persist session", goerrors.CategoryInternal).
	WithTextCode(TextCodeSessionPersistence).
	WithCode(goerrors.CodeInternal)

// IsMalformedTokenError reports whether err carries the malformed token code.
func IsMalformedTokenError(err error) bool {
	return hasTextCode(err, TextCodeMalformedToken)
}

// IsExpiredOrUnrecognizedError reports whether err carries the claims normalization code.
func IsExpiredOrUnrecognizedError(err error) bool {
	return hasTextCode(err, TextCodeExpiredOrUnrecognized)
}

// UserMessage returns the text meant for the person using the application.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr != nil && strings.TrimSpace(richErr.Message) != "" {
		return richErr.Message
	}
	return defaultLoginFailureMessage
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !errors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.TextCode == code
}

func wrapError(base *goerrors.Error, err error, meta map[string]any) error {
	if base == nil {
		return err
	}
	return cloneError(base, err, meta)
}

// withMessage wraps err like wrapError and replaces the user-facing message
// when one is provided.
func withMessage(base *goerrors.Error, err error, message string, meta map[string]any) error {
	clone := cloneError(base, err, meta)
	if msg := strings.TrimSpace(message); msg != "" {
		clone.Message = msg
	}
	return clone
}

func cloneError(base *goerrors.Error, err error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
		if meta == nil {
			meta = map[string]any{}
		}
		if _, ok := meta["cause"]; !ok {
			meta["cause"] = err.Error()
		}
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}
