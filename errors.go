package credauth

import (
	"net/http"

	"github.com/pkg/errors"
)

// Errors returned by the Verifier and the AccountStore implementations.
// Callers should compare with errors.Is since stores wrap them with context.
var (
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("account store unavailable")
	ErrConfiguration       = errors.New("configuration error")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidSession      = errors.New("invalid or expired session")
	ErrMissingField        = errors.New("missing required field")
)

// Error codes rendered to clients
const (
	ErrCodeMissingField   = "missing_field"
	ErrCodeInvalidEmail   = "invalid_email"
	ErrCodeInvalidCreds   = "invalid_credentials"
	ErrCodeAlreadyExists  = "already_registered"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeConfiguration  = "not_configured"
	ErrCodeInvalidSession = "invalid_session"
)

// AuthError is the client facing form of an authentication failure.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

func (e *AuthError) Error() string { return e.Message }

// StatusCode picks the HTTP status for the error code
func (e *AuthError) StatusCode() int {
	switch e.Code {
	case ErrCodeMissingField, ErrCodeInvalidEmail:
		return http.StatusBadRequest
	case ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

// AuthErrorHandler lets an app render auth errors itself (eg redirect back to a form).
// Returns true if the error was handled.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool

// AuthErrorFrom maps an error from the Verifier to an AuthError.  Anything
// that is not one of the known sentinels is reported as unavailable so store
// details never leak to clients.
func AuthErrorFrom(err error, field string) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	switch {
	case errors.Is(err, ErrMissingField):
		return NewAuthError(ErrCodeMissingField, "Username and password required", field)
	case errors.Is(err, ErrDuplicateIdentifier):
		return NewAuthError(ErrCodeAlreadyExists, "That email is already registered", field)
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountNotFound):
		// Never say which of the two was wrong
		return NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "")
	case errors.Is(err, ErrInvalidSession):
		return NewAuthError(ErrCodeInvalidSession, "Session expired", "")
	case errors.Is(err, ErrConfiguration):
		return NewAuthError(ErrCodeConfiguration, "Authentication not configured", "")
	default:
		return NewAuthError(ErrCodeUnavailable, "Service unavailable, please try again", "")
	}
}
