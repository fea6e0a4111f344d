package auth

import (
	"errors"
	"net/http"

	"github.com/axvier/blog/internal/store"
	"github.com/axvier/blog/internal/token"
)

// Sentinels matched with errors.Is.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrMalformedToken     = token.ErrMalformed
	ErrNotFound           = store.ErrNotFound
)

// User-facing messages.
const (
	MsgInvalidCredentials = "Email/Username atau password salah"
	MsgUnauthorized       = "Unauthorized"
	MsgInvalidToken       = "Invalid token"
	MsgInvalidTokenFormat = "Invalid token format"
	MsgUserNotFound       = "User not found"
	MsgInternal           = "Internal server error"
)

// Error is a tagged auth failure carrying a fixed HTTP status and a message
// safe to show to the user. Kind is the sentinel it matches; Err is the
// underlying cause, if any.
type Error struct {
	Status  int
	Message string
	Kind    error
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is matches the sentinel kind.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidCredentials() *Error {
	return &Error{Status: http.StatusUnauthorized, Message: MsgInvalidCredentials, Kind: ErrInvalidCredentials}
}

func unauthorized(msg string, cause error) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: msg, Kind: ErrUnauthorized, Err: cause}
}

func internal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: MsgInternal, Err: cause}
}

// StatusAndMessage maps any error onto a status code and user-facing
// message. Errors that are not *Error become 500.
func StatusAndMessage(err error) (int, string) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status, ae.Message
	}
	return http.StatusInternalServerError, MsgInternal
}
