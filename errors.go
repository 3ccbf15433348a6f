package sessiongate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/sessiongate/identity"
	"github.com/MrEthical07/sessiongate/middleware"
)

var (
	// ErrMissingFields is returned when a required form field is absent.
	ErrMissingFields = errors.New("missing fields")
	// ErrUnauthorized is returned by protected routes without a published user.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAuthFailure wraps internal failures of signup and login.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrStorageFailure wraps rejected or failed KV operations.
	ErrStorageFailure = errors.New("storage failure")
	// ErrSetFailed is returned when the actor refuses a KV write.
	ErrSetFailed = fmt.Errorf("%w: set rejected", ErrStorageFailure)
	// ErrGetFailed is returned when a KV read fails.
	ErrGetFailed = fmt.Errorf("%w: get failed", ErrStorageFailure)
	// ErrDecodeFailure is the non-fatal claims decode error recorded by the
	// session middleware.
	ErrDecodeFailure = middleware.ErrDecode
)

// errorResponse maps err to the status and client-safe message. Internal
// causes never reach the body.
func errorResponse(err error) (int, string) {
	var authErr *identity.AuthError
	switch {
	case errors.As(err, &authErr):
		return http.StatusBadRequest, authErr.Error()
	case errors.Is(err, ErrMissingFields):
		return http.StatusBadRequest, "Missing fields"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, ErrSetFailed):
		return http.StatusBadRequest, "Failed to set data"
	case errors.Is(err, ErrGetFailed):
		return http.StatusBadRequest, "Failed to get data"
	case errors.Is(err, ErrAuthFailure):
		return http.StatusBadRequest, "Authentication failed"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
