package apperr

import "errors"

var (
	// ErrInvalid is returned when the input fails domain validation.
	ErrInvalid = errors.New("invalid input")

	// ErrNotFound indicates that the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates that the actor lacks the capability for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated is returned when no valid credentials were presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidTransition indicates that the target status is not reachable from the current one.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict indicates a lost compare-and-swap: someone else changed the order first.
	ErrConflict = errors.New("conflict")

	// ErrDriverUnavailable indicates that the driver is not online or already reserved.
	ErrDriverUnavailable = errors.New("driver unavailable")

	// ErrUnreachable indicates that no online driver could be notified.
	ErrUnreachable = errors.New("no drivers reachable")
)

// Retryable reports whether re-reading state and retrying can succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnreachable)
}
