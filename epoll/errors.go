package epoll

import "errors"

var (
	// ErrAlreadyRegistered is returned by Add for an endpoint the monitor
	// already tracks.
	ErrAlreadyRegistered = errors.New("endpoint already registered")

	// ErrNotFound is returned by Modify and Delete for an untracked endpoint.
	ErrNotFound = errors.New("endpoint not registered")

	// ErrClosed is returned by any operation on a closed monitor, including
	// a Wait that was blocked when the monitor closed.
	ErrClosed = errors.New("monitor closed")

	// ErrInvalidArgument covers malformed masks, nil endpoints and
	// non-positive capacities.
	ErrInvalidArgument = errors.New("invalid argument")
)

// result names an operation outcome for metrics.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}
