package platform

import "errors"

var (
	// ErrTransient marks rate limits and server-side failures on a single
	// request. Batches count these as failed requests and keep going.
	ErrTransient = errors.New("transient platform error")

	// ErrPermission marks requests the platform refused, such as direct
	// messages to members who block them.
	ErrPermission = errors.New("platform permission denied")

	// ErrNotFound marks requests against entities that no longer exist.
	ErrNotFound = errors.New("platform entity not found")

	// ErrPromptExpired is returned when a reaction prompt times out without
	// a valid response. Callers treat it as an explicit denial.
	ErrPromptExpired = errors.New("confirmation prompt expired")
)

// ClassOf buckets an error into the platform error taxonomy for logging.
func ClassOf(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPromptExpired):
		return "prompt_expired"
	default:
		return "other"
	}
}
