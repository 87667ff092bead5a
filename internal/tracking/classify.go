package tracking

import (
	"errors"

	"coachflow/internal/services"
)

// StatusForPollError maps a status-poll failure to the status to persist.
// The boolean is false when the row must be left untouched (rate limiting).
func StatusForPollError(err error) (Status, bool) {
	switch {
	case errors.Is(err, services.ErrRateLimited):
		return StatusRateLimited, false
	case errors.Is(err, services.ErrUnauthorized):
		return StatusAuthError, true
	case errors.Is(err, services.ErrNotFound):
		return StatusNotFoundError, true
	case errors.Is(err, services.ErrMalformed), errors.Is(err, services.ErrValidation):
		return StatusBadResponse, true
	default:
		return StatusFetchingStatusError, true
	}
}
