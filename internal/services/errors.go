package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrMalformed     = errors.New("malformed response")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Marker returns the sentinel attached to err, or nil when none is present.
func Marker(err error) error {
	for _, marker := range []error{
		ErrConfiguration,
		ErrValidation,
		ErrNotFound,
		ErrUnauthorized,
		ErrRateLimited,
		ErrMalformed,
		ErrTransient,
	} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

// IsPermanent reports whether err carries a marker that retrying cannot fix.
func IsPermanent(err error) bool {
	switch Marker(err) {
	case ErrConfiguration, ErrValidation, ErrNotFound, ErrUnauthorized, ErrMalformed:
		return true
	default:
		return false
	}
}

// Hint returns a short operator-facing remediation hint for err.
func Hint(err error) string {
	switch Marker(err) {
	case ErrConfiguration:
		return "check coachflow config"
	case ErrUnauthorized:
		return "verify credentials and sharing permissions"
	case ErrNotFound:
		return "confirm the referenced object or folder still exists"
	case ErrRateLimited:
		return "provider is throttling; the next run retries"
	case ErrMalformed:
		return "provider returned an unexpected payload; inspect the response"
	case ErrValidation:
		return "fix the source data and rerun"
	default:
		return "transient failure; the next scheduled run retries"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// HTTPStatusMarker maps an HTTP status code returned by an external API to the
// marker used to classify it.
func HTTPStatusMarker(code int) error {
	switch {
	case code == 401 || code == 403:
		return ErrUnauthorized
	case code == 404:
		return ErrNotFound
	case code == 429:
		return ErrRateLimited
	case code >= 500:
		return ErrTransient
	case code >= 400:
		return ErrValidation
	default:
		return ErrMalformed
	}
}
