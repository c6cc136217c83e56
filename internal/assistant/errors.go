package assistant

import (
	"errors"

	"github.com/kalambet/bizassist/internal/upstream"
)

var (
	// ErrMissingAPIKey is the configuration error returned when no upstream
	// credential is available. It is raised before any I/O.
	ErrMissingAPIKey = errors.New("OpenAI API key not configured")

	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// IsConfigurationError reports whether err is a missing-configuration failure.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingAPIKey)
}

// IsUpstreamError reports whether err came from a non-success upstream status.
func IsUpstreamError(err error) bool {
	var apiErr *upstream.APIError
	return errors.As(err, &apiErr)
}
