package social

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-success response from the Twitter API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter API error: %d - %s", e.StatusCode, e.Body)
}

// ErrHandshakeInvalid is returned for a callback whose state token is
// unknown or outside its validity window.
var ErrHandshakeInvalid = errors.New("invalid or expired state")

// IsRateLimited reports whether err carries the platform's shared-budget
// rate-limit signal. The string match covers errors that crossed a
// fmt.Errorf boundary and lost the typed wrapper.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}

	return strings.Contains(err.Error(), "Too Many Requests") ||
		strings.Contains(err.Error(), "429")
}

// IsAuthError reports whether err indicates the access token was rejected.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}
