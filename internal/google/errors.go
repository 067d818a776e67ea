package google

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected means the user has no stored Google credential at all.
	// The UI turns this into a "connect your Google account" call to action.
	ErrNotConnected = errors.New("google calendar not connected")

	// ErrTokenExpiredNoRefresh means the stored access token is expired and
	// no refresh token is available to renew it.
	ErrTokenExpiredNoRefresh = errors.New("google token expired and no refresh token available")

	// ErrRefreshFailed means the refresh token exchange was rejected by the
	// provider's token endpoint.
	ErrRefreshFailed = errors.New("google token refresh failed")
)

// APIError carries the HTTP status of a non-2xx Google Calendar response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("google calendar api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("google calendar api error: status %d", e.StatusCode)
}
