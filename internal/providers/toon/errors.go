package toon

import (
	"errors"
	"fmt"
)

// AuthExchangeError indicates the authorization code could not be exchanged
// for tokens. It is terminal: the user must authorize again.
type AuthExchangeError struct {
	Description string
	Err         error
}

func (e *AuthExchangeError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization code exchange failed: %s", e.Description)
	}
	return fmt.Sprintf("authorization code exchange failed: %v", e.Err)
}

func (e *AuthExchangeError) Unwrap() error { return e.Err }

// TokenRefreshError indicates a refresh grant was rejected after retries.
// The session tokens are no longer usable and the device needs a new login.
type TokenRefreshError struct {
	Description string
	Err         error
}

func (e *TokenRefreshError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("token refresh failed: %s", e.Description)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// CommunicationError indicates the display is not reachable through the
// cloud. The vendor reports this as a 500 with a communication error body,
// so it has to be told apart from real server faults.
type CommunicationError struct {
	Description string
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("display unreachable: %s", e.Description)
}

// APIError is any other non-2xx vendor response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Body)
}

// IsCommunicationError reports whether err wraps a display communication
// failure.
func IsCommunicationError(err error) bool {
	var ce *CommunicationError
	return errors.As(err, &ce)
}

// IsUnauthorized reports whether err is a vendor rejection of the access
// token.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == 401
}
