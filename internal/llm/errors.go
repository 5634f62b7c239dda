package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError indicates the provider rejected our credentials (401/403).
// It is terminal for the current request; retrying without a
// configuration change will not help.
type AuthError struct {
	Provider string
	Status   int
	Body     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (%d): %s", e.Provider, e.Status, e.Body)
}

// TransportError covers every other gateway failure: connection
// errors, non-2xx statuses, malformed response bodies.
type TransportError struct {
	Provider string
	Status   int // 0 when the request never completed
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: request failed (%d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// statusError converts a non-2xx response into the appropriate typed
// error. 401 and 403 map to AuthError, everything else to TransportError.
func statusError(provider string, status int, body string) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &AuthError{Provider: provider, Status: status, Body: body}
	}
	return &TransportError{
		Provider: provider,
		Status:   status,
		Err:      fmt.Errorf("%s", body),
	}
}
