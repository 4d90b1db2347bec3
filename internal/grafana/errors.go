package grafana

import "fmt"

// AuthError reports an authentication or permission failure (401/403).
// Fatal: the API key is wrong, expired, or lacks the Editor role.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("grafana authentication failed (HTTP %d): %s", e.StatusCode, e.Body)
}

// RejectedError reports a definition the service refused (other 4xx).
// Fatal: retrying the same payload cannot succeed.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("grafana rejected the request (HTTP %d): %s", e.StatusCode, e.Body)
}

// TransientError reports a network or server-side failure that persisted
// through every retry attempt.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("grafana unreachable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
