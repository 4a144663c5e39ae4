package mercury

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError is a credential or login failure. It is not retried within a
// cycle.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AuthExpiredError is an expired-session failure. The coordinator
// re-authenticates exactly once per cycle when it sees this.
type AuthExpiredError struct {
	Err error
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("session expired: %v", e.Err)
}

func (e *AuthExpiredError) Unwrap() error { return e.Err }

// UpstreamError is any other network/API/server fault. The original message
// is preserved for diagnostics.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

var errUnauthenticated = errors.New("could not establish a session")

// The upstream client library signals an expired session only through its
// error message.
var expiredMarkers = []string{"tokens expired", "token refresh failed"}

// Classify wraps an error from the upstream client into the taxonomy. An
// expired-session message becomes AuthExpiredError, everything else
// becomes UpstreamError for the given operation.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var expired *AuthExpiredError
	if errors.As(err, &expired) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range expiredMarkers {
		if strings.Contains(msg, marker) {
			return &AuthExpiredError{Err: err}
		}
	}
	return &UpstreamError{Op: op, Err: err}
}

// IsAuthExpired reports whether err is an expired-session failure.
func IsAuthExpired(err error) bool {
	var e *AuthExpiredError
	return errors.As(err, &e)
}

// IsAuth reports whether err is a hard authentication failure.
func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}
