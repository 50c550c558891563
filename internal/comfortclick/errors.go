package comfortclick

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrAuthorization matches every AuthorizationError.
	ErrAuthorization = errors.New("comfortclick: authorization failed")

	// ErrTransport matches every TransportError.
	ErrTransport = errors.New("comfortclick: unexpected http status")
)

// TransportError reports a panel response with a status other than 200 OK.
// It is never retried inside the client.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("comfortclick: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// AuthorizationError reports a login the panel accepted at the HTTP level
// but refused logically, or one that issued no session token.
type AuthorizationError struct {
	Reason string
	// Status is the panel's logical login status, empty when not applicable.
	Status string
}

func (e *AuthorizationError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("comfortclick: %s (status %q)", e.Reason, e.Status)
	}
	return "comfortclick: " + e.Reason
}

// Is reports whether target is ErrAuthorization.
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrAuthorization
}
