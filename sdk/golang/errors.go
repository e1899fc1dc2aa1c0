package gatekeeper

import "fmt"

// Error is returned for every failed gatekeeper call. Code is the server's
// machine-readable error code and is empty for transport failures.
type Error struct {
	Code          string
	Message       string
	StatusCode    int
	AllowedDomain string
	UserDomain    string
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.StatusCode != 0:
		return fmt.Sprintf("gatekeeper: %s: %s (status %d)", e.Code, e.Message, e.StatusCode)
	case e.StatusCode != 0:
		return fmt.Sprintf("gatekeeper: %s (status %d)", e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("gatekeeper: %s", e.Message)
	}
}

// Is matches on Code, so errors.Is(err, gatekeeper.ErrTokenExpired) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code != "" && t.Code == e.Code
}

// Errors a caller typically branches on.
var (
	ErrMissingToken       = &Error{Code: "missing_token"}
	ErrTokenExpired       = &Error{Code: "token_expired"}
	ErrInvalidToken       = &Error{Code: "invalid_token"}
	ErrSessionExpired     = &Error{Code: "session_expired"}
	ErrInvalidDomain      = &Error{Code: "invalid_domain"}
	ErrDomainRestricted   = &Error{Code: "domain_restricted"}
	ErrServiceUnavailable = &Error{Code: "service_unavailable"}
)
