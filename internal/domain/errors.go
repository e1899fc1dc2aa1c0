package domain

import (
	"errors"
	"net/http"
)

var (
	// Config errors
	ErrMissingConfig = errors.New("missing required configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// State token errors
	ErrInvalidState   = errors.New("invalid state token")
	ErrExpiredState   = errors.New("expired state token")
	ErrMalformedState = errors.New("malformed state token")
	ErrStateMismatch  = errors.New("state token not issued to this browser")
)

// Code is a machine-readable error kind. It is stable across releases and is
// what clients see in the "code" field of error responses.
type Code string

const (
	// Identity provider errors
	CodeInvalidAuthCode         Code = "invalid_auth_code"
	CodeConfiguration           Code = "configuration_error"
	CodeServiceUnavailable      Code = "service_unavailable"
	CodeUnauthorized            Code = "unauthorized"
	CodeInvalidAccessToken      Code = "invalid_access_token"
	CodeInsufficientPermissions Code = "insufficient_permissions"
	CodeDomainRestricted        Code = "domain_restricted"
	CodeIncompleteProfileData   Code = "incomplete_profile_data"
	CodeResponseError           Code = "response_error"
	CodeOAuthFlow               Code = "oauth_flow_error"

	// Session token errors
	CodeTokenExpired        Code = "token_expired"
	CodeInvalidToken        Code = "invalid_token"
	CodeInvalidTokenFormat  Code = "invalid_token_format"
	CodeInvalidTokenPayload Code = "invalid_token_payload"
	CodeTokenNotActive      Code = "token_not_active"
	CodeEmptyToken          Code = "empty_token"
	CodeInvalidDomain       Code = "invalid_domain"
	CodeTokenSigning        Code = "token_signing_error"
	CodeSessionExpired      Code = "session_expired"

	// Request gatekeeping errors
	CodeMissingToken           Code = "missing_token"
	CodeAuthenticationRequired Code = "authentication_required"
	CodeInsufficientDomain     Code = "insufficient_domain"
	CodeInvalidState           Code = "invalid_state"
	CodeInvalidRequest         Code = "invalid_request"
)

var codeStatus = map[Code]int{
	CodeInvalidAuthCode:         http.StatusBadRequest,
	CodeConfiguration:           http.StatusInternalServerError,
	CodeServiceUnavailable:      http.StatusServiceUnavailable,
	CodeUnauthorized:            http.StatusUnauthorized,
	CodeInvalidAccessToken:      http.StatusUnauthorized,
	CodeInsufficientPermissions: http.StatusForbidden,
	CodeDomainRestricted:        http.StatusForbidden,
	CodeIncompleteProfileData:   http.StatusBadGateway,
	CodeResponseError:           http.StatusBadGateway,
	CodeOAuthFlow:               http.StatusInternalServerError,

	CodeTokenExpired:        http.StatusUnauthorized,
	CodeInvalidToken:        http.StatusBadRequest,
	CodeInvalidTokenFormat:  http.StatusBadRequest,
	CodeInvalidTokenPayload: http.StatusBadRequest,
	CodeTokenNotActive:      http.StatusUnauthorized,
	CodeEmptyToken:          http.StatusUnauthorized,
	CodeInvalidDomain:       http.StatusForbidden,
	CodeTokenSigning:        http.StatusInternalServerError,
	CodeSessionExpired:      http.StatusUnauthorized,

	CodeMissingToken:           http.StatusUnauthorized,
	CodeAuthenticationRequired: http.StatusUnauthorized,
	CodeInsufficientDomain:     http.StatusForbidden,
	CodeInvalidState:           http.StatusBadRequest,
	CodeInvalidRequest:         http.StatusBadRequest,
}

// Status returns the HTTP status associated with the code, 500 for unknown codes.
func (c Code) Status() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Metadata keys carried by domain restriction errors.
const (
	MetaUserDomain    = "userDomain"
	MetaAllowedDomain = "allowedDomain"
)

// Error is the typed error returned by the gateway, the token service and the
// middleware. Message is internal and may be logged; it is never shown to a
// browser on the callback path (see UserMessage).
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code, so sentinel
// values like ErrTokenExpired work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Status returns the HTTP status for this error's code.
func (e *Error) Status() int { return e.Code.Status() }

// NewError creates a typed error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a typed error with an underlying cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// DomainRestrictedError reports an authenticated user from the wrong organization.
func DomainRestrictedError(code Code, userDomain, allowedDomain string) *Error {
	return &Error{
		Code:    code,
		Message: "email domain " + userDomain + " is not allowed",
		Metadata: map[string]string{
			MetaUserDomain:    userDomain,
			MetaAllowedDomain: allowedDomain,
		},
	}
}

// AsError extracts a typed error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of the first typed error in err's chain, or "".
func CodeOf(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidAuthCode         = &Error{Code: CodeInvalidAuthCode}
	ErrConfiguration           = &Error{Code: CodeConfiguration}
	ErrServiceUnavailable      = &Error{Code: CodeServiceUnavailable}
	ErrUnauthorized            = &Error{Code: CodeUnauthorized}
	ErrInvalidAccessToken      = &Error{Code: CodeInvalidAccessToken}
	ErrInsufficientPermissions = &Error{Code: CodeInsufficientPermissions}
	ErrDomainRestricted        = &Error{Code: CodeDomainRestricted}
	ErrIncompleteProfileData   = &Error{Code: CodeIncompleteProfileData}
	ErrResponseError           = &Error{Code: CodeResponseError}
	ErrOAuthFlow               = &Error{Code: CodeOAuthFlow}
	ErrTokenExpired            = &Error{Code: CodeTokenExpired}
	ErrInvalidToken            = &Error{Code: CodeInvalidToken}
	ErrInvalidTokenPayload     = &Error{Code: CodeInvalidTokenPayload}
	ErrTokenNotActive          = &Error{Code: CodeTokenNotActive}
	ErrEmptyToken              = &Error{Code: CodeEmptyToken}
	ErrInvalidDomain           = &Error{Code: CodeInvalidDomain}
	ErrTokenSigning            = &Error{Code: CodeTokenSigning}
	ErrSessionExpired          = &Error{Code: CodeSessionExpired}
)
