package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError(CodeTokenExpired, "token has expired"))

	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, CodeTokenExpired, CodeOf(err))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := WrapError(CodeServiceUnavailable, "token endpoint unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "token endpoint unreachable: dial tcp: timeout", err.Error())
}

func TestCodeStatus(t *testing.T) {
	tests := map[Code]int{
		CodeInvalidAuthCode:       http.StatusBadRequest,
		CodeConfiguration:         http.StatusInternalServerError,
		CodeServiceUnavailable:    http.StatusServiceUnavailable,
		CodeDomainRestricted:      http.StatusForbidden,
		CodeIncompleteProfileData: http.StatusBadGateway,
		CodeTokenExpired:          http.StatusUnauthorized,
		CodeTokenSigning:          http.StatusInternalServerError,
		CodeMissingToken:          http.StatusUnauthorized,
		Code("made_up"):           http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, code.Status(), "code %s", code)
	}
}

func TestDomainRestrictedError(t *testing.T) {
	err := DomainRestrictedError(CodeDomainRestricted, "other.com", "wareongo.com")

	require.ErrorIs(t, err, ErrDomainRestricted)
	assert.Equal(t, "other.com", err.Metadata[MetaUserDomain])
	assert.Equal(t, "wareongo.com", err.Metadata[MetaAllowedDomain])
	assert.Equal(t, http.StatusForbidden, err.Status())
}

func TestCodeOf_Untyped(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Your session has expired. Please sign in again.",
		UserMessage(WrapError(CodeTokenExpired, "jwt: token is expired", errors.New("raw"))))
	assert.Equal(t, "Only wareongo.com accounts can sign in. You used a other.com account.",
		UserMessage(DomainRestrictedError(CodeDomainRestricted, "other.com", "wareongo.com")))
	assert.Equal(t, "Your account's domain is not allowed.", UserMessage(NewError(CodeInsufficientDomain, "x")))
	assert.Equal(t, genericUserMessage, UserMessage(errors.New(`{"error":"provider body"}`)))
	assert.Equal(t, genericUserMessage, UserMessage(NewError(Code("made_up"), "x")))
}
