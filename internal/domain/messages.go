package domain

import "fmt"

var userMessages = map[Code]string{
	CodeInvalidAuthCode:         "The sign-in link has expired or was already used. Please try again.",
	CodeConfiguration:           "Sign-in is not configured correctly. Please contact an administrator.",
	CodeServiceUnavailable:      "Google sign-in is temporarily unavailable. Please try again shortly.",
	CodeUnauthorized:            "Sign-in is not configured correctly. Please contact an administrator.",
	CodeInvalidAccessToken:      "Google did not accept the sign-in. Please try again.",
	CodeInsufficientPermissions: "Please allow access to your email address and profile to sign in.",
	CodeIncompleteProfileData:   "Your Google account did not provide an email address.",
	CodeResponseError:           "Google returned an unexpected response. Please try again.",
	CodeOAuthFlow:               "Sign-in failed. Please try again.",
	CodeTokenExpired:            "Your session has expired. Please sign in again.",
	CodeInvalidToken:            "Your session is invalid. Please sign in again.",
	CodeInvalidTokenFormat:      "Authorization header must use the Bearer scheme.",
	CodeInvalidTokenPayload:     "Your session is invalid. Please sign in again.",
	CodeTokenNotActive:          "Your session is not active yet.",
	CodeEmptyToken:              "Access token is required.",
	CodeTokenSigning:            "Sign-in failed. Please try again.",
	CodeSessionExpired:          "Your session has reached its maximum age. Please sign in again.",
	CodeMissingToken:            "Access token is required.",
	CodeAuthenticationRequired:  "Authentication is required.",
	CodeInvalidState:            "Your sign-in session expired. Please try again.",
	CodeInvalidRequest:          "The sign-in request was invalid. Please try again.",
}

const genericUserMessage = "Sign-in failed. Please try again."

// UserMessage returns text that is safe to show a user for err. It never
// includes provider responses or internal details.
func UserMessage(err error) string {
	e, ok := AsError(err)
	if !ok {
		return genericUserMessage
	}
	switch e.Code {
	case CodeDomainRestricted, CodeInvalidDomain, CodeInsufficientDomain:
		allowed := e.Metadata[MetaAllowedDomain]
		user := e.Metadata[MetaUserDomain]
		if allowed != "" && user != "" {
			return fmt.Sprintf("Only %s accounts can sign in. You used a %s account.", allowed, user)
		}
		if allowed != "" {
			return fmt.Sprintf("Only %s accounts can sign in.", allowed)
		}
		return "Your account's domain is not allowed."
	}
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	return genericUserMessage
}
