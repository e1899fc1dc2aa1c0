package handler

import (
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/BlackMission/gatekeeper/internal/auth"
	"github.com/BlackMission/gatekeeper/internal/domain"
)

// Messages for provider-reported errors. Raw provider text is never shown.
var providerErrorMessages = map[string]string{
	"access_denied":             "Sign-in was cancelled. You need to grant access to continue.",
	"invalid_request":           "The sign-in request was invalid. Please try again.",
	"unauthorized_client":       "This application is not authorized to use Google sign-in.",
	"unsupported_response_type": "Google sign-in is misconfigured. Please contact an administrator.",
	"invalid_scope":             "The requested permissions are not available. Please contact an administrator.",
	"server_error":              "Google encountered an error. Please try again.",
	"temporarily_unavailable":   "Google sign-in is temporarily unavailable. Please try again shortly.",
}

const (
	genericProviderMessage = "Sign-in failed. Please try again."
	missingCodeMessage     = "Authorization code is required."
	expiredStateMessage    = "Your sign-in session expired. Please try again."
)

// ProviderErrorMessage returns the user-facing text for a provider error parameter.
func ProviderErrorMessage(providerError string) string {
	if msg, ok := providerErrorMessages[providerError]; ok {
		return msg
	}
	return genericProviderMessage
}

// Callback handles GET and POST /auth/google/callback.
// It checks the provider response and that the state was issued to this
// browser, completes the sign-in and redirects to the front end with the
// session token, or to its error page. The login cookie is always cleared.
func Callback(authn *auth.Authenticator, states auth.StateService, frontendURL string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var nonce string
		if states != nil {
			nonce = loginNonce(r)
			clearLoginCookie(w, r)
		}

		if err := r.ParseForm(); err != nil {
			redirectError(w, r, frontendURL, "Invalid callback request.", string(domain.CodeOAuthFlow), "")
			return
		}

		if providerError := r.Form.Get("error"); providerError != "" {
			logger.Info("provider reported an error", zap.String("error", providerError))
			code := providerError
			if _, known := providerErrorMessages[providerError]; !known {
				code = "oauth_error"
			}
			redirectError(w, r, frontendURL, ProviderErrorMessage(providerError), code, "")
			return
		}

		code := r.Form.Get("code")
		if code == "" {
			redirectError(w, r, frontendURL, missingCodeMessage, string(domain.CodeInvalidAuthCode), "")
			return
		}

		clientState := r.Form.Get("state")
		if states != nil {
			payload, err := states.Validate(r.Form.Get("state"), nonce)
			if err != nil {
				logger.Info("login state rejected", zap.Error(err), zap.Bool("cookie_present", nonce != ""))
				redirectError(w, r, frontendURL, expiredStateMessage, string(domain.CodeInvalidState), "")
				return
			}
			clientState = payload.ClientState
		}

		result, err := authn.SignIn(r.Context(), code)
		if err != nil {
			errCode := domain.CodeOf(err)
			if errCode == "" {
				errCode = domain.CodeOAuthFlow
			}
			redirectError(w, r, frontendURL, domain.UserMessage(err), string(errCode), clientState)
			return
		}

		user, err := json.Marshal(result.User)
		if err != nil {
			redirectError(w, r, frontendURL, genericProviderMessage, string(domain.CodeOAuthFlow), clientState)
			return
		}
		params := url.Values{
			"token": {result.Token},
			"user":  {string(user)},
		}
		if clientState != "" {
			params.Set("state", clientState)
		}
		redirect(w, r, frontendURL, "/auth/callback", params)
	}
}

func redirectError(w http.ResponseWriter, r *http.Request, frontendURL, message, code, clientState string) {
	params := url.Values{
		"message": {message},
		"code":    {code},
	}
	if clientState != "" {
		params.Set("state", clientState)
	}
	redirect(w, r, frontendURL, "/auth/error", params)
}

func redirect(w http.ResponseWriter, r *http.Request, frontendURL, path string, params url.Values) {
	http.Redirect(w, r, frontendURL+path+"?"+params.Encode(), http.StatusFound)
}
