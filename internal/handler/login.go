// Package handler implements the authentication endpoints.
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BlackMission/gatekeeper/internal/auth"
	"github.com/BlackMission/gatekeeper/internal/domain"
	"github.com/BlackMission/gatekeeper/internal/respond"
)

// Login handles GET /auth/google[?state=...].
// It mints a browser-bound state value, sets the login cookie and redirects to
// the provider's consent screen. An optional state query parameter is handed
// back to the front end after sign-in.
func Login(gateway auth.IdentityGateway, states auth.StateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, _, err := startLogin(w, r, gateway, states)
		if err != nil {
			logger.Error("initiating login failed", zap.Error(err))
			respond.DomainError(w, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

type loginURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state,omitempty"`
}

// LoginURL handles GET /auth/google/url for front ends that navigate themselves.
// The request must be made with credentials so the login cookie is stored.
func LoginURL(gateway auth.IdentityGateway, states auth.StateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, state, err := startLogin(w, r, gateway, states)
		if err != nil {
			logger.Error("initiating login failed", zap.Error(err))
			respond.DomainError(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, loginURLResponse{URL: authURL, State: state})
	}
}

// startLogin returns the provider URL and the state value it carries. Without a
// state service the caller's state passes through unsigned.
func startLogin(w http.ResponseWriter, r *http.Request, gateway auth.IdentityGateway, states auth.StateService) (string, string, error) {
	if err := gateway.ValidateConfiguration(); err != nil {
		return "", "", err
	}
	clientState := r.URL.Query().Get("state")
	if states == nil {
		return gateway.AuthorizationURL(clientState), clientState, nil
	}

	value, payload, err := states.Generate(clientState)
	if err != nil {
		if _, ok := domain.AsError(err); ok {
			return "", "", err
		}
		return "", "", domain.WrapError(domain.CodeOAuthFlow, "generating login state", err)
	}
	setLoginCookie(w, r, payload)
	return gateway.AuthorizationURL(value), value, nil
}
