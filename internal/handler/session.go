package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BlackMission/gatekeeper/internal/auth"
	"github.com/BlackMission/gatekeeper/internal/domain"
	"github.com/BlackMission/gatekeeper/internal/middleware"
	"github.com/BlackMission/gatekeeper/internal/respond"
)

type refreshResponse struct {
	Token     string            `json:"token"`
	ExpiresIn int64             `json:"expiresIn"`
	User      domain.PublicUser `json:"user"`
}

// Refresh handles POST /auth/refresh.
// The presented token must still be valid; the response carries its replacement.
func Refresh(tokens auth.TokenService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			w.Header().Set("WWW-Authenticate", middleware.WWWAuthenticate(nil))
			respond.Error(w, http.StatusUnauthorized, domain.CodeMissingToken, "Access token is required.", nil)
			return
		}

		signed, claims, err := refreshBearer(tokens, header)
		if err != nil {
			status, code := middleware.RejectionStatus(err)
			logger.Info("token refresh rejected", zap.String("code", string(code)))
			if status == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", middleware.WWWAuthenticate(err))
			}
			respond.Error(w, status, code, domain.UserMessage(err), err)
			return
		}

		respond.JSON(w, http.StatusOK, refreshResponse{
			Token:     signed,
			ExpiresIn: int64(claims.ExpiresAt.Sub(claims.IssuedAt).Seconds()),
			User:      domain.IdentityFromClaims(*claims).Public(),
		})
	}
}

// refreshBearer requires the Bearer scheme; a bare token is not accepted here.
func refreshBearer(tokens auth.TokenService, header string) (string, *domain.SessionClaims, error) {
	if err := middleware.CheckScheme(header, false); err != nil {
		return "", nil, err
	}
	return tokens.Refresh(header)
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Logout handles POST /auth/logout. Tokens are stateless, so this only tells
// the client to discard its copy; it always succeeds.
func Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logged out successfully"})
	}
}

type currentUserResponse struct {
	User domain.PublicUser `json:"user"`
}

// CurrentUser handles GET /auth/me behind the Authenticate middleware.
func CurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", middleware.WWWAuthenticate(nil))
			respond.Error(w, http.StatusUnauthorized, domain.CodeAuthenticationRequired, "Authentication is required.", nil)
			return
		}
		respond.JSON(w, http.StatusOK, currentUserResponse{User: identity.Public()})
	}
}
