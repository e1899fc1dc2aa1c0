package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/BlackMission/gatekeeper/internal/domain"
)

// LoginCookie carries the nonce binding a login state to the browser that
// started the login.
const LoginCookie = "gatekeeper_login"

// Sent on /auth/google/callback, nowhere else.
const loginCookiePath = "/auth/google"

func setLoginCookie(w http.ResponseWriter, r *http.Request, payload *domain.StatePayload) {
	http.SetCookie(w, &http.Cookie{
		Name:     LoginCookie,
		Value:    payload.Nonce,
		Path:     loginCookiePath,
		Expires:  payload.ExpiresAt,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearLoginCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     LoginCookie,
		Value:    "",
		Path:     loginCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func loginNonce(r *http.Request) string {
	c, err := r.Cookie(LoginCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
