// Package middleware gates protected endpoints on a valid session token.
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BlackMission/gatekeeper/internal/auth"
	"github.com/BlackMission/gatekeeper/internal/domain"
	"github.com/BlackMission/gatekeeper/internal/respond"
)

// Response headers set by CheckExpirationWindow.
const (
	HeaderExpiringSoon = "X-Token-Expiring-Soon"
	HeaderExpiresIn    = "X-Token-Expires-In"
)

const realm = "gatekeeper"

// Auth verifies bearer tokens and attaches the caller's identity.
type Auth struct {
	tokens auth.TokenVerifier
	logger *zap.Logger
	now    func() time.Time
}

// NewAuth creates the authentication middleware set.
func NewAuth(tokens auth.TokenVerifier, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auth{tokens: tokens, logger: logger.Named("middleware"), now: time.Now}
}

// SetNow overrides the time function (for testing).
func (a *Auth) SetNow(fn func() time.Time) {
	a.now = fn
}

// Authenticate rejects requests without a valid session token.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			w.Header().Set("WWW-Authenticate", WWWAuthenticate(nil))
			respond.Error(w, http.StatusUnauthorized, domain.CodeMissingToken, "Access token is required.", nil)
			return
		}

		claims, err := a.verify(header)
		if err != nil {
			a.reject(w, r, err)
			return
		}

		ctx := WithIdentity(r.Context(), domain.IdentityFromClaims(*claims), &domain.TokenMetadata{
			IssuedAt:  claims.IssuedAt,
			ExpiresAt: claims.ExpiresAt,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthenticateOptional attaches an identity when a valid token is present and
// otherwise lets the request through anonymously.
func (a *Auth) AuthenticateOptional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.verify(header)
		if err != nil {
			a.logger.Debug("optional authentication failed", zap.String("code", string(domain.CodeOf(err))))
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithIdentity(r.Context(), domain.IdentityFromClaims(*claims), &domain.TokenMetadata{
			IssuedAt:  claims.IssuedAt,
			ExpiresAt: claims.ExpiresAt,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireDomain only admits identities from allowed. It must run after
// Authenticate or AuthenticateOptional.
func RequireDomain(allowed string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", WWWAuthenticate(nil))
				respond.Error(w, http.StatusUnauthorized, domain.CodeAuthenticationRequired, "Authentication is required.", nil)
				return
			}
			if !domain.SameDomain(identity.Domain, allowed) {
				err := domain.DomainRestrictedError(domain.CodeInsufficientDomain, identity.Domain, allowed)
				respond.Error(w, http.StatusForbidden, domain.CodeInsufficientDomain, domain.UserMessage(err), err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckExpirationWindow flags responses whose token expires within threshold.
// It never rejects a request.
func (a *Auth) CheckExpirationWindow(threshold time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var expiresAt time.Time
			if meta, ok := TokenMetadataFromContext(r.Context()); ok {
				expiresAt = meta.ExpiresAt
			} else if header := r.Header.Get("Authorization"); header != "" {
				if claims, err := a.tokens.DecodeUnverified(header); err == nil {
					expiresAt = claims.ExpiresAt
				}
			}

			if !expiresAt.IsZero() {
				remaining := expiresAt.Sub(a.now())
				if remaining > 0 && remaining < threshold {
					w.Header().Set(HeaderExpiringSoon, "true")
					w.Header().Set(HeaderExpiresIn, strconv.FormatInt(int64(remaining/time.Second), 10))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Auth) verify(header string) (*domain.SessionClaims, error) {
	if err := CheckScheme(header, true); err != nil {
		return nil, err
	}
	return a.tokens.Verify(header)
}

// CheckScheme rejects an Authorization header whose scheme is not Bearer with
// invalid_token_format. A header carrying only a token passes when allowBare is set.
func CheckScheme(header string, allowBare bool) error {
	scheme, _, found := strings.Cut(strings.TrimSpace(header), " ")
	switch {
	case found && strings.EqualFold(scheme, "bearer"):
		return nil
	case !found && allowBare:
		return nil
	}
	return domain.NewError(domain.CodeInvalidTokenFormat, "authorization scheme must be Bearer")
}

func (a *Auth) reject(w http.ResponseWriter, r *http.Request, err error) {
	status, code := RejectionStatus(err)
	a.logger.Info("request rejected",
		zap.String("path", r.URL.Path),
		zap.String("code", string(code)),
		zap.Int("status", status),
	)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", WWWAuthenticate(err))
	}
	respond.Error(w, status, code, domain.UserMessage(err), err)
}

// RejectionStatus maps a verification failure to its response status and code.
func RejectionStatus(err error) (int, domain.Code) {
	typed, ok := domain.AsError(err)
	if !ok {
		return http.StatusUnauthorized, domain.CodeInvalidToken
	}
	switch typed.Code {
	case domain.CodeTokenExpired,
		domain.CodeInvalidToken,
		domain.CodeInvalidTokenFormat,
		domain.CodeInvalidTokenPayload,
		domain.CodeEmptyToken,
		domain.CodeTokenNotActive,
		domain.CodeSessionExpired:
		return http.StatusUnauthorized, typed.Code
	case domain.CodeInvalidDomain:
		return http.StatusForbidden, typed.Code
	}
	if status := typed.Status(); status >= http.StatusBadRequest {
		return status, typed.Code
	}
	return http.StatusUnauthorized, typed.Code
}

// WWWAuthenticate builds an RFC 6750 challenge. A nil err means no token was sent.
func WWWAuthenticate(err error) string {
	parts := []string{fmt.Sprintf(`realm=%q`, realm)}
	if err != nil {
		parts = append(parts, `error="invalid_token"`)
		if code := domain.CodeOf(err); code != "" {
			parts = append(parts, fmt.Sprintf(`error_description=%q`, string(code)))
		}
	}
	return "Bearer " + strings.Join(parts, ", ")
}
