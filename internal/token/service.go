// Package token issues and verifies the signed bearer tokens that carry a
// user's session. Tokens are self-contained HS256 JWTs; nothing is stored on
// the server, so a token stays valid until it expires.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BlackMission/gatekeeper/internal/domain"
)

const (
	// Issuer is the fixed "iss" claim of every session token.
	Issuer = "gatekeeper"
	// Audience is the fixed "aud" claim of every session token.
	Audience = "gatekeeper-api"
	// DefaultTTL applies when no lifetime is configured.
	DefaultTTL = 24 * time.Hour
)

var signingMethod = jwt.SigningMethodHS256

// Config holds token service settings.
type Config struct {
	Secret        []byte
	AllowedDomain string
	// TTL is a human-readable lifetime, see ParseTTL. Empty means DefaultTTL.
	TTL string
	// MaxSessionAge caps how long refreshes may extend a login. Zero disables the cap.
	MaxSessionAge time.Duration
}

// Service issues, verifies and refreshes session tokens.
type Service struct {
	secret        []byte
	allowedDomain string
	ttl           time.Duration
	maxSessionAge time.Duration
	parser        *jwt.Parser
	now           func() time.Time
	newID         func() string
}

// NewService creates a token service.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: token secret is required", domain.ErrMissingConfig)
	}
	allowed := strings.ToLower(strings.TrimSpace(cfg.AllowedDomain))
	if allowed == "" {
		return nil, fmt.Errorf("%w: allowed domain is required", domain.ErrMissingConfig)
	}

	ttl := DefaultTTL
	if cfg.TTL != "" {
		d, err := ParseTTL(cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("%w: token ttl: %v", domain.ErrInvalidConfig, err)
		}
		ttl = d
	}

	s := &Service{
		secret:        cfg.Secret,
		allowedDomain: allowed,
		ttl:           ttl,
		maxSessionAge: cfg.MaxSessionAge,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	// Signature, algorithm, expiry, issuer and audience are checked in one
	// parser call so no property can be validated without the others.
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// SetNow overrides the time function (for testing).
func (s *Service) SetNow(fn func() time.Time) {
	s.now = fn
}

// AllowedDomain returns the single domain sessions are restricted to.
func (s *Service) AllowedDomain() string { return s.allowedDomain }

// TTLSeconds returns the default token lifetime in seconds.
func (s *Service) TTLSeconds() int64 {
	return int64(s.ttl / time.Second)
}

type sessionClaims struct {
	UserID   string           `json:"id"`
	Email    string           `json:"email"`
	Name     string           `json:"name,omitempty"`
	Picture  string           `json:"picture,omitempty"`
	Domain   string           `json:"domain"`
	AuthTime *jwt.NumericDate `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

func (c *sessionClaims) toDomain() *domain.SessionClaims {
	out := &domain.SessionClaims{
		ID:       c.UserID,
		Email:    c.Email,
		Name:     c.Name,
		Picture:  c.Picture,
		Domain:   c.Domain,
		Issuer:   c.Issuer,
		Audience: []string(c.Audience),
		TokenID:  c.RegisteredClaims.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	switch {
	case c.AuthTime != nil:
		out.AuthTime = c.AuthTime.Time
	case c.IssuedAt != nil:
		out.AuthTime = c.IssuedAt.Time
	}
	return out
}

// Issue signs a new token for the identity. A non-positive ttl uses the
// configured lifetime.
func (s *Service) Issue(identity domain.IdentityPayload, ttl time.Duration) (string, error) {
	signed, _, err := s.issue(identity, ttl)
	return signed, err
}

func (s *Service) issue(identity domain.IdentityPayload, ttl time.Duration) (string, *domain.SessionClaims, error) {
	if strings.TrimSpace(identity.ID) == "" || strings.TrimSpace(identity.Email) == "" {
		return "", nil, domain.NewError(domain.CodeInvalidTokenPayload, "id and email are required to issue a token")
	}
	emailDomain, err := s.checkDomain(identity.Email, identity.Domain)
	if err != nil {
		return "", nil, err
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()
	authTime := identity.AuthTime
	if authTime.IsZero() {
		authTime = now
	}

	claims := &sessionClaims{
		UserID:   identity.ID,
		Email:    identity.Email,
		Name:     identity.Name,
		Picture:  identity.Picture,
		Domain:   emailDomain,
		AuthTime: jwt.NewNumericDate(authTime),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   identity.ID,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        s.newID(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, domain.WrapError(domain.CodeTokenSigning, "failed to sign session token", err)
	}
	return signed, claims.toDomain(), nil
}

// Verify checks a token (with or without a "Bearer " prefix) and returns its claims.
func (s *Service) Verify(raw string) (*domain.SessionClaims, error) {
	tokenString := stripScheme(raw)
	if tokenString == "" {
		return nil, domain.NewError(domain.CodeEmptyToken, "token is empty")
	}

	claims := &sessionClaims{}
	if _, err := s.parser.ParseWithClaims(tokenString, claims, s.keyFunc); err != nil {
		return nil, classify(err)
	}

	if claims.UserID == "" || claims.Email == "" {
		return nil, domain.NewError(domain.CodeInvalidTokenPayload, "token is missing id or email")
	}
	if _, err := s.checkDomain(claims.Email, claims.Domain); err != nil {
		return nil, err
	}
	return claims.toDomain(), nil
}

// Refresh verifies the presented token and issues a replacement with the same
// identity and a fresh expiry.
func (s *Service) Refresh(raw string) (string, *domain.SessionClaims, error) {
	current, err := s.Verify(raw)
	if err != nil {
		return "", nil, err
	}

	if s.maxSessionAge > 0 && s.now().Sub(current.AuthTime) > s.maxSessionAge {
		return "", nil, domain.NewError(domain.CodeSessionExpired, "session exceeded its maximum age, sign in again")
	}

	return s.issue(current.Identity(), 0)
}

// DecodeUnverified reads the claims without checking the signature. Use it
// only for advisory hints such as expiry warnings, never to authorize.
func (s *Service) DecodeUnverified(raw string) (*domain.SessionClaims, error) {
	tokenString := stripScheme(raw)
	if tokenString == "" {
		return nil, domain.NewError(domain.CodeEmptyToken, "token is empty")
	}
	claims := &sessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, domain.WrapError(domain.CodeInvalidToken, "token could not be decoded", err)
	}
	return claims.toDomain(), nil
}

// IsExpired reports whether the token's expiry has passed. Undecodable tokens
// count as expired.
func (s *Service) IsExpired(raw string) bool {
	claims, err := s.DecodeUnverified(raw)
	if err != nil || claims.ExpiresAt.IsZero() {
		return true
	}
	return !s.now().Before(claims.ExpiresAt)
}

func (s *Service) keyFunc(*jwt.Token) (any, error) {
	return s.secret, nil
}

// checkDomain returns the normalized email domain if it matches the allowed
// domain and, when present, the declared domain claim.
func (s *Service) checkDomain(email, declared string) (string, error) {
	emailDomain, err := domain.EmailDomain(email)
	if err != nil {
		return "", domain.WrapError(domain.CodeInvalidDomain, "email has no valid domain", err)
	}
	if declared != "" && !domain.SameDomain(declared, emailDomain) {
		return "", domain.DomainRestrictedError(domain.CodeInvalidDomain, declared, s.allowedDomain)
	}
	if !domain.SameDomain(emailDomain, s.allowedDomain) {
		return "", domain.DomainRestrictedError(domain.CodeInvalidDomain, emailDomain, s.allowedDomain)
	}
	return emailDomain, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.WrapError(domain.CodeTokenExpired, "token has expired", err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return domain.WrapError(domain.CodeTokenNotActive, "token is not active yet", err)
	default:
		return domain.WrapError(domain.CodeInvalidToken, "token is invalid", err)
	}
}

func stripScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "bearer") {
		return ""
	}
	const prefix = "bearer "
	if len(raw) >= len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
		raw = strings.TrimSpace(raw[len(prefix):])
	}
	return raw
}
