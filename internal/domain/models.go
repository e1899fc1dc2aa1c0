package domain

import (
	"strings"
	"time"
)

// ProviderTokenSet is the result of an authorization code exchange. It is used
// once to fetch the profile and then dropped.
type ProviderTokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// UserProfile is the identity provider's view of the signed-in user.
type UserProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
	Locale        string `json:"locale"`
}

// Domain returns the part of the email after '@', or "" for a malformed email.
func (p UserProfile) Domain() string {
	d, err := EmailDomain(p.Email)
	if err != nil {
		return ""
	}
	return d
}

// IdentityPayload is the identity subset embedded into a session token.
type IdentityPayload struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Domain  string `json:"domain"`

	// AuthTime is when the user originally signed in. Zero means now.
	AuthTime time.Time `json:"-"`
}

// IdentityFromProfile builds the token payload for a freshly fetched profile.
func IdentityFromProfile(p UserProfile) IdentityPayload {
	return IdentityPayload{
		ID:      p.ID,
		Email:   p.Email,
		Name:    p.Name,
		Picture: p.Picture,
		Domain:  p.Domain(),
	}
}

// SessionClaims are the verified contents of a session token.
type SessionClaims struct {
	ID        string
	Email     string
	Name      string
	Picture   string
	Domain    string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	AuthTime  time.Time
	TokenID   string
}

// Identity returns the identity subset of the claims.
func (c SessionClaims) Identity() IdentityPayload {
	return IdentityPayload{
		ID:       c.ID,
		Email:    c.Email,
		Name:     c.Name,
		Picture:  c.Picture,
		Domain:   c.Domain,
		AuthTime: c.AuthTime,
	}
}

// PublicUser is the user representation exposed to clients.
type PublicUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Domain  string `json:"domain"`
}

// AuthenticatedIdentity is attached to each request that passed the middleware.
type AuthenticatedIdentity struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	Picture         string `json:"picture"`
	Domain          string `json:"domain"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// IdentityFromClaims builds the request identity for verified claims.
func IdentityFromClaims(c SessionClaims) *AuthenticatedIdentity {
	return &AuthenticatedIdentity{
		ID:              c.ID,
		Email:           c.Email,
		Name:            c.Name,
		Picture:         c.Picture,
		Domain:          c.Domain,
		IsAuthenticated: true,
	}
}

// Public returns the client-facing fields.
func (i AuthenticatedIdentity) Public() PublicUser {
	return PublicUser{ID: i.ID, Email: i.Email, Name: i.Name, Picture: i.Picture, Domain: i.Domain}
}

// TokenMetadata describes the lifetime of the token that authenticated a request.
type TokenMetadata struct {
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StatePayload is the data embedded in the HMAC-signed OAuth state token.
// Nonce is also held by the browser that started the login; ClientState is an
// opaque value the front end asked to get back after sign-in.
type StatePayload struct {
	Nonce       string    `json:"nce"`
	ClientState string    `json:"cst,omitempty"`
	ExpiresAt   time.Time `json:"exp"`
}

// EmailDomain returns the domain of an email address. The address must contain
// exactly one '@' with non-empty parts on both sides.
func EmailDomain(email string) (string, error) {
	email = strings.TrimSpace(email)
	if strings.Count(email, "@") != 1 {
		return "", NewError(CodeIncompleteProfileData, "email must contain exactly one '@'")
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || domain == "" {
		return "", NewError(CodeIncompleteProfileData, "email is malformed")
	}
	return strings.ToLower(domain), nil
}

// SameDomain compares two domains case-insensitively. Empty never matches.
func SameDomain(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
