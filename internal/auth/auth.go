// Package auth defines the collaborators the HTTP layer depends on and the
// sign-in flow that ties the identity provider to the session token service.
package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BlackMission/gatekeeper/internal/domain"
)

// IdentityGateway is the identity provider as seen by the HTTP layer.
type IdentityGateway interface {
	AuthorizationURL(state string) string
	CompleteFlow(ctx context.Context, code string) (*domain.UserProfile, error)
	ValidateConfiguration() error
}

// TokenVerifier checks bearer tokens presented on protected requests.
type TokenVerifier interface {
	Verify(raw string) (*domain.SessionClaims, error)
	DecodeUnverified(raw string) (*domain.SessionClaims, error)
}

// TokenService is the full session token service.
type TokenService interface {
	TokenVerifier
	Issue(identity domain.IdentityPayload, ttl time.Duration) (string, error)
	Refresh(raw string) (string, *domain.SessionClaims, error)
	TTLSeconds() int64
	AllowedDomain() string
}

// StateService mints and checks the anti-forgery login state. Generate returns
// the signed value for the provider redirect and the payload whose Nonce the
// browser must hold; Validate requires that nonce back.
type StateService interface {
	Generate(clientState string) (string, *domain.StatePayload, error)
	Validate(value, nonce string) (*domain.StatePayload, error)
}

// SignInResult is what a successful callback hands to the front end.
type SignInResult struct {
	Token     string
	ExpiresIn int64
	User      domain.PublicUser
}

// Authenticator completes a provider sign-in and issues the session token.
type Authenticator struct {
	gateway IdentityGateway
	tokens  TokenService
	logger  *zap.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(gateway IdentityGateway, tokens TokenService, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{gateway: gateway, tokens: tokens, logger: logger.Named("auth")}
}

// SignIn exchanges the authorization code, verifies the profile and issues a
// session token. The provider's own tokens are discarded once the profile is read.
func (a *Authenticator) SignIn(ctx context.Context, code string) (*SignInResult, error) {
	profile, err := a.gateway.CompleteFlow(ctx, code)
	if err != nil {
		a.logger.Info("sign-in failed", zap.String("code", string(domain.CodeOf(err))), zap.Error(err))
		return nil, err
	}

	identity := domain.IdentityFromProfile(*profile)
	signed, err := a.tokens.Issue(identity, 0)
	if err != nil {
		a.logger.Error("issuing session token failed", zap.String("user_id", identity.ID), zap.Error(err))
		return nil, err
	}

	a.logger.Info("user signed in", zap.String("user_id", identity.ID), zap.String("domain", identity.Domain))
	return &SignInResult{
		Token:     signed,
		ExpiresIn: a.tokens.TTLSeconds(),
		User: domain.PublicUser{
			ID:      identity.ID,
			Email:   identity.Email,
			Name:    identity.Name,
			Picture: identity.Picture,
			Domain:  identity.Domain,
		},
	}, nil
}
