package middleware

import (
	"context"

	"github.com/BlackMission/gatekeeper/internal/domain"
)

type identityKey struct{}

type tokenMetadataKey struct{}

// WithIdentity attaches an authenticated identity and its token metadata.
func WithIdentity(ctx context.Context, identity *domain.AuthenticatedIdentity, meta *domain.TokenMetadata) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, identity)
	if meta != nil {
		ctx = context.WithValue(ctx, tokenMetadataKey{}, meta)
	}
	return ctx
}

// IdentityFromContext returns the identity attached by Authenticate, if any.
func IdentityFromContext(ctx context.Context) (*domain.AuthenticatedIdentity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*domain.AuthenticatedIdentity)
	return identity, ok && identity != nil && identity.IsAuthenticated
}

// TokenMetadataFromContext returns the lifetime of the token that
// authenticated the request.
func TokenMetadataFromContext(ctx context.Context) (*domain.TokenMetadata, bool) {
	meta, ok := ctx.Value(tokenMetadataKey{}).(*domain.TokenMetadata)
	return meta, ok && meta != nil
}
