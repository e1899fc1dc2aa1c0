package handler

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/BlackMission/gatekeeper/internal/auth"
	"github.com/BlackMission/gatekeeper/internal/domain"
	"github.com/BlackMission/gatekeeper/internal/state"
	"github.com/BlackMission/gatekeeper/internal/token"
)

const frontendURL = "https://app.wareongo.com"

type stubGateway struct {
	profile   *domain.UserProfile
	err       error
	configErr error
	codes     []string
}

func (s *stubGateway) AuthorizationURL(state string) string {
	q := url.Values{"client_id": {"test-client-id"}, "hd": {"wareongo.com"}}
	if state != "" {
		q.Set("state", state)
	}
	return "https://accounts.google.com/o/oauth2/v2/auth?" + q.Encode()
}

func (s *stubGateway) ValidateConfiguration() error { return s.configErr }

func (s *stubGateway) CompleteFlow(_ context.Context, code string) (*domain.UserProfile, error) {
	s.codes = append(s.codes, code)
	return s.profile, s.err
}

func aliceProfile() *domain.UserProfile {
	return &domain.UserProfile{
		ID:            "1",
		Email:         "alice@wareongo.com",
		Name:          "Alice",
		Picture:       "https://lh3.googleusercontent.com/a/alice",
		VerifiedEmail: true,
	}
}

type fixture struct {
	gateway *stubGateway
	tokens  *token.Service
	states  *state.Service
	authn   *auth.Authenticator
	logger  *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := token.NewService(token.Config{
		Secret:        []byte("test-jwt-secret-0123456789abcdef0123"),
		AllowedDomain: "wareongo.com",
		TTL:           "24h",
	})
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	gw := &stubGateway{profile: aliceProfile()}
	return &fixture{
		gateway: gw,
		tokens:  tokens,
		states:  state.NewService([]byte("test-state-key-1234567890abcdef"), time.Minute),
		authn:   auth.NewAuthenticator(gw, tokens, logger),
		logger:  logger,
	}
}
