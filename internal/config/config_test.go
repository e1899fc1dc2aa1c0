package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlackMission/gatekeeper/internal/domain"
)

// requiredEnv returns the minimum environment for a valid config.
func requiredEnv() map[string]string {
	return map[string]string{
		"GOOGLE_CLIENT_ID":     "client-id.apps.googleusercontent.com",
		"GOOGLE_CLIENT_SECRET": "client-secret",
		"GOOGLE_REDIRECT_URI":  "https://auth.wareongo.com/auth/google/callback",
		"JWT_SECRET":           "test-jwt-secret-0123456789abcdef0123",
		"ALLOWED_DOMAIN":       "wareongo.com",
		"FRONTEND_URL":         "https://app.wareongo.com",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(requiredEnv())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.Google.Scopes)
	assert.Equal(t, 10*time.Second, cfg.Google.Timeout)
	assert.Equal(t, "24h", cfg.Token.TTL)
	assert.Zero(t, cfg.Token.MaxSessionAge)
	assert.Equal(t, 5*time.Minute, cfg.Token.ExpiryWarning)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NotEmpty(t, cfg.Token.StateSigningKey)
	assert.NotEqual(t, cfg.Token.Secret, cfg.Token.StateSigningKey)
}

func TestLoad_FullConfig(t *testing.T) {
	environ := requiredEnv()
	environ["PORT"] = "9090"
	environ["HOST"] = "127.0.0.1"
	environ["BASE_URL"] = "https://auth.wareongo.com"
	environ["GOOGLE_SCOPES"] = "openid, email ,profile,"
	environ["GOOGLE_TIMEOUT"] = "3s"
	environ["JWT_EXPIRES_IN"] = "7d"
	environ["JWT_MAX_SESSION_AGE"] = "720h"
	environ["ALLOWED_DOMAIN"] = " WareOnGo.COM "
	environ["STATE_SIGNING_KEY"] = "state-key"
	environ["FRONTEND_URL"] = "https://app.wareongo.com/"
	environ["LOG_FORMAT"] = "console"

	cfg, err := Load(environ)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "https://auth.wareongo.com", cfg.Server.BaseURL)
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.Google.Scopes)
	assert.Equal(t, 3*time.Second, cfg.Google.Timeout)
	assert.Equal(t, "7d", cfg.Token.TTL)
	assert.Equal(t, 720*time.Hour, cfg.Token.MaxSessionAge)
	assert.Equal(t, "wareongo.com", cfg.Token.AllowedDomain)
	assert.Equal(t, "state-key", cfg.Token.StateSigningKey)
	assert.Equal(t, "https://app.wareongo.com", cfg.Frontend.URL)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, key := range []string{
		"GOOGLE_CLIENT_ID",
		"GOOGLE_CLIENT_SECRET",
		"GOOGLE_REDIRECT_URI",
		"JWT_SECRET",
		"ALLOWED_DOMAIN",
		"FRONTEND_URL",
	} {
		t.Run(key, func(t *testing.T) {
			environ := requiredEnv()
			delete(environ, key)

			_, err := Load(environ)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMissingConfig), "expected ErrMissingConfig, got %v", err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"short secret", "JWT_SECRET", "too-short"},
		{"domain without dot", "ALLOWED_DOMAIN", "localhost"},
		{"bad ttl", "JWT_EXPIRES_IN", "forever"},
		{"zero ttl", "JWT_EXPIRES_IN", "0s"},
		{"bad port", "PORT", "eighty"},
		{"relative frontend", "FRONTEND_URL", "/app"},
		{"ftp redirect", "GOOGLE_REDIRECT_URI", "ftp://auth.wareongo.com/cb"},
		{"negative session age", "JWT_MAX_SESSION_AGE", "-1h"},
		{"zero timeout", "GOOGLE_TIMEOUT", "0s"},
		{"log format", "LOG_FORMAT", "xml"},
		{"log level", "LOG_LEVEL", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := requiredEnv()
			environ[tt.key] = tt.value

			_, err := Load(environ)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	for k, v := range requiredEnv() {
		t.Setenv(k, v)
	}
	t.Setenv("PORT", "7070")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "wareongo.com", cfg.Token.AllowedDomain)
}
