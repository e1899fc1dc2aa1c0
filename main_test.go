package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/BlackMission/gatekeeper/internal/config"
)

func setEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"GOOGLE_CLIENT_ID":     "client-id.apps.googleusercontent.com",
		"GOOGLE_CLIENT_SECRET": "client-secret",
		"GOOGLE_REDIRECT_URI":  "https://auth.wareongo.com/auth/google/callback",
		"JWT_SECRET":           "test-jwt-secret-0123456789abcdef0123",
		"ALLOWED_DOMAIN":       "wareongo.com",
		"FRONTEND_URL":         "https://app.wareongo.com",
	} {
		t.Setenv(k, v)
	}
}

func TestCheckConfig(t *testing.T) {
	setEnv(t)
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check-config"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "configuration ok")
	assert.Contains(t, out.String(), "wareongo.com")
}

func TestCheckConfig_Invalid(t *testing.T) {
	setEnv(t)
	t.Setenv("JWT_SECRET", "short")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"check-config"})

	assert.Error(t, cmd.Execute())
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = newLogger(config.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
