package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"

	"github.com/BlackMission/gatekeeper/internal/domain"
	"github.com/BlackMission/gatekeeper/internal/token"
)

// MinSecretLength is the minimum accepted length of JWT_SECRET in bytes.
const MinSecretLength = 32

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig
	Google   GoogleConfig
	Token    TokenConfig
	Frontend FrontendConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int    `env:"PORT" envDefault:"8080"`
	Host    string `env:"HOST" envDefault:"0.0.0.0"`
	BaseURL string `env:"BASE_URL"`
}

// GoogleConfig holds the OAuth client registration with Google.
type GoogleConfig struct {
	ClientID     string        `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string        `env:"GOOGLE_REDIRECT_URI"`
	Scopes       []string      `env:"GOOGLE_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`
	Timeout      time.Duration `env:"GOOGLE_TIMEOUT" envDefault:"10s"`
}

// TokenConfig holds session token settings.
type TokenConfig struct {
	Secret          string        `env:"JWT_SECRET"`
	TTL             string        `env:"JWT_EXPIRES_IN" envDefault:"24h"`
	MaxSessionAge   time.Duration `env:"JWT_MAX_SESSION_AGE" envDefault:"0s"`
	AllowedDomain   string        `env:"ALLOWED_DOMAIN"`
	StateSigningKey string        `env:"STATE_SIGNING_KEY"`
	ExpiryWarning   time.Duration `env:"EXPIRY_WARNING_THRESHOLD" envDefault:"5m"`
}

// FrontendConfig holds where browsers are sent after the login flow.
type FrontendConfig struct {
	URL string `env:"FRONTEND_URL"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadFromEnv reads configuration from the process environment.
func LoadFromEnv() (*Config, error) {
	return Load(nil)
}

// Load reads configuration from the given environment map. A nil map reads
// the process environment.
func Load(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	cfg.Google.Scopes = trimList(cfg.Google.Scopes)
	cfg.Token.AllowedDomain = strings.ToLower(strings.TrimSpace(cfg.Token.AllowedDomain))
	cfg.Frontend.URL = strings.TrimRight(strings.TrimSpace(cfg.Frontend.URL), "/")
	if cfg.Token.StateSigningKey == "" && cfg.Token.Secret != "" {
		cfg.Token.StateSigningKey = deriveStateKey(cfg.Token.Secret)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validate(cfg *Config) error {
	required := []struct {
		name  string
		value string
	}{
		{"GOOGLE_CLIENT_ID", cfg.Google.ClientID},
		{"GOOGLE_CLIENT_SECRET", cfg.Google.ClientSecret},
		{"GOOGLE_REDIRECT_URI", cfg.Google.RedirectURI},
		{"JWT_SECRET", cfg.Token.Secret},
		{"ALLOWED_DOMAIN", cfg.Token.AllowedDomain},
		{"FRONTEND_URL", cfg.Frontend.URL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrMissingConfig, r.name)
		}
	}

	if len(cfg.Token.Secret) < MinSecretLength {
		return fmt.Errorf("%w: JWT_SECRET must be at least %d bytes", domain.ErrInvalidConfig, MinSecretLength)
	}
	if !strings.Contains(cfg.Token.AllowedDomain, ".") {
		return fmt.Errorf("%w: ALLOWED_DOMAIN %q must contain a dot", domain.ErrInvalidConfig, cfg.Token.AllowedDomain)
	}
	if _, err := token.ParseTTL(cfg.Token.TTL); err != nil {
		return fmt.Errorf("%w: JWT_EXPIRES_IN: %v", domain.ErrInvalidConfig, err)
	}
	if cfg.Token.MaxSessionAge < 0 {
		return fmt.Errorf("%w: JWT_MAX_SESSION_AGE must not be negative", domain.ErrInvalidConfig)
	}
	if cfg.Google.Timeout <= 0 {
		return fmt.Errorf("%w: GOOGLE_TIMEOUT must be positive", domain.ErrInvalidConfig)
	}
	if err := requireAbsoluteURL(cfg.Frontend.URL); err != nil {
		return fmt.Errorf("%w: FRONTEND_URL: %v", domain.ErrInvalidConfig, err)
	}
	if err := requireAbsoluteURL(cfg.Google.RedirectURI); err != nil {
		return fmt.Errorf("%w: GOOGLE_REDIRECT_URI: %v", domain.ErrInvalidConfig, err)
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %v", domain.ErrInvalidConfig, err)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be json or console", domain.ErrInvalidConfig)
	}
	return nil
}

func requireAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// deriveStateKey keeps the state key distinct from the token key when only
// JWT_SECRET is configured.
func deriveStateKey(secret string) string {
	sum := sha256.Sum256([]byte("gatekeeper-state:" + secret))
	return hex.EncodeToString(sum[:])
}

func trimList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
