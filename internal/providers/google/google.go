// Package google is the identity provider gateway. It runs the OAuth2
// authorization-code exchange against Google, fetches the signed-in user's
// profile and enforces the organization's domain restriction.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/BlackMission/gatekeeper/internal/domain"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultTimeout     = 10 * time.Second

	tracerName = "github.com/BlackMission/gatekeeper/internal/providers/google"

	// maxBodyBytes bounds how much of a provider response is read.
	maxBodyBytes = 1 << 20
)

// DefaultScopes are requested when none are configured.
var DefaultScopes = []string{"openid", "email", "profile"}

// Config holds Google OAuth2 settings.
type Config struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	AllowedDomain string
	Scopes        []string
	// Timeout bounds each outbound call. Zero means 10s.
	Timeout time.Duration
}

// Gateway talks to Google's OAuth2 and userinfo endpoints.
type Gateway struct {
	cfg         Config
	logger      *zap.Logger
	tracer      trace.Tracer
	httpClient  *http.Client
	authURL     string
	tokenURL    string
	userInfoURL string
}

// New creates a Google gateway. The configuration is not checked here; call
// ValidateConfiguration at startup.
func New(cfg Config, logger *zap.Logger) *Gateway {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.AllowedDomain = strings.ToLower(strings.TrimSpace(cfg.AllowedDomain))
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		cfg:         cfg,
		logger:      logger.Named("google"),
		tracer:      otel.Tracer(tracerName),
		httpClient:  http.DefaultClient,
		authURL:     defaultAuthURL,
		tokenURL:    defaultTokenURL,
		userInfoURL: defaultUserInfoURL,
	}
}

// AllowedDomain returns the domain sign-ins are restricted to.
func (g *Gateway) AllowedDomain() string { return g.cfg.AllowedDomain }

func (g *Gateway) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		RedirectURL:  g.cfg.RedirectURI,
		Scopes:       g.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   g.authURL,
			TokenURL:  g.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizationURL builds the consent screen URL. The state parameter is
// omitted when empty.
func (g *Gateway) AuthorizationURL(state string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	}
	if g.cfg.AllowedDomain != "" {
		opts = append(opts, oauth2.SetAuthURLParam("hd", g.cfg.AllowedDomain))
	}
	return g.oauth2Config().AuthCodeURL(state, opts...)
}

// ValidateConfiguration reports every missing setting in one error.
func (g *Gateway) ValidateConfiguration() error {
	var missing []string
	if g.cfg.ClientID == "" {
		missing = append(missing, "client id")
	}
	if g.cfg.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if g.cfg.RedirectURI == "" {
		missing = append(missing, "redirect uri")
	}
	if g.cfg.AllowedDomain == "" {
		missing = append(missing, "allowed domain")
	}
	if len(missing) > 0 {
		return domain.NewError(domain.CodeConfiguration, "google oauth is missing: "+strings.Join(missing, ", "))
	}
	return nil
}

// ExchangeCode trades an authorization code for provider tokens. It does not retry.
func (g *Gateway) ExchangeCode(ctx context.Context, code string) (_ *domain.ProviderTokenSet, retErr error) {
	if strings.TrimSpace(code) == "" {
		return nil, domain.NewError(domain.CodeInvalidAuthCode, "authorization code is required")
	}

	ctx, done := g.startSpan(ctx, "google.ExchangeCode", g.tokenURL, &retErr)
	defer done()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	tok, err := g.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return nil, g.exchangeError(err)
	}

	set := &domain.ProviderTokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		set.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		set.Scope = scope
	}
	return set, nil
}

func (g *Gateway) exchangeError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		errorCode := rErr.ErrorCode
		if errorCode == "" {
			errorCode = errorCodeFromBody(rErr.Body)
		}
		g.logger.Warn("token exchange rejected",
			zap.Int("status", status),
			zap.String("error_code", errorCode),
		)

		switch {
		case status == http.StatusBadRequest && errorCode == "invalid_grant":
			return domain.WrapError(domain.CodeInvalidAuthCode, "authorization code is invalid or expired", err)
		case status == http.StatusBadRequest && errorCode == "invalid_client":
			return domain.WrapError(domain.CodeConfiguration, "oauth client credentials were rejected", err)
		case status == http.StatusUnauthorized:
			return domain.WrapError(domain.CodeUnauthorized, "oauth client is not authorized", err)
		case status >= http.StatusInternalServerError:
			return domain.WrapError(domain.CodeServiceUnavailable, "identity provider is unavailable", err)
		default:
			return domain.WrapError(domain.CodeResponseError, fmt.Sprintf("token exchange failed with status %d", status), err)
		}
	}

	if isUnreachable(err) {
		g.logger.Warn("token endpoint unreachable", zap.Error(err))
		return domain.WrapError(domain.CodeServiceUnavailable, "identity provider is unreachable", err)
	}
	return domain.WrapError(domain.CodeResponseError, "token response is invalid", err)
}

// errorCodeFromBody extracts the OAuth2 error code from a rejection body. The
// oauth2 library only fills RetrieveError.ErrorCode for JSON responses.
func errorCodeFromBody(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	text := string(body)
	for _, code := range []string{"invalid_grant", "invalid_client"} {
		if strings.Contains(text, code) {
			return code
		}
	}
	return ""
}

type userInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

// UserProfile fetches the profile for an access token and checks that the
// user belongs to the allowed domain.
func (g *Gateway) UserProfile(ctx context.Context, accessToken string) (_ *domain.UserProfile, retErr error) {
	if accessToken == "" {
		return nil, domain.NewError(domain.CodeInvalidAccessToken, "access token is required")
	}

	ctx, done := g.startSpan(ctx, "google.UserProfile", g.userInfoURL, &retErr)
	defer done()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, domain.WrapError(domain.CodeResponseError, "creating userinfo request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("userinfo endpoint unreachable", zap.Error(err))
		return nil, domain.WrapError(domain.CodeServiceUnavailable, "identity provider is unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.WrapError(domain.CodeResponseError, "reading userinfo response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, domain.NewError(domain.CodeInvalidAccessToken, "access token was rejected")
	case resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewError(domain.CodeInsufficientPermissions, "access token lacks the profile scopes")
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, domain.NewError(domain.CodeServiceUnavailable, fmt.Sprintf("userinfo returned status %d", resp.StatusCode))
	default:
		return nil, domain.NewError(domain.CodeResponseError, fmt.Sprintf("userinfo returned status %d", resp.StatusCode))
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, domain.WrapError(domain.CodeResponseError, "userinfo response is not valid JSON", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, domain.NewError(domain.CodeIncompleteProfileData, "profile is missing id or email")
	}

	userDomain, err := domain.EmailDomain(info.Email)
	if err != nil {
		return nil, err
	}
	if !domain.SameDomain(userDomain, g.cfg.AllowedDomain) {
		g.logger.Info("sign-in rejected for foreign domain",
			zap.String("user_domain", userDomain),
			zap.String("allowed_domain", g.cfg.AllowedDomain),
		)
		return nil, domain.DomainRestrictedError(domain.CodeDomainRestricted, userDomain, g.cfg.AllowedDomain)
	}

	return &domain.UserProfile{
		ID:            info.ID,
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		VerifiedEmail: info.VerifiedEmail,
		Locale:        info.Locale,
	}, nil
}

// CompleteFlow exchanges the code and fetches the profile. Typed errors pass
// through; anything else becomes an oauth_flow_error.
func (g *Gateway) CompleteFlow(ctx context.Context, code string) (*domain.UserProfile, error) {
	tokens, err := g.ExchangeCode(ctx, code)
	if err != nil {
		return nil, flowError(err)
	}
	profile, err := g.UserProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, flowError(err)
	}
	return profile, nil
}

func flowError(err error) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	return domain.WrapError(domain.CodeOAuthFlow, "oauth flow failed", err)
}

func (g *Gateway) startSpan(ctx context.Context, name, endpoint string, retErr *error) (context.Context, func()) {
	ctx, span := g.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("oauth.provider", "google"),
			attribute.String("url.full", endpoint),
		),
	)
	return ctx, func() {
		if retErr != nil && *retErr != nil {
			span.RecordError(*retErr)
			span.SetAttributes(attribute.String("error.type", string(domain.CodeOf(*retErr))))
			span.SetStatus(codes.Error, (*retErr).Error())
		}
		span.End()
	}
}

func isUnreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
