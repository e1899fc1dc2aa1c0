// Package state protects the sign-in redirect against login CSRF. Each state
// value is signed and bound to a random nonce that only the browser which
// started the login holds (in a cookie), so a value minted for one browser is
// rejected in any other.
//
// Wire format: base64url(JSON payload) + "." + base64url(HMAC-SHA256).
package state

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BlackMission/gatekeeper/internal/domain"
)

const (
	// DefaultExpiry is how long a user may spend on the consent screen.
	DefaultExpiry = 10 * time.Minute
	// MaxClientStateLen bounds the caller's own value carried through the flow.
	MaxClientStateLen = 512

	nonceBytes = 16
)

// Service mints and opens browser-bound login state values.
type Service struct {
	key    []byte
	expiry time.Duration
	now    func() time.Time
}

// NewService creates a state service. A non-positive expiry uses DefaultExpiry.
func NewService(key []byte, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Service{key: key, expiry: expiry, now: time.Now}
}

// SetNow overrides the time function (for testing).
func (s *Service) SetNow(fn func() time.Time) {
	s.now = fn
}

// Generate mints a state value that carries clientState back to the caller.
// The payload's Nonce must reach the browser out of band and be presented
// again to Validate.
func (s *Service) Generate(clientState string) (string, *domain.StatePayload, error) {
	if len(clientState) > MaxClientStateLen {
		return "", nil, domain.NewError(domain.CodeInvalidRequest,
			fmt.Sprintf("state parameter exceeds %d bytes", MaxClientStateLen))
	}

	raw := make([]byte, nonceBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generating nonce: %w", err)
	}
	payload := &domain.StatePayload{
		Nonce:       hex.EncodeToString(raw),
		ClientState: clientState,
		ExpiresAt:   s.now().Add(s.expiry).UTC().Truncate(time.Second),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling state payload: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(data)
	return body + "." + s.mac(body), payload, nil
}

// Validate opens value and checks that it has not expired and was minted for
// the browser holding nonce.
func (s *Service) Validate(value, nonce string) (*domain.StatePayload, error) {
	payload, err := s.open(value)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(payload.ExpiresAt) {
		return nil, domain.ErrExpiredState
	}
	if nonce == "" || !hmac.Equal([]byte(nonce), []byte(payload.Nonce)) {
		return nil, domain.ErrStateMismatch
	}
	return payload, nil
}

func (s *Service) open(value string) (*domain.StatePayload, error) {
	body, sig, ok := strings.Cut(value, ".")
	if !ok || body == "" || sig == "" {
		return nil, domain.ErrMalformedState
	}
	if !hmac.Equal([]byte(sig), []byte(s.mac(body))) {
		return nil, domain.ErrInvalidState
	}

	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, domain.ErrMalformedState
	}
	var payload domain.StatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Nonce == "" {
		return nil, domain.ErrMalformedState
	}
	return &payload, nil
}

func (s *Service) mac(body string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
