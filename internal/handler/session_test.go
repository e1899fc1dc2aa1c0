package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlackMission/gatekeeper/internal/domain"
	"github.com/BlackMission/gatekeeper/internal/middleware"
	"github.com/BlackMission/gatekeeper/pkg/testutil"
)

func (f *fixture) issue(t *testing.T, ttl time.Duration) string {
	t.Helper()
	signed, err := f.tokens.Issue(domain.IdentityFromProfile(*aliceProfile()), ttl)
	require.NoError(t, err)
	return signed
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	issuedAt := time.Now()
	f.tokens.SetNow(func() time.Time { return issuedAt })
	original := f.issue(t, time.Hour)
	f.tokens.SetNow(func() time.Time { return issuedAt.Add(10 * time.Minute) })

	rr := testutil.DoRequest(t, Refresh(f.tokens, f.logger), http.MethodPost, "/auth/refresh", testutil.Bearer(original))

	testutil.AssertStatus(t, rr, http.StatusOK)
	var body refreshResponse
	testutil.ParseJSON(t, rr, &body)
	assert.NotEqual(t, original, body.Token)
	assert.Equal(t, int64(86400), body.ExpiresIn)
	assert.Equal(t, "alice@wareongo.com", body.User.Email)
	assert.Equal(t, "wareongo.com", body.User.Domain)

	claims, err := f.tokens.Verify(body.Token)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.After(issuedAt.Add(time.Hour)))
}

func TestRefresh_Rejections(t *testing.T) {
	f := newFixture(t)
	expiredAt := time.Now()
	f.tokens.SetNow(func() time.Time { return expiredAt.Add(-2 * time.Hour) })
	expired := f.issue(t, time.Hour)
	f.tokens.SetNow(func() time.Time { return expiredAt })
	valid := f.issue(t, time.Hour)

	tests := []struct {
		name    string
		headers map[string]string
		code    string
	}{
		{"missing", nil, "missing_token"},
		{"expired", testutil.Bearer(expired), "token_expired"},
		{"garbage", testutil.Bearer("garbage"), "invalid_token"},
		{"bare token", map[string]string{"Authorization": valid}, "invalid_token_format"},
		{"basic scheme", map[string]string{"Authorization": "Basic " + valid}, "invalid_token_format"},
		{"scheme only", map[string]string{"Authorization": "Bearer"}, "invalid_token_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.DoRequest(t, Refresh(f.tokens, f.logger), http.MethodPost, "/auth/refresh", tt.headers)

			testutil.AssertStatus(t, rr, http.StatusUnauthorized)
			var body map[string]string
			testutil.ParseJSON(t, rr, &body)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestLogout(t *testing.T) {
	rr := testutil.DoRequest(t, Logout(), http.MethodPost, "/auth/logout", nil)

	testutil.AssertStatus(t, rr, http.StatusOK)
	var body messageResponse
	testutil.ParseJSON(t, rr, &body)
	assert.True(t, body.Success)
}

func TestCurrentUser(t *testing.T) {
	f := newFixture(t)
	h := middleware.NewAuth(f.tokens, f.logger).Authenticate(CurrentUser())

	rr := testutil.DoRequest(t, h, http.MethodGet, "/auth/me", testutil.Bearer(f.issue(t, 0)))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var body currentUserResponse
	testutil.ParseJSON(t, rr, &body)
	assert.Equal(t, "1", body.User.ID)
	assert.Equal(t, "Alice", body.User.Name)

	rr = testutil.DoRequest(t, CurrentUser(), http.MethodGet, "/auth/me", nil)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}
