package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlackMission/gatekeeper/internal/domain"
	"github.com/BlackMission/gatekeeper/pkg/testutil"
)

func (f *fixture) callback() http.Handler {
	return Callback(f.authn, f.states, frontendURL, f.logger)
}

// startLogin mints a state the way Login does and returns it with the cookie
// header the browser would send back on the callback.
func (f *fixture) startLogin(t *testing.T, clientState string) (string, map[string]string) {
	t.Helper()
	value, payload, err := f.states.Generate(clientState)
	require.NoError(t, err)
	cookie := &http.Cookie{Name: LoginCookie, Value: payload.Nonce}
	return value, map[string]string{"Cookie": cookie.String()}
}

func TestCallback_Success(t *testing.T) {
	f := newFixture(t)
	state, cookie := f.startLogin(t, "")
	q := url.Values{"code": {"auth-code"}, "state": {state}}

	rr := testutil.DoRequest(t, f.callback(), http.MethodGet, "/auth/google/callback?"+q.Encode(), cookie)

	loc := testutil.Redirect(t, rr)
	assert.Equal(t, "app.wareongo.com", loc.Host)
	assert.Equal(t, "/auth/callback", loc.Path)
	assert.Equal(t, []string{"auth-code"}, f.gateway.codes)
	assert.False(t, loc.Query().Has("state"))

	cleared := testutil.Cookie(t, rr, LoginCookie)
	assert.Negative(t, cleared.MaxAge)

	claims, err := f.tokens.Verify(loc.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "alice@wareongo.com", claims.Email)

	var user domain.PublicUser
	require.NoError(t, json.Unmarshal([]byte(loc.Query().Get("user")), &user))
	assert.Equal(t, domain.PublicUser{
		ID:      "1",
		Email:   "alice@wareongo.com",
		Name:    "Alice",
		Picture: "https://lh3.googleusercontent.com/a/alice",
		Domain:  "wareongo.com",
	}, user)
}

func TestCallback_FormPost(t *testing.T) {
	f := newFixture(t)
	state, cookie := f.startLogin(t, "")

	rr := testutil.DoForm(t, f.callback(), "/auth/google/callback", url.Values{
		"code":  {"auth-code"},
		"state": {state},
	}, cookie)

	loc := testutil.Redirect(t, rr)
	assert.Equal(t, "/auth/callback", loc.Path)
	assert.NotEmpty(t, loc.Query().Get("token"))
}

func TestCallback_AccessDenied(t *testing.T) {
	f := newFixture(t)

	rr := testutil.DoRequest(t, f.callback(), http.MethodGet,
		"/auth/google/callback?error=access_denied&error_description=The+user+denied", nil)

	loc := testutil.Redirect(t, rr)
	assert.Equal(t, "/auth/error", loc.Path)
	assert.Equal(t, "Sign-in was cancelled. You need to grant access to continue.", loc.Query().Get("message"))
	assert.Equal(t, "access_denied", loc.Query().Get("code"))
	assert.NotContains(t, loc.RawQuery, "denied+")
	assert.Empty(t, f.gateway.codes)
}

func TestCallback_UnknownProviderError(t *testing.T) {
	f := newFixture(t)

	rr := testutil.DoRequest(t, f.callback(), http.MethodGet, "/auth/google/callback?error=%3Cscript%3E", nil)

	loc := testutil.Redirect(t, rr)
	assert.Equal(t, genericProviderMessage, loc.Query().Get("message"))
	assert.Equal(t, "oauth_error", loc.Query().Get("code"))
}

func TestCallback_MissingCode(t *testing.T) {
	f := newFixture(t)

	state, cookie := f.startLogin(t, "")

	rr := testutil.DoRequest(t, f.callback(), http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state), cookie)

	loc := testutil.Redirect(t, rr)
	assert.Equal(t, "/auth/error", loc.Path)
	assert.Equal(t, "Authorization code is required.", loc.Query().Get("message"))
	assert.Equal(t, "invalid_auth_code", loc.Query().Get("code"))
}

func TestCallback_BadState(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.startLogin(t, "")

	for _, s := range []string{"", "forged.state"} {
		q := url.Values{"code": {"auth-code"}, "state": {s}}
		rr := testutil.DoRequest(t, f.callback(), http.MethodGet, "/auth/google/callback?"+q.Encode(), cookie)

		loc := testutil.Redirect(t, rr)
		assert.Equal(t, "Your sign-in session expired. Please try again.", loc.Query().Get("message"))
		assert.Equal(t, "invalid_state", loc.Query().Get("code"))
	}
	assert.Empty(t, f.gateway.codes)
}

func TestCallback_StateWithoutLoginCookie(t *testing.T) {
	f := newFixture(t)
	// A state minted for someone else's login, replayed in a browser that never
	// started one or that holds a different login's cookie.
	foreign, _ := f.startLogin(t, "")
	_, otherCookie := f.startLogin(t, "")
	q := url.Values{"code": {"attacker-code"}, "state": {foreign}}

	for name, headers := range map[string]map[string]string{
		"no cookie":    nil,
		"other cookie": otherCookie,
	} {
		t.Run(name, func(t *testing.T) {
			rr := testutil.DoRequest(t, f.callback(), http.MethodGet, "/auth/google/callback?"+q.Encode(), headers)

			loc := testutil.Redirect(t, rr)
			assert.Equal(t, "/auth/error", loc.Path)
			assert.Equal(t, "invalid_state", loc.Query().Get("code"))
			assert.Empty(t, loc.Query().Get("token"))
		})
	}
	assert.Empty(t, f.gateway.codes)
}

func TestCallback_ReturnsClientState(t *testing.T) {
	f := newFixture(t)
	state, cookie := f.startLogin(t, "/reports?tab=2")
	q := url.Values{"code": {"auth-code"}, "state": {state}}

	rr := testutil.DoRequest(t, f.callback(), http.MethodGet, "/auth/google/callback?"+q.Encode(), cookie)

	loc := testutil.Redirect(t, rr)
	assert.Equal(t, "/auth/callback", loc.Path)
	assert.Equal(t, "/reports?tab=2", loc.Query().Get("state"))
}

func TestCallback_ProviderErrorClearsCookie(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.startLogin(t, "")

	rr := testutil.DoRequest(t, f.callback(), http.MethodGet, "/auth/google/callback?error=access_denied", cookie)

	testutil.Redirect(t, rr)
	assert.Negative(t, testutil.Cookie(t, rr, LoginCookie).MaxAge)
}

func TestCallback_StateOptionalWithoutService(t *testing.T) {
	f := newFixture(t)
	h := Callback(f.authn, nil, frontendURL, f.logger)

	rr := testutil.DoRequest(t, h, http.MethodGet, "/auth/google/callback?code=auth-code&state=inbox", nil)

	loc := testutil.Redirect(t, rr)
	assert.Equal(t, "/auth/callback", loc.Path)
	assert.Equal(t, "inbox", loc.Query().Get("state"))
	assert.Empty(t, rr.Header().Get("Set-Cookie"))
}

func TestCallback_DomainRestricted(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = domain.DomainRestrictedError(domain.CodeDomainRestricted, "other.com", "wareongo.com")
	state, cookie := f.startLogin(t, "")
	q := url.Values{"code": {"auth-code"}, "state": {state}}

	rr := testutil.DoRequest(t, f.callback(), http.MethodGet, "/auth/google/callback?"+q.Encode(), cookie)

	loc := testutil.Redirect(t, rr)
	assert.Equal(t, "/auth/error", loc.Path)
	assert.Equal(t, "domain_restricted", loc.Query().Get("code"))
	assert.Contains(t, loc.Query().Get("message"), "wareongo.com")
	assert.Contains(t, loc.Query().Get("message"), "other.com")
	assert.Empty(t, loc.Query().Get("token"))
}

func TestCallback_ProviderFailureHidesDetails(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = domain.WrapError(domain.CodeResponseError, "token exchange failed with status 418",
		&json.SyntaxError{Offset: 3})
	state, cookie := f.startLogin(t, "")
	q := url.Values{"code": {"auth-code"}, "state": {state}}

	rr := testutil.DoRequest(t, f.callback(), http.MethodGet, "/auth/google/callback?"+q.Encode(), cookie)

	loc := testutil.Redirect(t, rr)
	assert.Equal(t, "response_error", loc.Query().Get("code"))
	assert.NotContains(t, loc.Query().Get("message"), "418")
}

func TestProviderErrorMessage(t *testing.T) {
	for key, want := range providerErrorMessages {
		assert.Equal(t, want, ProviderErrorMessage(key))
	}
	assert.Equal(t, genericProviderMessage, ProviderErrorMessage("something_new"))
}
