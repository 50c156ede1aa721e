package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscovery(t *testing.T) {
	app := newTestApp(t)
	fx := setupFixture(t, app)
	b := newBrowser(t, app, fx.tenant.Hostname)

	w := b.get("/.well-known/openid-configuration")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, "http://localhost:8080", body["issuer"])
	assert.Equal(t, "http://localhost:8080/token", body["token_endpoint"])
	assert.Equal(t, "http://localhost:8080/jwks.json", body["jwks_uri"])
	assert.Contains(t, body["grant_types_supported"], "authorization_code")
	assert.Contains(t, body["code_challenge_methods_supported"], "S256")
}

func TestJWKS(t *testing.T) {
	app := newTestApp(t)
	fx := setupFixture(t, app)
	b := newBrowser(t, app, fx.tenant.Hostname)

	w := b.get("/jwks.json")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	keys, ok := body["keys"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, keys, "bootstrap must have generated a signing key")

	first := keys[0].(map[string]any)
	assert.Equal(t, "RSA", first["kty"])
	assert.Equal(t, "RS256", first["alg"])
	assert.Equal(t, "sig", first["use"])
	assert.NotEmpty(t, first["kid"])
	assert.NotEmpty(t, first["n"])
	assert.NotEmpty(t, first["e"])
}

func TestIntrospect_AccessToken(t *testing.T) {
	app := newTestApp(t)
	fx := setupFixture(t, app)
	b := newBrowser(t, app, fx.tenant.Hostname)

	tokens := obtainTokens(t, b, fx)

	w := b.postForm("/introspect", url.Values{
		"token": {tokens["access_token"].(string)},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, fx.user.ID, body["sub"])
	assert.Equal(t, fx.tenant.ID, body["org_id"])
	assert.NotEmpty(t, body["exp"])
}

func TestIntrospect_RefreshToken(t *testing.T) {
	app := newTestApp(t)
	fx := setupFixture(t, app)
	b := newBrowser(t, app, fx.tenant.Hostname)

	tokens := obtainTokens(t, b, fx)

	w := b.postForm("/introspect", url.Values{
		"token": {tokens["refresh_token"].(string)},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, "refresh_token", body["token_type"])
	assert.NotEmpty(t, body["sid"])
}

func TestIntrospect_GarbageTokenIsInactive(t *testing.T) {
	app := newTestApp(t)
	fx := setupFixture(t, app)
	b := newBrowser(t, app, fx.tenant.Hostname)

	w := b.postForm("/introspect", url.Values{"token": {"not-a-token"}})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, false, body["active"])
	// No hint about why
	assert.Len(t, body, 1)
}

func TestRevoke_IsIdempotent(t *testing.T) {
	app := newTestApp(t)
	fx := setupFixture(t, app)
	b := newBrowser(t, app, fx.tenant.Hostname)

	refresh := obtainTokens(t, b, fx)["refresh_token"].(string)

	// First revocation kills the chain
	w := b.postForm("/revoke", url.Values{"token": {refresh}})
	require.Equal(t, http.StatusOK, w.Code)

	// Second revocation and unknown tokens still return 200
	w = b.postForm("/revoke", url.Values{"token": {refresh}})
	require.Equal(t, http.StatusOK, w.Code)
	w = b.postForm("/revoke", url.Values{"token": {"never-issued"}})
	require.Equal(t, http.StatusOK, w.Code)

	// The revoked token is gone for good
	w = b.postForm("/introspect", url.Values{"token": {refresh}})
	assert.Equal(t, false, decodeJSON(t, w)["active"])
}

func TestUserInfo(t *testing.T) {
	app := newTestApp(t)
	fx := setupFixture(t, app)
	b := newBrowser(t, app, fx.tenant.Hostname)

	access := obtainTokens(t, b, fx)["access_token"].(string)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "/userinfo", nil)
	require.NoError(t, err)
	req.Host = fx.tenant.Hostname
	req.Header.Set("Authorization", "Bearer "+access)

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, fx.user.ID, body["sub"])
	assert.Equal(t, fx.tenant.ID, body["org_id"])
	assert.Equal(t, fx.user.Email, body["email"])
	assert.Equal(t, fx.user.FullName, body["name"])
}

func TestUserInfo_RejectsMissingToken(t *testing.T) {
	app := newTestApp(t)
	fx := setupFixture(t, app)
	b := newBrowser(t, app, fx.tenant.Hostname)

	w := b.get("/userinfo")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_token", decodeJSON(t, w)["error"])
}

func TestUserInfo_RejectsOpSessionToken(t *testing.T) {
	app := newTestApp(t)
	fx := setupFixture(t, app)
	b := newBrowser(t, app, fx.tenant.Hostname)

	// Establish an OP session and try to use its cookie value as a bearer
	authorizeURL := "/authorize?" + url.Values{
		"response_type":         {"code"},
		"client_id":             {"app-spa"},
		"redirect_uri":          {"https://app.example/callback"},
		"scope":                 {"openid"},
		"code_challenge":        {"abc123"},
		"code_challenge_method": {"plain"},
	}.Encode()
	locationOf(t, b.get(authorizeURL))
	locationOf(t, b.login(fx.user.Email, testPassword, authorizeURL))

	opSession := b.cookie("op_session")
	require.NotNil(t, opSession)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "/userinfo", nil)
	require.NoError(t, err)
	req.Host = fx.tenant.Hostname
	req.Header.Set("Authorization", "Bearer "+opSession.Value)

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	b := newBrowser(t, app, "localhost")

	w := b.get("/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeJSON(t, w)["status"])
}
