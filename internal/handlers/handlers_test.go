package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tenauth/tenauth/internal/bootstrap"
	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "hunter2-correct"

// newTestApp wires the full application against an in-memory sqlite store.
func newTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ServerAddr:             ":0",
		BaseURL:                "http://localhost:8080",
		AccessTokenExpiration:  5 * time.Minute,
		AuthCodeExpiration:     5 * time.Minute,
		RefreshTokenExpiration: 720 * time.Hour,
		OpSessionExpiration:    12 * time.Hour,
		CSRFTokenExpiration:    15 * time.Minute,
		PermissionCacheTTL:     60 * time.Second,
		DatabaseDriver:         "sqlite",
		DatabaseDSN:            ":memory:",
	}

	app, err := bootstrap.New(context.Background(), cfg)
	require.NoError(t, err)
	return app
}

// testFixture is a tenant with one user and one first-party public client,
// mirroring a typical SPA deployment.
type testFixture struct {
	tenant *models.Tenant
	user   *models.User
	client *models.Client
}

func setupFixture(t *testing.T, app *bootstrap.App) *testFixture {
	t.Helper()

	tenant := &models.Tenant{
		ID:       uuid.New().String(),
		Slug:     "acme-" + uuid.New().String()[:8],
		Name:     "Acme",
		Hostname: "acme-" + uuid.New().String()[:8] + ".example",
		IsActive: true,
	}
	require.NoError(t, app.Store.CreateTenant(tenant))

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New().String(),
		TenantID:     tenant.ID,
		Email:        "jo@acme.example",
		PasswordHash: string(hash),
		FullName:     "Jo Doe",
		IsActive:     true,
	}
	require.NoError(t, app.Store.CreateUser(user))

	client := &models.Client{
		TenantID:     tenant.ID,
		ClientID:     "app-spa",
		Name:         "Application SPA",
		RedirectURIs: models.StringArray{"https://app.example/callback"},
		Scopes:       "openid profile offline_access",
		GrantTypes:   "authorization_code refresh_token",
		FirstParty:   true,
		IsActive:     true,
	}
	require.NoError(t, app.Store.CreateClient(client))

	return &testFixture{tenant: tenant, user: user, client: client}
}

func createThirdPartyClient(t *testing.T, app *bootstrap.App, tenantID string) *models.Client {
	t.Helper()
	client := &models.Client{
		TenantID:     tenantID,
		ClientID:     "partner-" + uuid.New().String()[:8],
		Name:         "Partner App",
		RedirectURIs: models.StringArray{"https://partner.example/cb"},
		Scopes:       "openid profile",
		GrantTypes:   "authorization_code refresh_token",
		IsActive:     true,
	}
	require.NoError(t, app.Store.CreateClient(client))
	return client
}

func createConfidentialClient(t *testing.T, app *bootstrap.App, tenantID, secret string) *models.Client {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	client := &models.Client{
		TenantID:     tenantID,
		ClientID:     "svc-" + uuid.New().String()[:8],
		Name:         "Backend Service",
		SecretHash:   string(hash),
		RedirectURIs: models.StringArray{"https://svc.example/cb"},
		Scopes:       "projects:read projects:write",
		GrantTypes:   "client_credentials",
		IsActive:     true,
	}
	require.NoError(t, app.Store.CreateClient(client))
	return client
}

// browser simulates a cookie-holding user agent against the test router.
type browser struct {
	t       *testing.T
	app     *bootstrap.App
	host    string
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, app *bootstrap.App, host string) *browser {
	return &browser{t: t, app: app, host: host, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	b.t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	req, err := http.NewRequestWithContext(
		context.Background(), http.MethodPost, target, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	req.Host = b.host
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.app.Router.ServeHTTP(w, req)
	b.storeCookies(w)
	return w
}

func (b *browser) storeCookies(w *httptest.ResponseRecorder) {
	resp := http.Response{Header: w.Header()}
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
}

func (b *browser) cookie(name string) *http.Cookie {
	return b.cookies[name]
}

// csrfToken returns the current double-submit token, fetching the login page
// first when the cookie has not been issued yet.
func (b *browser) csrfToken() string {
	b.t.Helper()
	if c, ok := b.cookies["csrf"]; ok {
		return c.Value
	}
	w := b.get("/login")
	require.Equal(b.t, http.StatusOK, w.Code)
	c, ok := b.cookies["csrf"]
	require.True(b.t, ok, "login page should issue the csrf cookie")
	return c.Value
}

// login submits the login form and asserts the op_session cookie appears.
func (b *browser) login(email, password, redirectTo string) *httptest.ResponseRecorder {
	b.t.Helper()
	w := b.postForm("/login", url.Values{
		"csrf_token": {b.csrfToken()},
		"email":      {email},
		"password":   {password},
		"redirect":   {redirectTo},
	})
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	return data
}

func locationOf(t *testing.T, w *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, w.Code, "expected a redirect, body: %s", w.Body.String())
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return u
}
