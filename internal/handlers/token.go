package handlers

import (
	"errors"
	"net/http"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/middleware"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/services"

	"github.com/gin-gonic/gin"
)

// TokenHandler serves the /token endpoint (RFC 6749 §3.2).
type TokenHandler struct {
	tokenService  *services.TokenService
	clientService *services.ClientService
	config        *config.Config
}

func NewTokenHandler(
	ts *services.TokenService,
	cs *services.ClientService,
	cfg *config.Config,
) *TokenHandler {
	return &TokenHandler{
		tokenService:  ts,
		clientService: cs,
		config:        cfg,
	}
}

// Token dispatches on grant_type and returns the token response.
func (h *TokenHandler) Token(c *gin.Context) {
	grantType := c.PostForm("grant_type")
	if grantType == "" {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "grant_type is required")
		return
	}

	// 1. Authenticate the client (Basic auth or form credentials)
	client, err := h.authenticateClient(c)
	if err != nil {
		c.Header("WWW-Authenticate", `Basic realm="token"`)
		oauthError(c, http.StatusUnauthorized, errInvalidClient, "client authentication failed")
		return
	}

	// 2. Build the grant request. The refresh token may arrive in the form
	// body or, for first-party browser clients, in the rt cookie.
	refreshToken := c.PostForm("refresh_token")
	if refreshToken == "" {
		refreshToken, _ = c.Cookie(RefreshCookieName)
	}

	// Codes and refresh tokens are scoped to the tenant of the original
	// request; fall back to the client's home tenant for global clients.
	tenantID := middleware.TenantID(c)
	if tenantID == "" {
		tenantID = client.TenantID
	}

	req := services.GrantRequest{
		TenantID:     tenantID,
		Client:       client,
		Code:         c.PostForm("code"),
		RedirectURI:  c.PostForm("redirect_uri"),
		CodeVerifier: c.PostForm("code_verifier"),
		RefreshToken: refreshToken,
		Scope:        c.PostForm("scope"),
		Device:       c.Request.UserAgent(),
		IP:           middleware.ClientIP(c),
	}

	// 3. Dispatch
	resp, err := h.tokenService.Grant(c.Request.Context(), grantType, req)
	if err != nil {
		h.writeGrantError(c, grantType, err)
		return
	}

	// 4. First-party clients additionally receive cookie-bound tokens
	if resp.FirstParty {
		setAuthCookies(c, h.config, resp)
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}

// authenticateClient resolves and authenticates the requesting client.
// Confidential clients must present their secret via HTTP Basic auth or the
// form body; public clients identify by client_id alone.
func (h *TokenHandler) authenticateClient(c *gin.Context) (*models.Client, error) {
	clientID, clientSecret, ok := c.Request.BasicAuth()
	if !ok {
		clientID = c.PostForm("client_id")
		clientSecret = c.PostForm("client_secret")
	}
	if clientID == "" {
		return nil, services.ErrClientNotFound
	}
	return h.clientService.Authenticate(middleware.TenantID(c), clientID, clientSecret)
}

// writeGrantError maps service errors to RFC 6749 token error responses.
func (h *TokenHandler) writeGrantError(c *gin.Context, grantType string, err error) {
	switch {
	case errors.Is(err, services.ErrUnsupportedGrantType):
		oauthError(c, http.StatusBadRequest, "unsupported_grant_type",
			"grant_type "+grantType+" is not supported")
	case errors.Is(err, services.ErrGrantNotAllowed):
		oauthError(c, http.StatusBadRequest, "unauthorized_client",
			"client is not authorized for this grant type")
	case errors.Is(err, services.ErrClientAuthRequired),
		errors.Is(err, services.ErrInvalidClientSecret),
		errors.Is(err, services.ErrClientNotFound):
		c.Header("WWW-Authenticate", `Basic realm="token"`)
		oauthError(c, http.StatusUnauthorized, errInvalidClient, "client authentication failed")
	case errors.Is(err, services.ErrInvalidScope):
		oauthError(c, http.StatusBadRequest, "invalid_scope",
			"requested scope exceeds the client registration")
	case errors.Is(err, services.ErrAuthCodeNotFound),
		errors.Is(err, services.ErrAuthCodeExpired),
		errors.Is(err, services.ErrAuthCodeAlreadyUsed),
		errors.Is(err, services.ErrInvalidRedirectURI),
		errors.Is(err, services.ErrInvalidCodeVerifier),
		errors.Is(err, services.ErrPKCERequired):
		oauthError(c, http.StatusBadRequest, errInvalidGrant,
			"authorization code is invalid, expired, or already used")
	case errors.Is(err, services.ErrInvalidRefreshToken),
		errors.Is(err, services.ErrRefreshTokenExpired),
		errors.Is(err, services.ErrRefreshTokenReused):
		oauthError(c, http.StatusBadRequest, errInvalidGrant,
			"refresh token is invalid, expired, or revoked")
	default:
		oauthError(c, http.StatusInternalServerError, errServerError, "token request failed")
	}
}
