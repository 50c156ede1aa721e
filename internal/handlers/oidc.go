package handlers

import (
	"net/http"
	"strings"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/keys"
	"github.com/tenauth/tenauth/internal/middleware"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/services"
	"github.com/tenauth/tenauth/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// OIDCHandler serves the discovery, key, and token-metadata endpoints.
type OIDCHandler struct {
	tokenService   *services.TokenService
	sessionService *services.SessionService
	userService    *services.UserService
	auditService   *services.AuditService
	keyManager     *keys.Manager
	store          *store.Store
	config         *config.Config
}

func NewOIDCHandler(
	ts *services.TokenService,
	ss *services.SessionService,
	us *services.UserService,
	as *services.AuditService,
	km *keys.Manager,
	st *store.Store,
	cfg *config.Config,
) *OIDCHandler {
	return &OIDCHandler{
		tokenService:   ts,
		sessionService: ss,
		userService:    us,
		auditService:   as,
		keyManager:     km,
		store:          st,
		config:         cfg,
	}
}

// discoveryMetadata holds the OIDC Provider Metadata returned by the
// discovery endpoint (OIDC Discovery 1.0 / RFC 8414).
type discoveryMetadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	RevocationEndpoint               string   `json:"revocation_endpoint"`
	IntrospectionEndpoint            string   `json:"introspection_endpoint"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
}

// Discovery returns the provider metadata derived from BaseURL.
func (h *OIDCHandler) Discovery(c *gin.Context) {
	base := strings.TrimRight(h.config.BaseURL, "/")
	c.JSON(http.StatusOK, discoveryMetadata{
		Issuer:                           base,
		AuthorizationEndpoint:            base + "/authorize",
		TokenEndpoint:                    base + "/token",
		UserinfoEndpoint:                 base + "/userinfo",
		JwksURI:                          base + "/jwks.json",
		RevocationEndpoint:               base + "/revoke",
		IntrospectionEndpoint:            base + "/introspect",
		ResponseTypesSupported:           []string{"code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		ScopesSupported:                  []string{"openid", "profile", "offline_access"},
		TokenEndpointAuthMethods: []string{
			"client_secret_basic",
			"client_secret_post",
			"none",
		},
		GrantTypesSupported: []string{
			services.GrantAuthorizationCode,
			services.GrantRefreshToken,
			services.GrantClientCredentials,
		},
		CodeChallengeMethodsSupported: []string{"S256", "plain"},
	})
}

// JWKS publishes the verification keys (RFC 7517). Retired keys stay in the
// set until their tokens can no longer be in flight.
func (h *OIDCHandler) JWKS(c *gin.Context) {
	set, err := h.keyManager.JWKS(c.Request.Context())
	if err != nil {
		oauthError(c, http.StatusInternalServerError, errServerError, "failed to load key set")
		return
	}
	c.JSON(http.StatusOK, set)
}

// Introspect implements RFC 7662. Any failure to verify the presented token
// yields {"active": false}; the endpoint never explains why.
func (h *OIDCHandler) Introspect(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "token parameter is required")
		return
	}

	// Access tokens are JWTs; try verification first
	if claims, err := h.tokenService.VerifyAccessToken(c.Request.Context(), token); err == nil {
		h.writeActiveAccessToken(c, claims)
		return
	}

	// Fall back to a refresh token lookup by hash
	tenantID := middleware.TenantID(c)
	if rt, err := h.sessionService.LookupByRawToken(tenantID, token); err == nil && rt.IsLive() {
		c.JSON(http.StatusOK, gin.H{
			"active":     true,
			"token_type": "refresh_token",
			"exp":        rt.ExpiresAt.Unix(),
			"sid":        rt.SessionID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"active": false})
}

func (h *OIDCHandler) writeActiveAccessToken(c *gin.Context, claims jwt.MapClaims) {
	resp := gin.H{
		"active":     true,
		"token_type": "Bearer",
	}
	for _, key := range []string{"sub", "org_id", "sid", "scope", "iss", "jti"} {
		if v, ok := claims[key]; ok {
			resp[key] = v
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		resp["exp"] = exp.Unix()
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		resp["iat"] = iat.Unix()
	}
	c.JSON(http.StatusOK, resp)
}

// Revoke implements RFC 7009. Refresh tokens revoke their whole session
// chain; unknown tokens still return 200 to prevent token scanning.
func (h *OIDCHandler) Revoke(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "token parameter is required")
		return
	}

	tenantID := middleware.TenantID(c)
	if err := h.sessionService.RevokeByRawToken(c.Request.Context(), tenantID, token); err != nil {
		oauthError(c, http.StatusInternalServerError, errServerError, "revocation failed")
		return
	}

	if h.auditService != nil {
		h.auditService.Log(c.Request.Context(), services.AuditEntry{
			EventType: models.EventTokenRevoked,
			Severity:  models.SeverityInfo,
			TenantID:  tenantID,
			ActorIP:   middleware.ClientIP(c),
			Success:   true,
		})
	}

	c.JSON(http.StatusOK, gin.H{})
}

// UserInfo returns claims about the Bearer token's subject (OIDC Core §5.3).
func (h *OIDCHandler) UserInfo(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		oauthError(c, http.StatusUnauthorized, "invalid_token", "Bearer token required")
		return
	}

	claims, err := h.tokenService.VerifyAccessToken(
		c.Request.Context(),
		strings.TrimPrefix(authHeader, "Bearer "),
	)
	if err != nil {
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		oauthError(c, http.StatusUnauthorized, "invalid_token", "token verification failed")
		return
	}

	sub, _ := claims["sub"].(string)
	resp := gin.H{"sub": sub}
	if orgID, ok := claims["org_id"]; ok {
		resp["org_id"] = orgID
	}

	// Machine tokens carry no user profile
	if !strings.HasPrefix(sub, "client:") {
		if user, err := h.userService.GetUser(sub); err == nil {
			resp["email"] = user.Email
			resp["name"] = user.FullName
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Healthz reports liveness of the backing store.
func (h *OIDCHandler) Healthz(c *gin.Context) {
	if err := h.store.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
