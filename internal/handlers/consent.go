package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/middleware"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/services"

	"github.com/gin-gonic/gin"
)

// ConsentHandler serves the consent page of the Authorization Code Flow.
type ConsentHandler struct {
	authorizationService *services.AuthorizationService
	clientService        *services.ClientService
	opSessionService     *services.OpSessionService
	auditService         *services.AuditService
	config               *config.Config
}

func NewConsentHandler(
	as *services.AuthorizationService,
	cs *services.ClientService,
	os *services.OpSessionService,
	audit *services.AuditService,
	cfg *config.Config,
) *ConsentHandler {
	return &ConsentHandler{
		authorizationService: as,
		clientService:        cs,
		opSessionService:     os,
		auditService:         audit,
		config:               cfg,
	}
}

// ConsentPage renders the approval form (GET /consent). The request
// parameters are re-validated; consent pages never render for requests the
// /authorize endpoint would have rejected.
func (h *ConsentHandler) ConsentPage(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	claims, ok := h.currentOpSession(c, tenantID)
	if !ok {
		target := url.Values{"redirect": {c.Request.URL.RequestURI()}}
		c.Redirect(http.StatusFound, "/login?"+target.Encode())
		return
	}

	req, err := h.validateParams(c, tenantID, queryParams(c))
	if err != nil {
		return // validateParams already wrote the response
	}

	if req.Client.FirstParty {
		issueCodeAndRedirect(c, h.authorizationService, tenantID, claims.UserID, req)
		return
	}

	c.HTML(http.StatusOK, "consent.html", gin.H{
		"CSRFToken":           middleware.CSRFToken(c),
		"ClientID":            req.Client.ClientID,
		"ClientName":          req.Client.Name,
		"RedirectURI":         req.RedirectURI,
		"Scope":               req.Scope,
		"Scopes":              strings.Fields(req.Scope),
		"State":               req.State,
		"CodeChallenge":       req.CodeChallenge,
		"CodeChallengeMethod": req.CodeChallengeMethod,
	})
}

// Consent processes the approval decision (POST /consent). CSRF protection
// is enforced by middleware before this runs.
func (h *ConsentHandler) Consent(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	redirectURI := c.PostForm("redirect_uri")
	state := c.PostForm("state")

	claims, ok := h.currentOpSession(c, tenantID)
	if !ok {
		redirectWithError(c, redirectURI, state, "access_denied", "login required")
		return
	}

	// Re-validate on POST so tampered form fields cannot widen the grant
	req, err := h.validateParams(c, tenantID, formParams(c))
	if err != nil {
		return
	}

	if c.PostForm("action") != "approve" {
		h.logConsent(c, models.EventConsentDenied, tenantID, claims.UserID, req, false)
		redirectWithError(c, req.RedirectURI, req.State,
			"access_denied", "user denied the authorization request")
		return
	}

	h.logConsent(c, models.EventConsentGranted, tenantID, claims.UserID, req, true)
	issueCodeAndRedirect(c, h.authorizationService, tenantID, claims.UserID, req)
}

// authorizeParams carries the request parameters shared by the GET and POST
// halves of the consent flow.
type authorizeParams struct {
	clientID            string
	redirectURI         string
	scope               string
	state               string
	codeChallenge       string
	codeChallengeMethod string
}

func queryParams(c *gin.Context) authorizeParams {
	return authorizeParams{
		clientID:            c.Query("client_id"),
		redirectURI:         c.Query("redirect_uri"),
		scope:               c.Query("scope"),
		state:               c.Query("state"),
		codeChallenge:       c.Query("code_challenge"),
		codeChallengeMethod: c.Query("code_challenge_method"),
	}
}

func formParams(c *gin.Context) authorizeParams {
	return authorizeParams{
		clientID:            c.PostForm("client_id"),
		redirectURI:         c.PostForm("redirect_uri"),
		scope:               c.PostForm("scope"),
		state:               c.PostForm("state"),
		codeChallenge:       c.PostForm("code_challenge"),
		codeChallengeMethod: c.PostForm("code_challenge_method"),
	}
}

// validateParams resolves the client and validates the authorization request.
// On failure it writes the error response and returns a non-nil error.
func (h *ConsentHandler) validateParams(
	c *gin.Context,
	tenantID string,
	p authorizeParams,
) (*services.AuthorizeRequest, error) {
	if p.clientID == "" {
		renderErrorPage(c, http.StatusBadRequest, errInvalidRequest, "client_id is required")
		return nil, services.ErrClientNotFound
	}
	if len(p.state) > maxStateLength {
		renderErrorPage(c, http.StatusBadRequest, errInvalidRequest,
			"state parameter exceeds maximum length")
		return nil, errors.New("state too long")
	}

	client, err := h.clientService.ResolveClient(tenantID, p.clientID)
	if err != nil {
		renderErrorPage(c, http.StatusBadRequest, errInvalidRequest, "unknown client")
		return nil, err
	}

	req, err := h.authorizationService.ValidateAuthorizeRequest(
		client, p.redirectURI, "code", p.scope, p.state,
		p.codeChallenge, p.codeChallengeMethod,
	)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRedirectURI) {
			renderErrorPage(c, http.StatusBadRequest, errInvalidRequest, "invalid redirect_uri")
			return nil, err
		}
		redirectWithError(c, p.redirectURI, p.state, oauthErrorCode(err), err.Error())
		return nil, err
	}
	return req, nil
}

// currentOpSession mirrors the /authorize check.
func (h *ConsentHandler) currentOpSession(
	c *gin.Context,
	tenantID string,
) (*services.OpSessionClaims, bool) {
	cookie, err := c.Cookie(OpSessionCookieName)
	if err != nil {
		return nil, false
	}
	claims, err := h.opSessionService.Validate(c.Request.Context(), cookie)
	if err != nil {
		return nil, false
	}
	if tenantID != "" && claims.TenantID != tenantID {
		return nil, false
	}
	return claims, true
}

func (h *ConsentHandler) logConsent(
	c *gin.Context,
	eventType models.EventType,
	tenantID, userID string,
	req *services.AuthorizeRequest,
	granted bool,
) {
	if h.auditService == nil {
		return
	}
	h.auditService.Log(c.Request.Context(), services.AuditEntry{
		EventType:   eventType,
		Severity:    models.SeverityInfo,
		TenantID:    tenantID,
		ActorUserID: userID,
		ActorIP:     middleware.ClientIP(c),
		ClientID:    req.Client.ClientID,
		Details: models.AuditDetails{
			"scope": req.Scope,
		},
		Success: granted,
	})
}
