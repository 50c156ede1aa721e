package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/middleware"
	"github.com/tenauth/tenauth/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthorizeHandler serves the /authorize endpoint of the Authorization Code
// Flow (RFC 6749 §4.1 with PKCE per RFC 7636).
type AuthorizeHandler struct {
	authorizationService *services.AuthorizationService
	clientService        *services.ClientService
	opSessionService     *services.OpSessionService
	config               *config.Config
}

func NewAuthorizeHandler(
	as *services.AuthorizationService,
	cs *services.ClientService,
	os *services.OpSessionService,
	cfg *config.Config,
) *AuthorizeHandler {
	return &AuthorizeHandler{
		authorizationService: as,
		clientService:        cs,
		opSessionService:     os,
		config:               cfg,
	}
}

// Authorize validates the request, then routes the browser onward: to /login
// when no OP session exists, to /consent for third-party clients, or straight
// back to the client with a code for first-party ones. The original query
// string rides along so the flow resumes where it left off.
func (h *AuthorizeHandler) Authorize(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	clientID := c.Query("client_id")
	redirectURI := c.Query("redirect_uri")
	state := c.Query("state")

	if clientID == "" {
		renderErrorPage(c, http.StatusBadRequest, errInvalidRequest, "client_id is required")
		return
	}
	if len(state) > maxStateLength {
		renderErrorPage(c, http.StatusBadRequest, errInvalidRequest,
			"state parameter exceeds maximum length")
		return
	}

	// Client and redirect_uri must check out before anything is redirected;
	// an unregistered redirect target never receives an error payload.
	client, err := h.clientService.ResolveClient(tenantID, clientID)
	if err != nil {
		renderErrorPage(c, http.StatusBadRequest, errInvalidRequest, "unknown client")
		return
	}

	req, err := h.authorizationService.ValidateAuthorizeRequest(
		client,
		redirectURI,
		c.Query("response_type"),
		c.Query("scope"),
		state,
		c.Query("code_challenge"),
		c.Query("code_challenge_method"),
	)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRedirectURI) {
			renderErrorPage(c, http.StatusBadRequest, errInvalidRequest, "invalid redirect_uri")
			return
		}
		redirectWithError(c, redirectURI, state, oauthErrorCode(err), err.Error())
		return
	}

	// No valid OP session means the user signs in first, then returns here.
	sess, ok := h.currentOpSession(c, tenantID)
	if !ok {
		target := url.Values{"redirect": {c.Request.URL.RequestURI()}}
		c.Redirect(http.StatusFound, "/login?"+target.Encode())
		return
	}

	// First-party clients skip the consent page
	if client.FirstParty {
		issueCodeAndRedirect(c, h.authorizationService, tenantID, sess.UserID, req)
		return
	}

	c.Redirect(http.StatusFound, "/consent?"+c.Request.URL.RawQuery)
}

// currentOpSession validates the op_session cookie against the request
// tenant. Any failure reads as "not logged in", never as a hard error.
func (h *AuthorizeHandler) currentOpSession(
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

// issueCodeAndRedirect mints a one-time code and sends the browser back to
// the client's redirect_uri with code and state.
func issueCodeAndRedirect(
	c *gin.Context,
	as *services.AuthorizationService,
	tenantID, userID string,
	req *services.AuthorizeRequest,
) {
	plainCode, err := as.IssueCode(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		redirectWithError(c, req.RedirectURI, req.State, errServerError,
			"failed to generate authorization code")
		return
	}

	u, err := url.Parse(req.RedirectURI)
	if err != nil {
		renderErrorPage(c, http.StatusInternalServerError, errServerError, "invalid redirect_uri")
		return
	}
	q := u.Query()
	q.Set("code", plainCode)
	if req.State != "" {
		q.Set("state", req.State)
	}
	u.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, u.String())
}
