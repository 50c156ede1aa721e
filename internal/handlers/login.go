package handlers

import (
	"net/http"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/middleware"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/services"

	"github.com/gin-gonic/gin"
)

// LoginHandler serves the OP login page and session lifecycle.
type LoginHandler struct {
	userService      *services.UserService
	opSessionService *services.OpSessionService
	sessionService   *services.SessionService
	auditService     *services.AuditService
	config           *config.Config
}

func NewLoginHandler(
	us *services.UserService,
	os *services.OpSessionService,
	ss *services.SessionService,
	as *services.AuditService,
	cfg *config.Config,
) *LoginHandler {
	return &LoginHandler{
		userService:      us,
		opSessionService: os,
		sessionService:   ss,
		auditService:     as,
		config:           cfg,
	}
}

// LoginPage renders the login form (GET /login).
func (h *LoginHandler) LoginPage(c *gin.Context) {
	redirectTo := c.Query("redirect")
	if !isRedirectSafe(redirectTo) {
		redirectTo = ""
	}

	// An existing valid session skips the form entirely
	if cookie, err := c.Cookie(OpSessionCookieName); err == nil {
		if _, err := h.opSessionService.Validate(c.Request.Context(), cookie); err == nil {
			if redirectTo == "" {
				redirectTo = "/"
			}
			c.Redirect(http.StatusFound, redirectTo)
			return
		}
	}

	h.renderLogin(c, http.StatusOK, redirectTo, c.Query("error"))
}

// Login verifies the tenant-scoped credentials and issues the OP session
// cookie (POST /login).
func (h *LoginHandler) Login(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")
	redirectTo := c.PostForm("redirect")
	if !isRedirectSafe(redirectTo) {
		redirectTo = ""
	}

	tenantID := middleware.TenantID(c)
	if tenantID == "" {
		h.renderLogin(c, http.StatusBadRequest, redirectTo, "unknown tenant")
		return
	}
	if email == "" || password == "" {
		h.renderLogin(c, http.StatusBadRequest, redirectTo, "email and password are required")
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), tenantID, email, password)
	if err != nil {
		h.renderLogin(c, http.StatusUnauthorized, redirectTo, "invalid email or password")
		return
	}

	token, err := h.opSessionService.Issue(c.Request.Context(), tenantID, user.ID)
	if err != nil {
		h.renderLogin(c, http.StatusInternalServerError, redirectTo, "login failed, try again")
		return
	}
	setOpSessionCookie(c, h.config, token)

	if redirectTo == "" {
		redirectTo = "/"
	}
	c.Redirect(http.StatusFound, redirectTo)
}

// Logout revokes the refresh chain behind the rt cookie, clears every auth
// cookie, and returns to the login page (POST /logout).
func (h *LoginHandler) Logout(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	if raw, err := c.Cookie(RefreshCookieName); err == nil && raw != "" {
		// Unknown tokens are a no-op; revocation is idempotent
		_ = h.sessionService.RevokeByRawToken(c.Request.Context(), tenantID, raw)
	}

	var userID string
	if cookie, err := c.Cookie(OpSessionCookieName); err == nil {
		if claims, err := h.opSessionService.Validate(c.Request.Context(), cookie); err == nil {
			userID = claims.UserID
		}
	}

	clearAuthCookies(c, h.config)

	if h.auditService != nil {
		h.auditService.Log(c.Request.Context(), services.AuditEntry{
			EventType:   models.EventLogout,
			Severity:    models.SeverityInfo,
			TenantID:    tenantID,
			ActorUserID: userID,
			ActorIP:     middleware.ClientIP(c),
			Success:     true,
		})
	}

	c.Redirect(http.StatusFound, "/login")
}

func (h *LoginHandler) renderLogin(c *gin.Context, status int, redirectTo, errMsg string) {
	c.HTML(status, "login.html", gin.H{
		"CSRFToken": middleware.CSRFToken(c),
		"Redirect":  redirectTo,
		"Error":     errMsg,
	})
}
