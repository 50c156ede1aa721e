package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/services"

	"github.com/gin-gonic/gin"
)

// Cookie names shared by the browser-facing handlers.
const (
	OpSessionCookieName = "op_session"
	RefreshCookieName   = "rt"
	AccessCookieName    = "at"
)

const (
	errInvalidRequest = "invalid_request"
	errInvalidGrant   = "invalid_grant"
	errInvalidClient  = "invalid_client"
	errServerError    = "server_error"

	maxStateLength = 1024
)

// oauthError writes an RFC 6749 error body.
func oauthError(c *gin.Context, status int, code, description string) {
	c.JSON(status, gin.H{
		"error":             code,
		"error_description": description,
	})
}

// oauthErrorCode maps authorization service errors to RFC 6749 error codes
// for the /authorize redirect path.
func oauthErrorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrUnsupportedResponseType):
		return "unsupported_response_type"
	case errors.Is(err, services.ErrInvalidScope):
		return "invalid_scope"
	case errors.Is(err, services.ErrPKCERequired),
		errors.Is(err, services.ErrInvalidCodeVerifier):
		return errInvalidRequest
	case errors.Is(err, services.ErrGrantNotAllowed):
		return "unauthorized_client"
	default:
		return errInvalidRequest
	}
}

// renderErrorPage renders the standalone error page for failures that must
// not be redirected back to the client (missing or unregistered redirect_uri).
func renderErrorPage(c *gin.Context, status int, code, message string) {
	c.HTML(status, "error.html", gin.H{
		"Error":   code,
		"Message": message,
	})
}

// redirectWithError sends an OAuth error to the client's redirect_uri. Falls
// back to the error page when no trustworthy redirect target exists.
func redirectWithError(c *gin.Context, redirectURI, state, code, description string) {
	if redirectURI == "" {
		renderErrorPage(c, http.StatusBadRequest, code, description)
		return
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		renderErrorPage(c, http.StatusBadRequest, code, description)
		return
	}
	q := u.Query()
	q.Set("error", code)
	if description != "" {
		q.Set("error_description", description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, u.String())
}

// isRedirectSafe reports whether a post-login redirect target is a local
// path. Absolute URLs and protocol-relative forms are rejected to prevent
// open redirects.
func isRedirectSafe(redirectURL string) bool {
	if redirectURL == "" {
		return true
	}
	if strings.ContainsAny(redirectURL, "\r\n") {
		return false
	}
	if !strings.HasPrefix(redirectURL, "/") {
		return false
	}
	if strings.HasPrefix(redirectURL, "//") || strings.Contains(redirectURL, "\\") {
		return false
	}
	return true
}

// setAuthCookies attaches the refresh and access tokens as HTTP-only cookies
// for first-party clients. The refresh cookie lives as long as the token's
// rotation window; the access cookie expires with the token itself.
func setAuthCookies(c *gin.Context, cfg *config.Config, resp *services.TokenResponse) {
	c.SetSameSite(http.SameSiteLaxMode)
	if resp.RefreshToken != "" {
		c.SetCookie(
			RefreshCookieName,
			resp.RefreshToken,
			int(cfg.RefreshTokenExpiration.Seconds()),
			"/",
			cfg.CookieDomain,
			cfg.CookieSecure,
			true,
		)
	}
	c.SetCookie(
		AccessCookieName,
		resp.AccessToken,
		resp.ExpiresIn,
		"/",
		cfg.CookieDomain,
		cfg.CookieSecure,
		true,
	)
}

// clearAuthCookies expires every auth cookie, including the OP session.
func clearAuthCookies(c *gin.Context, cfg *config.Config) {
	for _, name := range []string{OpSessionCookieName, RefreshCookieName, AccessCookieName} {
		c.SetCookie(name, "", -1, "/", cfg.CookieDomain, cfg.CookieSecure, true)
	}
}

// setOpSessionCookie attaches the signed OP login session.
func setOpSessionCookie(c *gin.Context, cfg *config.Config, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		OpSessionCookieName,
		token,
		int(cfg.OpSessionExpiration.Seconds()),
		"/",
		cfg.CookieDomain,
		cfg.CookieSecure,
		true,
	)
}
