package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/tenauth/tenauth/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	// CSRFCookieName is the double-submit cookie. It is deliberately NOT
	// HTTP-only: the browser app reads it and echoes it back in the header.
	CSRFCookieName  = "csrf"
	csrfHeaderField = "X-CSRF-Token"
	csrfFormField   = "csrf_token"
	csrfContextKey  = "csrf_token"
)

// CSRFMiddleware implements double-submit cookie CSRF protection. Every
// response carries a csrf cookie; state-changing requests must echo the
// cookie value in the X-CSRF-Token header or a form field. An attacker on
// another origin can force the cookie to be sent but cannot read it, so
// matching values prove the request came from our own pages.
func CSRFMiddleware(ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CSRFCookieName)
		if err != nil || token == "" {
			token, err = util.CryptoRandomHex(32)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":             "server_error",
					"error_description": "failed to generate CSRF token",
				})
				c.Abort()
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CSRFCookieName, token, int(ttl.Seconds()), "/", "", secure, false)
		}

		// Make the token available to templates
		c.Set(csrfContextKey, token)

		// Validate for state-changing methods
		if c.Request.Method == http.MethodPost ||
			c.Request.Method == http.MethodPut ||
			c.Request.Method == http.MethodDelete ||
			c.Request.Method == http.MethodPatch {
			submitted := c.GetHeader(csrfHeaderField)
			if submitted == "" {
				submitted = c.PostForm(csrfFormField)
			}

			if submitted == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
				c.JSON(http.StatusForbidden, gin.H{
					"error":             "invalid_request",
					"error_description": "CSRF token validation failed",
				})
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

// CSRFToken returns the token stored by CSRFMiddleware for template rendering
func CSRFToken(c *gin.Context) string {
	token, _ := c.Get(csrfContextKey)
	if s, ok := token.(string); ok {
		return s
	}
	return ""
}
