package bootstrap

import (
	"fmt"

	"github.com/tenauth/tenauth/internal/metrics"
	"github.com/tenauth/tenauth/internal/middleware"
	"github.com/tenauth/tenauth/internal/templates"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter assembles the gin engine with middleware and all routes.
func (a *App) buildRouter() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(templates.Load())

	r.Use(middleware.IPMiddleware())
	r.Use(middleware.TenantMiddleware(a.Store))
	if a.Config.MetricsEnabled {
		r.Use(metrics.HTTPMetricsMiddleware(a.Metrics))
	}

	loginLimiter, tokenLimiter, err := a.rateLimiters()
	if err != nil {
		return nil, err
	}

	csrf := middleware.CSRFMiddleware(a.Config.CSRFTokenExpiration, a.Config.CookieSecure)

	authorize := a.authorizeHandler()
	login := a.loginHandler()
	consent := a.consentHandler()
	token := a.tokenHandler()
	oidc := a.oidcHandler()

	// Browser-facing flow; form posts are CSRF protected
	r.GET("/authorize", authorize.Authorize)

	browser := r.Group("/", csrf)
	browser.GET("/login", loginLimiter, login.LoginPage)
	browser.POST("/login", loginLimiter, login.Login)
	browser.POST("/logout", login.Logout)
	browser.GET("/consent", consent.ConsentPage)
	browser.POST("/consent", consent.Consent)

	// Machine-facing OAuth2/OIDC surface
	r.POST("/token", tokenLimiter, token.Token)
	r.POST("/introspect", oidc.Introspect)
	r.POST("/revoke", oidc.Revoke)
	r.GET("/userinfo", oidc.UserInfo)
	r.POST("/userinfo", oidc.UserInfo)
	r.GET("/jwks.json", oidc.JWKS)
	r.GET("/.well-known/openid-configuration", oidc.Discovery)

	r.GET("/healthz", oidc.Healthz)
	if a.Config.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return r, nil
}

// rateLimiters builds the per-endpoint limiters. A pass-through handler is
// used when rate limiting is disabled so route wiring stays uniform.
func (a *App) rateLimiters() (gin.HandlerFunc, gin.HandlerFunc, error) {
	if !a.Config.RateLimitEnabled {
		noop := func(c *gin.Context) { c.Next() }
		return noop, noop, nil
	}

	loginLimiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:        a.Config.RateLimitLogin,
		RedisClient: a.Redis,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build login rate limiter: %w", err)
	}

	tokenLimiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:        a.Config.RateLimitToken,
		RedisClient: a.Redis,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build token rate limiter: %w", err)
	}

	return loginLimiter, tokenLimiter, nil
}
