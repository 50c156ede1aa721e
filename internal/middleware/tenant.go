package middleware

import (
	"net"
	"strings"

	"github.com/tenauth/tenauth/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	// TenantHeader carries an explicit tenant identifier; it wins over the
	// Host lookup when present.
	TenantHeader = "X-Tenant-ID"

	tenantContextKey = "tenant_id"
)

// TenantMiddleware resolves the tenant for the request: the X-Tenant-ID
// header first, then a hostname lookup. Requests without a resolvable tenant
// proceed with an empty tenant; handlers that need one fall back to
// global-realm client resolution or reject.
func TenantMiddleware(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(TenantHeader); id != "" {
			if tenant, err := s.GetTenantByID(id); err == nil {
				c.Set(tenantContextKey, tenant.ID)
				c.Next()
				return
			}
		}

		host := c.Request.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = strings.ToLower(host)

		if tenant, err := s.GetTenantByHostname(host); err == nil {
			c.Set(tenantContextKey, tenant.ID)
		}
		c.Next()
	}
}

// TenantID returns the tenant resolved for the request, or "" when none.
func TenantID(c *gin.Context) string {
	id, _ := c.Get(tenantContextKey)
	if s, ok := id.(string); ok {
		return s
	}
	return ""
}
