package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultFailure = "failure"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	// If NoopMetrics, return a lightweight middleware that does nothing
	if _, ok := m.(*NoopMetrics); ok {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	// Type assert to concrete Metrics for Prometheus access
	metrics, ok := m.(*Metrics)
	if !ok {
		// Fallback if unknown implementation
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()

		// Increment in-flight counter
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		// Process request
		c.Next()

		// Record metrics after request completes
		duration := time.Since(start).Seconds()
		method := c.Request.Method
		path := normalizePath(c.FullPath()) // Use route pattern, not actual path
		status := strconv.Itoa(c.Writer.Status())

		// Record request count
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()

		// Record request duration
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// normalizePath converts the actual request path to route pattern
// Returns the route pattern (e.g., "/users/:id") or the path itself if no match
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

// RecordCodeIssued records authorization code issuance
func (m *Metrics) RecordCodeIssued(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.CodesIssuedTotal.WithLabelValues(result).Inc()
}

// RecordCodeRedemption records authorization code redemption result
func (m *Metrics) RecordCodeRedemption(result string) {
	// result: success, expired, consumed, pkce_mismatch, invalid
	m.CodesRedeemedTotal.WithLabelValues(result).Inc()
}

// RecordTokenIssued records access token issuance
func (m *Metrics) RecordTokenIssued(grantType string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(grantType).Inc()
	m.TokenGenerationDuration.WithLabelValues(grantType).Observe(generationTime.Seconds())
}

// RecordGrantRejected records a rejected token grant request
func (m *Metrics) RecordGrantRejected(grantType, reason string) {
	m.GrantsRejectedTotal.WithLabelValues(grantType, reason).Inc()
}

// RecordRefreshRotation records a refresh token rotation attempt
func (m *Metrics) RecordRefreshRotation(result string) {
	// result: success, reuse_detected, expired, revoked, invalid
	m.RefreshRotationsTotal.WithLabelValues(result).Inc()
}

// RecordTokenVerification records a JWT verification
func (m *Metrics) RecordTokenVerification(result string, duration time.Duration) {
	// result: valid, expired, unknown_key, invalid
	m.TokenVerificationTotal.WithLabelValues(result).Inc()
	m.TokenVerificationDuration.Observe(duration.Seconds())
}

// RecordKeyRotation records a signing key rotation
func (m *Metrics) RecordKeyRotation(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.KeyRotationsTotal.WithLabelValues(result).Inc()
}

// RecordLogin records a login attempt
func (m *Metrics) RecordLogin(success bool) {
	result := resultSuccess
	if !success {
		result = resultFailure
	}
	m.LoginTotal.WithLabelValues(result).Inc()
}

// RecordSessionCreated records session creation
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreatedTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionRevoked records session revocation
func (m *Metrics) RecordSessionRevoked(reason string) {
	m.SessionsActive.Dec()
	m.SessionsRevokedTotal.WithLabelValues(reason).Inc()
}

// SetActiveSessionsCount sets the current count of active sessions (for periodic updates)
func (m *Metrics) SetActiveSessionsCount(count int) {
	m.SessionsActive.Set(float64(count))
}

// RecordDatabaseQueryError records a database query error
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
