package metrics

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authorization code flow
	RecordCodeIssued(success bool)
	RecordCodeRedemption(result string)

	// Token operations
	RecordTokenIssued(grantType string, generationTime time.Duration)
	RecordGrantRejected(grantType, reason string)
	RecordRefreshRotation(result string)
	RecordTokenVerification(result string, duration time.Duration)

	// Key management
	RecordKeyRotation(success bool)

	// Authentication and sessions
	RecordLogin(success bool)
	RecordSessionCreated()
	RecordSessionRevoked(reason string)

	// Gauge setters (for periodic updates)
	SetActiveSessionsCount(count int)

	// Database operations
	RecordDatabaseQueryError(operation string)
}
