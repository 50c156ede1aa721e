package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

// Authorization code flow - noop implementations
func (n *NoopMetrics) RecordCodeIssued(success bool)      {}
func (n *NoopMetrics) RecordCodeRedemption(result string) {}

// Token operations - noop implementations
func (n *NoopMetrics) RecordTokenIssued(grantType string, generationTime time.Duration) {}
func (n *NoopMetrics) RecordGrantRejected(grantType, reason string)                     {}
func (n *NoopMetrics) RecordRefreshRotation(result string)                              {}
func (n *NoopMetrics) RecordTokenVerification(result string, duration time.Duration)    {}

// Key management - noop implementations
func (n *NoopMetrics) RecordKeyRotation(success bool) {}

// Authentication and sessions - noop implementations
func (n *NoopMetrics) RecordLogin(success bool)           {}
func (n *NoopMetrics) RecordSessionCreated()              {}
func (n *NoopMetrics) RecordSessionRevoked(reason string) {}

// Gauge setters - noop implementations
func (n *NoopMetrics) SetActiveSessionsCount(count int) {}

// Database operations - noop implementations
func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
