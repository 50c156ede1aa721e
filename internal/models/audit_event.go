package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Authentication events
	EventLoginSuccess EventType = "LOGIN_SUCCESS"
	EventLoginFailure EventType = "LOGIN_FAILURE"
	EventLogout       EventType = "LOGOUT"

	// Authorization code flow events
	EventAuthorizationCodeIssued   EventType = "AUTHORIZATION_CODE_ISSUED"
	EventAuthorizationCodeRedeemed EventType = "AUTHORIZATION_CODE_REDEEMED"
	EventConsentGranted            EventType = "CONSENT_GRANTED"
	EventConsentDenied             EventType = "CONSENT_DENIED"

	// Token events
	EventAccessTokenIssued         EventType = "ACCESS_TOKEN_ISSUED"
	EventRefreshTokenRotated       EventType = "REFRESH_TOKEN_ROTATED"
	EventRefreshTokenReuseDetected EventType = "REFRESH_TOKEN_REUSE_DETECTED" //nolint:gosec // G101: event type name, not a credential
	EventTokenRevoked              EventType = "TOKEN_REVOKED"
	EventSessionRevoked            EventType = "SESSION_REVOKED"

	// Key management events
	EventSigningKeyRotated EventType = "SIGNING_KEY_ROTATED"
	EventSigningKeyCreated EventType = "SIGNING_KEY_CREATED"

	// Security events
	EventRateLimitExceeded EventType = "RATE_LIMIT_EXCEEDED"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityCritical EventSeverity = "CRITICAL"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements the driver.Valuer interface for database storage
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // nil driver.Value represents SQL NULL
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *AuditDetails) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal AuditDetails value: %v", value)
	}

	result := make(AuditDetails)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}

	*a = result
	return nil
}

// AuditEvent is an immutable audit trail entry.
type AuditEvent struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID string `gorm:"type:varchar(36);index"      json:"tenant_id"`

	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	EventTime time.Time     `gorm:"index;not null"                  json:"event_time"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	ActorUserID string `gorm:"type:varchar(36);index" json:"actor_user_id"`
	ActorIP     string `gorm:"type:varchar(45);index" json:"actor_ip"` // Support IPv6
	ClientID    string `gorm:"type:varchar(100);index" json:"client_id"`
	SessionID   string `gorm:"type:varchar(36);index"  json:"session_id"`

	Details      AuditDetails `gorm:"type:json"      json:"details"`
	Success      bool         `gorm:"index;not null" json:"success"`
	ErrorMessage string       `gorm:"type:text"      json:"error_message,omitempty"`

	// Timestamps (no UpdatedAt - immutable logs)
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditEvent) TableName() string {
	return "audit_events"
}
