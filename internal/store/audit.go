package store

import (
	"time"

	"github.com/tenauth/tenauth/internal/models"
)

// AuditEventFilters contains filter criteria for querying audit events
type AuditEventFilters struct {
	TenantID    string               `json:"tenant_id,omitempty"`
	EventType   models.EventType     `json:"event_type,omitempty"`
	ActorUserID string               `json:"actor_user_id,omitempty"`
	ClientID    string               `json:"client_id,omitempty"`
	SessionID   string               `json:"session_id,omitempty"`
	Severity    models.EventSeverity `json:"severity,omitempty"`
	Success     *bool                `json:"success,omitempty"`
	StartTime   time.Time            `json:"start_time,omitzero"`
	EndTime     time.Time            `json:"end_time,omitzero"`
}

func (s *Store) CreateAuditEvent(event *models.AuditEvent) error {
	return s.db.Create(event).Error
}

// CreateAuditEventBatch inserts a batch of events in chunks of 100.
func (s *Store) CreateAuditEventBatch(events []*models.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.db.CreateInBatches(events, 100).Error
}

// ListAuditEvents returns events matching the filters, newest first.
func (s *Store) ListAuditEvents(filters AuditEventFilters, limit, offset int) ([]models.AuditEvent, int64, error) {
	query := s.db.Model(&models.AuditEvent{})

	if filters.TenantID != "" {
		query = query.Where("tenant_id = ?", filters.TenantID)
	}
	if filters.EventType != "" {
		query = query.Where("event_type = ?", filters.EventType)
	}
	if filters.ActorUserID != "" {
		query = query.Where("actor_user_id = ?", filters.ActorUserID)
	}
	if filters.ClientID != "" {
		query = query.Where("client_id = ?", filters.ClientID)
	}
	if filters.SessionID != "" {
		query = query.Where("session_id = ?", filters.SessionID)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}
	if filters.Success != nil {
		query = query.Where("success = ?", *filters.Success)
	}
	if !filters.StartTime.IsZero() {
		query = query.Where("event_time >= ?", filters.StartTime)
	}
	if !filters.EndTime.IsZero() {
		query = query.Where("event_time <= ?", filters.EndTime)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []models.AuditEvent
	err := query.Order("event_time DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// DeleteAuditEventsBefore removes events older than the cutoff and returns
// the number of rows removed.
func (s *Store) DeleteAuditEventsBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("event_time < ?", cutoff).Delete(&models.AuditEvent{})
	return result.RowsAffected, result.Error
}
