package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"

	"github.com/google/uuid"
)

// AuditEntry represents the data needed to create an audit event
type AuditEntry struct {
	EventType    models.EventType
	Severity     models.EventSeverity
	TenantID     string
	ActorUserID  string
	ActorIP      string
	ClientID     string
	SessionID    string
	Details      models.AuditDetails
	Success      bool
	ErrorMessage string
}

// AuditService handles audit logging operations
type AuditService struct {
	store      *store.Store
	enabled    bool
	bufferSize int

	// Async logging channel
	eventChan chan *models.AuditEvent

	// Batch buffer
	batchBuffer []*models.AuditEvent
	batchMutex  sync.Mutex
	batchTicker *time.Ticker

	// Graceful shutdown
	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// NewAuditService creates a new audit service
func NewAuditService(s *store.Store, enabled bool, bufferSize int) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1000 // Default buffer size
	}

	service := &AuditService{
		store:       s,
		enabled:     enabled,
		bufferSize:  bufferSize,
		eventChan:   make(chan *models.AuditEvent, bufferSize),
		batchBuffer: make([]*models.AuditEvent, 0, 100),
		batchTicker: time.NewTicker(1 * time.Second),
		shutdownCh:  make(chan struct{}),
	}

	if enabled {
		service.wg.Add(1)
		go service.worker()
		log.Printf("Audit service started with buffer size %d", bufferSize)
	} else {
		log.Println("Audit service is disabled")
	}

	return service
}

// worker is the background goroutine that processes audit events
func (s *AuditService) worker() {
	defer s.wg.Done()

	for {
		select {
		case event := <-s.eventChan:
			s.addToBatch(event)

		case <-s.batchTicker.C:
			// Flush batch every second
			s.flushBatch()

		case <-s.shutdownCh:
			// Flush remaining events before shutdown
			s.flushBatch()
			return
		}
	}
}

// addToBatch adds an event to the batch buffer
func (s *AuditService) addToBatch(event *models.AuditEvent) {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()

	s.batchBuffer = append(s.batchBuffer, event)

	// Flush if batch is full (100 entries)
	if len(s.batchBuffer) >= 100 {
		s.flushBatchUnsafe()
	}
}

// flushBatch flushes the batch buffer to the database (thread-safe)
func (s *AuditService) flushBatch() {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()
	s.flushBatchUnsafe()
}

// flushBatchUnsafe flushes the batch buffer without locking (caller must hold lock)
func (s *AuditService) flushBatchUnsafe() {
	if len(s.batchBuffer) == 0 {
		return
	}

	// Copy buffer for writing
	toWrite := make([]*models.AuditEvent, len(s.batchBuffer))
	copy(toWrite, s.batchBuffer)

	// Clear buffer
	s.batchBuffer = s.batchBuffer[:0]

	if err := s.store.CreateAuditEventBatch(toWrite); err != nil {
		log.Printf("Failed to write audit event batch: %v", err)
	}
}

// Log records an audit event asynchronously
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) {
	if !s.enabled {
		return
	}

	event := s.buildEvent(entry)

	// Try to send to channel (non-blocking)
	select {
	case s.eventChan <- event:
		// Successfully sent
	default:
		// Channel is full, drop the event and log warning
		log.Printf("WARNING: Audit buffer full, dropping event: %s", entry.EventType)
	}
}

// LogSync records an audit event synchronously (for critical events such as
// refresh token reuse detection)
func (s *AuditService) LogSync(ctx context.Context, entry AuditEntry) error {
	if !s.enabled {
		return nil
	}
	return s.store.CreateAuditEvent(s.buildEvent(entry))
}

func (s *AuditService) buildEvent(entry AuditEntry) *models.AuditEvent {
	return &models.AuditEvent{
		ID:           uuid.New().String(),
		TenantID:     entry.TenantID,
		EventType:    entry.EventType,
		EventTime:    time.Now(),
		Severity:     entry.Severity,
		ActorUserID:  entry.ActorUserID,
		ActorIP:      entry.ActorIP,
		ClientID:     entry.ClientID,
		SessionID:    entry.SessionID,
		Details:      maskSensitiveDetails(entry.Details),
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    time.Now(),
	}
}

// GetEvents retrieves audit events with filtering, newest first
func (s *AuditService) GetEvents(
	filters store.AuditEventFilters,
	limit, offset int,
) ([]models.AuditEvent, int64, error) {
	return s.store.ListAuditEvents(filters, limit, offset)
}

// CleanupOldEvents deletes audit events older than the retention period
func (s *AuditService) CleanupOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.store.DeleteAuditEventsBefore(cutoff)
}

// Shutdown gracefully shuts down the audit service
func (s *AuditService) Shutdown(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	// Stop ticker
	s.batchTicker.Stop()

	// Signal worker to stop
	close(s.shutdownCh)

	// Wait for worker to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Audit service shut down gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit service shutdown timeout: %w", ctx.Err())
	}
}

// maskSensitiveDetails masks token and secret values in audit details
func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return details
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		if isSensitiveField(key) {
			masked[key] = "***"
			continue
		}
		masked[key] = value
	}
	return masked
}

func isSensitiveField(key string) bool {
	lower := strings.ToLower(key)
	for _, needle := range []string{"token", "secret", "password", "verifier", "code"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
