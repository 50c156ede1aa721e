package services

import (
	"context"
	"errors"

	"github.com/tenauth/tenauth/internal/metrics"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
)

// ErrInvalidCredentials is returned for any login failure: unknown email,
// wrong password, or a deactivated account. Callers must not distinguish.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService handles end-user authentication.
type UserService struct {
	store   *store.Store
	audit   *AuditService
	metrics metrics.Recorder
}

func NewUserService(s *store.Store, audit *AuditService, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &UserService{
		store:   s,
		audit:   audit,
		metrics: recorder,
	}
}

// Authenticate checks an email/password pair within the tenant.
func (s *UserService) Authenticate(
	ctx context.Context,
	tenantID, email, password string,
) (*models.User, error) {
	user, err := s.store.GetUserByEmail(tenantID, email)
	if err != nil || !user.IsActive || !user.ValidatePassword(password) {
		s.metrics.RecordLogin(false)
		if s.audit != nil {
			s.audit.Log(ctx, AuditEntry{
				EventType: models.EventLoginFailure,
				Severity:  models.SeverityWarning,
				TenantID:  tenantID,
				Success:   false,
			})
		}
		return nil, ErrInvalidCredentials
	}

	s.metrics.RecordLogin(true)
	if s.audit != nil {
		s.audit.Log(ctx, AuditEntry{
			EventType:   models.EventLoginSuccess,
			Severity:    models.SeverityInfo,
			TenantID:    tenantID,
			ActorUserID: user.ID,
			Success:     true,
		})
	}
	return user, nil
}

// GetUser loads a user by ID.
func (s *UserService) GetUser(id string) (*models.User, error) {
	return s.store.GetUserByID(id)
}
