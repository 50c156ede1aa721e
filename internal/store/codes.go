package store

import (
	"errors"
	"time"

	"github.com/tenauth/tenauth/internal/models"

	"gorm.io/gorm"
)

// Authorization code operations

func (s *Store) CreateAuthorizationCode(code *models.AuthorizationCode) error {
	return s.db.Create(code).Error
}

// GetAuthorizationCodeByHash looks up a code by its SHA-256 hash, scoped to
// the tenant and client that the redeeming request presented.
func (s *Store) GetAuthorizationCodeByHash(tenantID, clientID, codeHash string) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	err := s.db.Where("tenant_id = ? AND client_id = ? AND code_hash = ?", tenantID, clientID, codeHash).
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &code, nil
}

// ConsumeAuthorizationCode marks the code consumed with a conditional update.
// Two concurrent redemptions race on the WHERE clause; the loser sees zero
// rows updated and gets ErrCodeAlreadyConsumed.
func (s *Store) ConsumeAuthorizationCode(id uint) error {
	result := s.db.Model(&models.AuthorizationCode{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCodeAlreadyConsumed
	}
	return nil
}

// DeleteExpiredAuthorizationCodes prunes codes past their expiry.
func (s *Store) DeleteExpiredAuthorizationCodes() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.AuthorizationCode{}).Error
}
