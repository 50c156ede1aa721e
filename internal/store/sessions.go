package store

import (
	"errors"
	"time"

	"github.com/tenauth/tenauth/internal/models"

	"gorm.io/gorm"
)

// Session and refresh token operations

func (s *Store) CreateSession(session *models.Session) error {
	return s.db.Create(session).Error
}

func (s *Store) GetSessionByID(id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *Store) TouchSession(id string, at time.Time) error {
	return s.db.Model(&models.Session{}).
		Where("id = ?", id).
		Update("last_seen_at", at).Error
}

func (s *Store) ListSessionsByUser(tenantID, userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (s *Store) CreateRefreshToken(token *models.RefreshToken) error {
	return s.db.Create(token).Error
}

func (s *Store) GetRefreshTokenByHash(tenantID, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.db.Where("tenant_id = ? AND token_hash = ?", tenantID, tokenHash).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &token, nil
}

// RotateRefreshToken revokes the old token and inserts its successor in one
// transaction. The revocation is conditional on revoked_at being NULL, so two
// concurrent rotations of the same token race on the WHERE clause; the loser
// sees zero rows updated and gets ErrTokenAlreadyRevoked, and nothing it
// wrote survives the rollback.
func (s *Store) RotateRefreshToken(oldID string, next *models.RefreshToken) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", oldID).
			Update("revoked_at", time.Now())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTokenAlreadyRevoked
		}
		return tx.Create(next).Error
	})
}

// RevokeRefreshToken revokes a single token. Already-revoked tokens yield
// ErrTokenAlreadyRevoked.
func (s *Store) RevokeRefreshToken(id string) error {
	result := s.db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenAlreadyRevoked
	}
	return nil
}

// RevokeSessionTokens revokes every live token in the session's chain. Used
// on logout and when reuse of a rotated token is detected.
func (s *Store) RevokeSessionTokens(sessionID string) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("session_id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", time.Now()).Error
}

// DeleteExpiredRefreshTokens prunes tokens past their expiry.
func (s *Store) DeleteExpiredRefreshTokens() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.RefreshToken{}).Error
}
