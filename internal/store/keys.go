package store

import (
	"errors"
	"time"

	"github.com/tenauth/tenauth/internal/models"

	"gorm.io/gorm"
)

// Signing key operations

func (s *Store) CreateSigningKey(key *models.SigningKey) error {
	return s.db.Create(key).Error
}

// GetActiveSigningKey returns the active key with the most recent notBefore.
// There should only ever be one active key; ordering makes the read
// deterministic if rotation is interrupted mid-way.
func (s *Store) GetActiveSigningKey() (*models.SigningKey, error) {
	var key models.SigningKey
	err := s.db.Where("status = ?", models.KeyStatusActive).
		Order("not_before DESC").
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveKey
		}
		return nil, err
	}
	return &key, nil
}

func (s *Store) GetSigningKeyByKid(kid string) (*models.SigningKey, error) {
	var key models.SigningKey
	if err := s.db.Where("kid = ?", kid).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &key, nil
}

// ActivateSigningKey marks the key active before retiring its predecessors,
// so verification never hits a window with zero usable keys.
func (s *Store) ActivateSigningKey(kid string, notBefore time.Time) error {
	return s.db.Model(&models.SigningKey{}).
		Where("kid = ?", kid).
		Updates(map[string]any{
			"status":     models.KeyStatusActive,
			"not_before": notBefore,
		}).Error
}

// RetireSigningKeysExcept retires every active key other than kid, stamping
// not_after so retired keys can eventually be pruned.
func (s *Store) RetireSigningKeysExcept(kid string, notAfter time.Time) error {
	return s.db.Model(&models.SigningKey{}).
		Where("status = ? AND kid <> ?", models.KeyStatusActive, kid).
		Updates(map[string]any{
			"status":    models.KeyStatusRetired,
			"not_after": notAfter,
		}).Error
}

// ListPublishableKeys returns active and retired keys, newest first. Retired
// keys stay in the JWKS so tokens signed before a rotation still verify.
func (s *Store) ListPublishableKeys() ([]models.SigningKey, error) {
	var keys []models.SigningKey
	err := s.db.Where("status IN ?", []string{models.KeyStatusActive, models.KeyStatusRetired}).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

// DeleteRetiredSigningKeys removes retired keys whose not_after is older than
// the cutoff.
func (s *Store) DeleteRetiredSigningKeys(cutoff time.Time) error {
	return s.db.Where("status = ? AND not_after < ?", models.KeyStatusRetired, cutoff).
		Delete(&models.SigningKey{}).Error
}
