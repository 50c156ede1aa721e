package store

import (
	"errors"

	"github.com/tenauth/tenauth/internal/models"

	"gorm.io/gorm"
)

// Client and tenant operations

func (s *Store) CreateClient(client *models.Client) error {
	return s.db.Create(client).Error
}

// GetClient returns the client registered under the given tenant.
func (s *Store) GetClient(tenantID, clientID string) (*models.Client, error) {
	var client models.Client
	err := s.db.Where("tenant_id = ? AND client_id = ? AND is_active = ?", tenantID, clientID, true).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &client, nil
}

// GetGlobalClient returns a client registered in the global realm, regardless
// of which tenant registered it.
func (s *Store) GetGlobalClient(clientID string) (*models.Client, error) {
	var client models.Client
	err := s.db.Where("client_id = ? AND global_realm = ? AND is_active = ?", clientID, true, true).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (s *Store) ListClients(tenantID string) ([]models.Client, error) {
	var clients []models.Client
	err := s.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&clients).Error
	return clients, err
}

func (s *Store) GetTenantByID(id string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.Where("id = ? AND is_active = ?", id, true).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) GetTenantByHostname(hostname string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.Where("hostname = ? AND is_active = ?", hostname, true).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) CreateTenant(tenant *models.Tenant) error {
	return s.db.Create(tenant).Error
}
