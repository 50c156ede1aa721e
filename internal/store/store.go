package store

import (
	"crypto/rand"
	"encoding/base64"
	"log"

	"github.com/tenauth/tenauth/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Client{},
		&models.SigningKey{},
		&models.AuthorizationCode{},
		&models.Session{},
		&models.RefreshToken{},
		&models.Role{},
		&models.Permission{},
		&models.UserRole{},
		&models.RolePermission{},
		&models.AuditEvent{},
	); err != nil {
		return nil, err
	}

	store := &Store{db: db}

	// Seed default data
	if err := store.seedData(); err != nil {
		log.Printf("Warning: failed to seed data: %v", err)
	}

	return store, nil
}

// generateRandomPassword generates a random password of specified length
func generateRandomPassword(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	// Use base64 URL encoding to get a safe, printable password
	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

func (s *Store) seedData() error {
	// Create default tenant if none exists
	var tenantCount int64
	s.db.Model(&models.Tenant{}).Count(&tenantCount)
	tenantID := uuid.New().String()
	if tenantCount == 0 {
		tenant := &models.Tenant{
			ID:       tenantID,
			Slug:     "default",
			Name:     "Default Tenant",
			Hostname: "localhost",
			IsActive: true,
		}
		if err := s.db.Create(tenant).Error; err != nil {
			return err
		}
		log.Printf("Created default tenant: %s (default)", tenantID)
	} else {
		var tenant models.Tenant
		if err := s.db.Where("slug = ?", "default").First(&tenant).Error; err == nil {
			tenantID = tenant.ID
		}
	}

	// Create default admin user if none exists
	var userCount int64
	s.db.Model(&models.User{}).Count(&userCount)
	if userCount == 0 {
		password, err := generateRandomPassword(16)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := &models.User{
			ID:           uuid.New().String(),
			TenantID:     tenantID,
			Email:        "admin@localhost",
			PasswordHash: string(hash),
			FullName:     "Administrator",
			IsActive:     true,
		}
		if err := s.db.Create(user).Error; err != nil {
			return err
		}
		log.Printf("Created default user: admin@localhost / %s", password)
	}

	// Create the first-party SPA client if none exists. It is registered in
	// the global realm so it resolves from any tenant context, and carries no
	// secret, which forces PKCE on the authorization code grant.
	var clientCount int64
	s.db.Model(&models.Client{}).Count(&clientCount)
	if clientCount == 0 {
		client := &models.Client{
			TenantID:     tenantID,
			ClientID:     "app-spa",
			Name:         "Application SPA",
			SecretHash:   "",
			RedirectURIs: models.StringArray{"http://localhost:3000/callback"},
			Scopes:       "openid profile offline_access",
			GrantTypes:   "authorization_code refresh_token",
			FirstParty:   true,
			GlobalRealm:  true,
			IsActive:     true,
		}
		if err := s.db.Create(client).Error; err != nil {
			return err
		}
		log.Printf("Created default OAuth client: app-spa (first party, public)")
	}

	return nil
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB returns the underlying GORM database connection (for transactions)
func (s *Store) DB() *gorm.DB {
	return s.db
}
