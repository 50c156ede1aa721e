package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID       string `gorm:"primaryKey;size:36"`
	TenantID string `gorm:"not null;uniqueIndex:idx_tenant_email;size:36"`
	Email    string `gorm:"not null;uniqueIndex:idx_tenant_email"`

	PasswordHash string `gorm:"not null"`
	FullName     string
	IsActive     bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidatePassword checks the plaintext against the stored bcrypt hash.
func (u *User) ValidatePassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (User) TableName() string {
	return "users"
}
