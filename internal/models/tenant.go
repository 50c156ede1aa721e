package models

import "time"

// Tenant is an isolated realm. Hostname maps an incoming Host header to the
// tenant when no X-Tenant-ID header is present.
type Tenant struct {
	ID       string `gorm:"primaryKey;size:36"`
	Slug     string `gorm:"uniqueIndex;not null"`
	Name     string `gorm:"not null"`
	Hostname string `gorm:"uniqueIndex"`

	IsActive  bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Tenant) TableName() string {
	return "tenants"
}
