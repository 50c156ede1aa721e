package models

import "time"

// Role is a tenant-scoped named bundle of permissions.
type Role struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	TenantID string `gorm:"not null;uniqueIndex:idx_tenant_role;size:36"`
	Name     string `gorm:"not null;uniqueIndex:idx_tenant_role"`

	Description string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (Role) TableName() string {
	return "roles"
}

// Permission names an allowed action, e.g. "projects:read".
type Permission struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"uniqueIndex;not null"`

	Description string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (Permission) TableName() string {
	return "permissions"
}

type UserRole struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"not null;uniqueIndex:idx_user_role;size:36"`
	RoleID int64  `gorm:"not null;uniqueIndex:idx_user_role"`

	CreatedAt time.Time
}

func (UserRole) TableName() string {
	return "user_roles"
}

type RolePermission struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	RoleID       int64 `gorm:"not null;uniqueIndex:idx_role_permission"`
	PermissionID int64 `gorm:"not null;uniqueIndex:idx_role_permission"`

	CreatedAt time.Time
}

func (RolePermission) TableName() string {
	return "role_permissions"
}
