package store

import (
	"github.com/tenauth/tenauth/internal/models"
)

// RBAC operations

func (s *Store) CreateRole(role *models.Role) error {
	return s.db.Create(role).Error
}

func (s *Store) CreatePermission(perm *models.Permission) error {
	return s.db.Create(perm).Error
}

func (s *Store) AssignRole(userID string, roleID int64) error {
	return s.db.Create(&models.UserRole{UserID: userID, RoleID: roleID}).Error
}

func (s *Store) GrantPermission(roleID, permissionID int64) error {
	return s.db.Create(&models.RolePermission{RoleID: roleID, PermissionID: permissionID}).Error
}

// GetRoleNamesForUser returns the names of every role assigned to the user.
func (s *Store) GetRoleNamesForUser(userID string) ([]string, error) {
	var names []string
	err := s.db.Model(&models.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Pluck("roles.name", &names).Error
	return names, err
}

// GetPermissionNamesForUser returns the distinct permission names reachable
// through the user's roles.
func (s *Store) GetPermissionNamesForUser(userID string) ([]string, error) {
	var names []string
	err := s.db.Model(&models.Permission{}).
		Distinct("permissions.name").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("permissions.name", &names).Error
	return names, err
}
