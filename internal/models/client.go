package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Client is an OAuth client registration. Registrations are tenant-scoped;
// a client marked GlobalRealm is resolvable from any tenant context.
type Client struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	TenantID string `gorm:"not null;uniqueIndex:idx_tenant_client;size:36"`
	ClientID string `gorm:"not null;uniqueIndex:idx_tenant_client"`

	Name       string `gorm:"not null"`
	SecretHash string `gorm:"default:''"` // bcrypt hash; empty for public clients

	RedirectURIs StringArray `gorm:"type:json"`
	Scopes       string      `gorm:"not null;default:''"` // space separated
	GrantTypes   string      `gorm:"not null;default:'authorization_code'"`

	FirstParty  bool `gorm:"not null;default:false"`
	GlobalRealm bool `gorm:"not null;default:false"`
	IsActive    bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPublic reports whether the client has no registered secret. Public
// clients must use PKCE on the authorization code grant.
func (c *Client) IsPublic() bool {
	return c.SecretHash == ""
}

// ValidateSecret validates the given secret against the stored bcrypt hash.
func (c *Client) ValidateSecret(secret string) bool {
	if c.IsPublic() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) == nil
}

// AllowsGrant reports whether the registration permits the grant type.
func (c *Client) AllowsGrant(grantType string) bool {
	for _, g := range strings.Fields(c.GrantTypes) {
		if g == grantType {
			return true
		}
	}
	return false
}

// AllowsRedirect reports whether uri exactly matches a registered redirect URI.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// ScopeList returns the registered scopes as a slice.
func (c *Client) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

func (Client) TableName() string {
	return "clients"
}

// StringArray is a custom type for []string that can be stored as JSON in database
type StringArray []string

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSON value")
	}
	return json.Unmarshal(bytes, s)
}

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}
