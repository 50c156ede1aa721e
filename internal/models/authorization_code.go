package models

import "time"

// PKCE code challenge methods (RFC 7636).
const (
	CodeChallengeS256  = "S256"
	CodeChallengePlain = "plain"
)

// AuthorizationCode stores OAuth 2.0 authorization codes (RFC 6749 §4.1).
// Codes are short-lived (default 5 minutes) and single-use; only the SHA-256
// hash of the raw code is ever persisted.
type AuthorizationCode struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	TenantID string `gorm:"not null;index;size:36"`
	UserID   string `gorm:"not null;index;size:36"`
	ClientID string `gorm:"not null;index"`

	CodeHash string `gorm:"uniqueIndex;not null"` // SHA256(rawCode)

	RedirectURI string `gorm:"not null"`
	Scope       string `gorm:"not null;default:''"` // space-separated scopes

	// PKCE binding (RFC 7636); always present, enforced at issuance
	CodeChallenge       string `gorm:"not null"`
	CodeChallengeMethod string `gorm:"not null;default:'S256'"` // "S256" or "plain"

	ExpiresAt  time.Time
	ConsumedAt *time.Time // Set exactly once at the token endpoint; prevents replay
	CreatedAt  time.Time
}

func (a *AuthorizationCode) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}

func (a *AuthorizationCode) IsConsumed() bool {
	return a.ConsumedAt != nil
}

func (AuthorizationCode) TableName() string {
	return "authorization_codes"
}
