package models

import "time"

// Session represents one logical login (browser or device). It anchors a chain
// of rotating refresh tokens and is destroyed by revoking every token in that
// chain; the row itself is retained for audit purposes.
type Session struct {
	ID       string `gorm:"primaryKey;size:36"`
	TenantID string `gorm:"not null;index;size:36"`
	UserID   string `gorm:"not null;index;size:36"`

	Device string `gorm:"default:''"`
	IP     string `gorm:"default:''"`

	LastSeenAt time.Time
	CreatedAt  time.Time
}

func (Session) TableName() string {
	return "sessions"
}

// RefreshToken is one link in a session's rotation chain. Only the SHA-256
// hash of the raw token is stored. Exactly one token per chain is live (not
// revoked, not expired); RotatedFromID points at the predecessor link.
type RefreshToken struct {
	ID        string `gorm:"primaryKey;size:36"`
	TenantID  string `gorm:"not null;index;size:36"`
	SessionID string `gorm:"not null;index;size:36"`

	TokenHash string `gorm:"uniqueIndex;not null;size:64"`

	ExpiresAt     time.Time
	RotatedFromID string     `gorm:"index;default:''"` // Predecessor in the chain; empty for the first link
	RevokedAt     *time.Time `gorm:"index"`
	CreatedAt     time.Time
}

func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsLive returns true when the token is still redeemable.
func (t *RefreshToken) IsLive() bool {
	return !t.IsRevoked() && !t.IsExpired()
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
