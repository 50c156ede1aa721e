package models

import "time"

// Signing key lifecycle states. Exactly one key is active at any time; retired
// keys remain published until every token they signed has expired.
const (
	KeyStatusActive  = "active"
	KeyStatusPending = "pending"
	KeyStatusRetired = "retired"
)

// SigningKey stores the public half and lifecycle state of an asymmetric JWT
// signing key. Private material is never persisted here; PrivateKeyRef is an
// opaque handle into a PrivateKeyStore (in-process map by default, a KMS in
// production).
type SigningKey struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Kid       string `gorm:"uniqueIndex;size:36;not null"`
	Algorithm string `gorm:"not null;default:'RS256'"`

	PublicKeyPEM  string `gorm:"type:text;not null"`
	PrivateKeyRef string `gorm:"not null"`

	Status    string `gorm:"not null;index;default:'pending'"`
	NotBefore time.Time
	NotAfter  *time.Time // Set when the key is retired
	CreatedAt time.Time
}

func (k *SigningKey) IsActive() bool {
	return k.Status == KeyStatusActive
}

func (k *SigningKey) IsRetired() bool {
	return k.Status == KeyStatusRetired
}

func (SigningKey) TableName() string {
	return "signing_keys"
}
