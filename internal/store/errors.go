package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrCodeAlreadyConsumed is returned by ConsumeAuthorizationCode when the
	// code was already redeemed by a concurrent request (0 rows updated).
	ErrCodeAlreadyConsumed = errors.New("authorization code already consumed")

	// ErrTokenAlreadyRevoked is returned by the conditional refresh token
	// revocation when another request already revoked the token.
	ErrTokenAlreadyRevoked = errors.New("refresh token already revoked")

	// ErrNoActiveKey is returned when no signing key row is currently active.
	ErrNoActiveKey = errors.New("no active signing key")
)
