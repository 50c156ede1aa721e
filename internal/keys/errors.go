package keys

import "errors"

var (
	// ErrUnknownKey is returned when a token's kid header names no known key
	ErrUnknownKey = errors.New("unknown signing key")

	// ErrInvalidSignature is returned when a token fails signature verification
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpiredToken is returned when a token's exp claim has passed
	ErrExpiredToken = errors.New("token has expired")

	// ErrInvalidToken is returned for tokens that are malformed or carry
	// an unexpected signing method
	ErrInvalidToken = errors.New("invalid token")

	// ErrKeyNotFound is returned by a PrivateKeyStore when the ref resolves
	// to no stored key
	ErrKeyNotFound = errors.New("private key not found")
)
