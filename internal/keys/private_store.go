package keys

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strings"
	"sync"
)

// PrivateKeyStore holds private key material. The database only ever sees the
// opaque ref returned by Store, so key material can live in an HSM or cloud
// KMS behind the same interface.
type PrivateKeyStore interface {
	// Store persists the private key under kid and returns an opaque ref.
	Store(ctx context.Context, kid string, key *rsa.PrivateKey) (string, error)

	// Load resolves a ref back to the private key.
	// Returns ErrKeyNotFound if the ref resolves to nothing.
	Load(ctx context.Context, ref string) (*rsa.PrivateKey, error)

	// Delete removes the key behind the ref. Deleting an absent ref is a no-op.
	Delete(ctx context.Context, ref string) error
}

const memoryRefPrefix = "memory:"

// Compile-time interface check.
var _ PrivateKeyStore = (*MemoryPrivateKeyStore)(nil)

// MemoryPrivateKeyStore keeps private keys in process memory. Refs take the
// form "memory:<kid>". Suitable for single-instance deployments; keys do not
// survive a restart, which forces a rotation on startup.
type MemoryPrivateKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*rsa.PrivateKey
}

// NewMemoryPrivateKeyStore creates an empty in-memory key store.
func NewMemoryPrivateKeyStore() *MemoryPrivateKeyStore {
	return &MemoryPrivateKeyStore{
		keys: make(map[string]*rsa.PrivateKey),
	}
}

// Store saves the key under kid and returns a "memory:<kid>" ref.
func (s *MemoryPrivateKeyStore) Store(ctx context.Context, kid string, key *rsa.PrivateKey) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[kid] = key
	return memoryRefPrefix + kid, nil
}

// Load resolves a "memory:<kid>" ref to the stored key.
func (s *MemoryPrivateKeyStore) Load(ctx context.Context, ref string) (*rsa.PrivateKey, error) {
	kid, ok := strings.CutPrefix(ref, memoryRefPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported ref %q", ErrKeyNotFound, ref)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key, exists := s.keys[kid]
	if !exists {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// Delete removes the key behind the ref.
func (s *MemoryPrivateKeyStore) Delete(ctx context.Context, ref string) error {
	kid, ok := strings.CutPrefix(ref, memoryRefPrefix)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, kid)
	return nil
}
