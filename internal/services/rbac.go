package services

import (
	"context"
	"time"

	"github.com/tenauth/tenauth/internal/cache"
	"github.com/tenauth/tenauth/internal/store"
)

// RBACService answers role and permission lookups for token claims. Results
// are cached briefly so every token grant does not hit the join tables;
// revoked permissions linger for at most the cache TTL.
type RBACService struct {
	store *store.Store
	cache cache.Cache[[]string]
	ttl   time.Duration
}

func NewRBACService(s *store.Store, c cache.Cache[[]string], ttl time.Duration) *RBACService {
	if c == nil {
		c = cache.NewMemoryCache[[]string]()
	}
	return &RBACService{
		store: s,
		cache: c,
		ttl:   ttl,
	}
}

// RolesForUser returns the user's role names.
func (s *RBACService) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	return cache.GetWithFetch(ctx, s.cache, "roles:"+userID, s.ttl,
		func(ctx context.Context, _ string) ([]string, error) {
			return s.store.GetRoleNamesForUser(userID)
		})
}

// PermissionsForUser returns the distinct permissions granted through the
// user's roles.
func (s *RBACService) PermissionsForUser(ctx context.Context, userID string) ([]string, error) {
	return cache.GetWithFetch(ctx, s.cache, "permissions:"+userID, s.ttl,
		func(ctx context.Context, _ string) ([]string, error) {
			return s.store.GetPermissionNamesForUser(userID)
		})
}

// Invalidate drops cached entries for the user, forcing the next lookup to
// hit the database.
func (s *RBACService) Invalidate(ctx context.Context, userID string) {
	_ = s.cache.Delete(ctx, "roles:"+userID)
	_ = s.cache.Delete(ctx, "permissions:"+userID)
}
