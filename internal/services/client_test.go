package services

import (
	"testing"

	"github.com/tenauth/tenauth/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveClient_GlobalRealmFallback(t *testing.T) {
	s := setupTestStore(t)
	svc := NewClientService(s)
	home := createTestTenant(t, s)
	other := createTestTenant(t, s)

	global := &models.Client{
		TenantID:     home.ID,
		ClientID:     "app-" + uuid.New().String()[:8],
		Name:         "Global SPA",
		RedirectURIs: models.StringArray{"https://app.example.com/callback"},
		Scopes:       "openid profile",
		GrantTypes:   "authorization_code refresh_token",
		GlobalRealm:  true,
		IsActive:     true,
	}
	require.NoError(t, s.CreateClient(global))

	// Resolvable from the registering tenant
	resolved, err := svc.ResolveClient(home.ID, global.ClientID)
	require.NoError(t, err)
	assert.Equal(t, global.ClientID, resolved.ClientID)

	// And from any other tenant via the global realm
	resolved, err = svc.ResolveClient(other.ID, global.ClientID)
	require.NoError(t, err)
	assert.Equal(t, global.ClientID, resolved.ClientID)

	// Even with no tenant context at all
	resolved, err = svc.ResolveClient("", global.ClientID)
	require.NoError(t, err)
	assert.Equal(t, global.ClientID, resolved.ClientID)
}

func TestResolveClient_TenantScoped(t *testing.T) {
	s := setupTestStore(t)
	svc := NewClientService(s)
	home := createTestTenant(t, s)
	other := createTestTenant(t, s)
	client := createPublicClient(t, s, home.ID)

	_, err := svc.ResolveClient(home.ID, client.ClientID)
	require.NoError(t, err)

	// Not global-realm, so invisible from other tenants
	_, err = svc.ResolveClient(other.ID, client.ClientID)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestAuthenticate(t *testing.T) {
	s := setupTestStore(t)
	svc := NewClientService(s)
	tenant := createTestTenant(t, s)
	public := createPublicClient(t, s, tenant.ID)
	confidential := createConfidentialClient(t, s, tenant.ID, "topsecret")

	// Public clients authenticate by identifier alone
	_, err := svc.Authenticate(tenant.ID, public.ClientID, "")
	assert.NoError(t, err)

	// Confidential clients need the right secret
	_, err = svc.Authenticate(tenant.ID, confidential.ClientID, "topsecret")
	assert.NoError(t, err)

	_, err = svc.Authenticate(tenant.ID, confidential.ClientID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidClientSecret)

	_, err = svc.Authenticate(tenant.ID, confidential.ClientID, "")
	assert.ErrorIs(t, err, ErrInvalidClientSecret)

	_, err = svc.Authenticate(tenant.ID, "no-such-client", "")
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestNarrowScopes(t *testing.T) {
	s := setupTestStore(t)
	svc := NewClientService(s)
	client := &models.Client{Scopes: "openid profile offline_access"}

	assert.Equal(t, "openid profile offline_access", svc.NarrowScopes(client, ""))
	assert.Equal(t, "openid profile", svc.NarrowScopes(client, "openid profile"))
	assert.Equal(t, "openid", svc.NarrowScopes(client, "openid admin:all"))
	assert.Equal(t, "", svc.NarrowScopes(client, "admin:all"))
}
