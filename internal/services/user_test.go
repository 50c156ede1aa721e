package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateUser(t *testing.T) {
	s := setupTestStore(t)
	svc := NewUserService(s, nil, nil)
	tenant := createTestTenant(t, s)
	user := createTestUser(t, s, tenant.ID)

	got, err := svc.Authenticate(context.Background(), tenant.ID, user.Email, "hunter2-correct")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), tenant.ID, user.Email, "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), tenant.ID, "nobody@example.com", "hunter2-correct")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUser_TenantScoped(t *testing.T) {
	s := setupTestStore(t)
	svc := NewUserService(s, nil, nil)
	tenantA := createTestTenant(t, s)
	tenantB := createTestTenant(t, s)
	user := createTestUser(t, s, tenantA.ID)

	// The same email does not log in under a different tenant
	_, err := svc.Authenticate(context.Background(), tenantB.ID, user.Email, "hunter2-correct")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUser_Inactive(t *testing.T) {
	s := setupTestStore(t)
	svc := NewUserService(s, nil, nil)
	tenant := createTestTenant(t, s)
	user := createTestUser(t, s, tenant.ID)

	user.IsActive = false
	require.NoError(t, s.UpdateUser(user))

	_, err := svc.Authenticate(context.Background(), tenant.ID, user.Email, "hunter2-correct")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
