package services

import (
	"context"
	"testing"
	"time"

	"github.com/tenauth/tenauth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueSession(t *testing.T) {
	s := setupTestStore(t)
	svc := NewSessionService(s, testConfig(), nil, nil)
	tenant := createTestTenant(t, s)
	user := createTestUser(t, s, tenant.ID)

	session, raw, err := svc.IssueSession(context.Background(), IssueSessionInput{
		TenantID: tenant.ID,
		UserID:   user.ID,
		Device:   "Mozilla/5.0",
		IP:       "203.0.113.9",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, raw)

	// The raw token is live and resolves to the session
	token, err := svc.LookupByRawToken(tenant.ID, raw)
	require.NoError(t, err)
	assert.Equal(t, session.ID, token.SessionID)
	assert.True(t, token.IsLive())
	assert.Empty(t, token.RotatedFromID)
}

func TestRotateRefreshToken(t *testing.T) {
	s := setupTestStore(t)
	svc := NewSessionService(s, testConfig(), nil, nil)
	tenant := createTestTenant(t, s)
	user := createTestUser(t, s, tenant.ID)

	session, first, err := svc.IssueSession(context.Background(), IssueSessionInput{
		TenantID: tenant.ID,
		UserID:   user.ID,
	})
	require.NoError(t, err)

	rotated, second, err := svc.RotateRefreshToken(context.Background(), tenant.ID, first)
	require.NoError(t, err)
	assert.Equal(t, session.ID, rotated.ID)
	assert.NotEqual(t, first, second)

	// The old token is revoked, the new one is live and chained
	oldToken, err := svc.LookupByRawToken(tenant.ID, first)
	require.NoError(t, err)
	assert.True(t, oldToken.IsRevoked())

	newToken, err := svc.LookupByRawToken(tenant.ID, second)
	require.NoError(t, err)
	assert.True(t, newToken.IsLive())
	assert.Equal(t, oldToken.ID, newToken.RotatedFromID)
}

func TestRotateRefreshToken_ReuseKillsChain(t *testing.T) {
	s := setupTestStore(t)
	svc := NewSessionService(s, testConfig(), nil, nil)
	tenant := createTestTenant(t, s)
	user := createTestUser(t, s, tenant.ID)

	_, first, err := svc.IssueSession(context.Background(), IssueSessionInput{
		TenantID: tenant.ID,
		UserID:   user.ID,
	})
	require.NoError(t, err)

	_, second, err := svc.RotateRefreshToken(context.Background(), tenant.ID, first)
	require.NoError(t, err)

	// Replaying the first (already rotated) token is theft
	_, _, err = svc.RotateRefreshToken(context.Background(), tenant.ID, first)
	assert.ErrorIs(t, err, ErrRefreshTokenReused)

	// Fail closed: the legitimate successor is dead too
	_, _, err = svc.RotateRefreshToken(context.Background(), tenant.ID, second)
	assert.ErrorIs(t, err, ErrRefreshTokenReused)
}

func TestRotateRefreshToken_Expired(t *testing.T) {
	s := setupTestStore(t)
	cfg := testConfig()
	cfg.RefreshTokenExpiration = -1 * time.Hour // Issue already-expired tokens
	svc := NewSessionService(s, cfg, nil, nil)
	tenant := createTestTenant(t, s)
	user := createTestUser(t, s, tenant.ID)

	_, raw, err := svc.IssueSession(context.Background(), IssueSessionInput{
		TenantID: tenant.ID,
		UserID:   user.ID,
	})
	require.NoError(t, err)

	_, _, err = svc.RotateRefreshToken(context.Background(), tenant.ID, raw)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)

	// Expiry is not reuse; the token stays merely expired, not revoked
	token, lookupErr := svc.LookupByRawToken(tenant.ID, raw)
	require.NoError(t, lookupErr)
	assert.False(t, token.IsRevoked())
}

func TestRotateRefreshToken_Unknown(t *testing.T) {
	s := setupTestStore(t)
	svc := NewSessionService(s, testConfig(), nil, nil)
	tenant := createTestTenant(t, s)

	_, _, err := svc.RotateRefreshToken(context.Background(), tenant.ID, "never-issued")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotateRefreshToken_TenantScoped(t *testing.T) {
	s := setupTestStore(t)
	svc := NewSessionService(s, testConfig(), nil, nil)
	tenantA := createTestTenant(t, s)
	tenantB := createTestTenant(t, s)
	user := createTestUser(t, s, tenantA.ID)

	_, raw, err := svc.IssueSession(context.Background(), IssueSessionInput{
		TenantID: tenantA.ID,
		UserID:   user.ID,
	})
	require.NoError(t, err)

	// A token issued in one tenant is invisible from another
	_, _, err = svc.RotateRefreshToken(context.Background(), tenantB.ID, raw)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeSession(t *testing.T) {
	s := setupTestStore(t)
	svc := NewSessionService(s, testConfig(), nil, nil)
	tenant := createTestTenant(t, s)
	user := createTestUser(t, s, tenant.ID)

	session, raw, err := svc.IssueSession(context.Background(), IssueSessionInput{
		TenantID: tenant.ID,
		UserID:   user.ID,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeSession(context.Background(), session.ID, "logout"))

	token, err := svc.LookupByRawToken(tenant.ID, raw)
	require.NoError(t, err)
	assert.True(t, token.IsRevoked())

	// Revoking again is a no-op
	assert.NoError(t, svc.RevokeSession(context.Background(), session.ID, "logout"))
}

func TestRevokeByRawToken_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	svc := NewSessionService(s, testConfig(), nil, nil)
	tenant := createTestTenant(t, s)
	user := createTestUser(t, s, tenant.ID)

	_, raw, err := svc.IssueSession(context.Background(), IssueSessionInput{
		TenantID: tenant.ID,
		UserID:   user.ID,
	})
	require.NoError(t, err)

	assert.NoError(t, svc.RevokeByRawToken(context.Background(), tenant.ID, raw))
	// Unknown and already-revoked tokens both succeed silently
	assert.NoError(t, svc.RevokeByRawToken(context.Background(), tenant.ID, raw))
	assert.NoError(t, svc.RevokeByRawToken(context.Background(), tenant.ID, "never-issued"))
}

func TestReuseWritesCriticalAuditEvent(t *testing.T) {
	s := setupTestStore(t)
	audit := NewAuditService(s, true, 10)
	t.Cleanup(func() { _ = audit.Shutdown(context.Background()) })

	svc := NewSessionService(s, testConfig(), audit, nil)
	tenant := createTestTenant(t, s)
	user := createTestUser(t, s, tenant.ID)

	_, first, err := svc.IssueSession(context.Background(), IssueSessionInput{
		TenantID: tenant.ID,
		UserID:   user.ID,
	})
	require.NoError(t, err)
	_, _, err = svc.RotateRefreshToken(context.Background(), tenant.ID, first)
	require.NoError(t, err)

	_, _, err = svc.RotateRefreshToken(context.Background(), tenant.ID, first)
	require.ErrorIs(t, err, ErrRefreshTokenReused)

	// Reuse detection logs synchronously, so the event is already visible
	events, _, err := audit.GetEvents(
		testAuditFilter(models.EventRefreshTokenReuseDetected, tenant.ID), 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.SeverityCritical, events[0].Severity)
}
