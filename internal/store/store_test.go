package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tenauth/tenauth/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, "sqlite", nil)
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	// Skip if running short tests or Docker is not available
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testBasicOperations(t, "postgres", pgContainer)
}

// createFreshStore creates a new store instance for test isolation.
// For SQLite, each call creates a fresh :memory: database.
// For PostgreSQL, each call creates a uniquely-named database in the container.
func createFreshStore(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) *Store {
	t.Helper()

	var dsn string
	switch driver {
	case "sqlite":
		dsn = ":memory:"
	case "postgres":
		dbName := "test_" + uuid.New().String()[:8]
		ctx := context.Background()

		createDBCmd := fmt.Sprintf("CREATE DATABASE %s", dbName)
		_, _, err := pgContainer.Exec(
			ctx,
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", createDBCmd},
		)
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf(
			"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
			host, port.Port(), dbName,
		)

		t.Cleanup(func() {
			dropDBCmd := fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName)
			_, _, _ = pgContainer.Exec(
				context.Background(),
				[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", dropDBCmd},
			)
		})
	default:
		t.Fatalf("unsupported driver: %s", driver)
	}

	s, err := New(driver, dsn)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func newTenant(t *testing.T, s *Store) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		ID:       uuid.New().String(),
		Slug:     "t-" + uuid.New().String()[:8],
		Name:     "Tenant",
		Hostname: "t-" + uuid.New().String()[:8] + ".example",
		IsActive: true,
	}
	require.NoError(t, s.CreateTenant(tenant))
	return tenant
}

// testBasicOperations runs the store-level behavior suite on a fresh store
// per subtest.
func testBasicOperations(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) {
	t.Run("SeedDataCreatesDefaults", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		tenant, err := s.GetTenantByHostname("localhost")
		require.NoError(t, err)
		assert.Equal(t, "default", tenant.Slug)

		client, err := s.GetClient(tenant.ID, "app-spa")
		require.NoError(t, err)
		assert.True(t, client.FirstParty)
		assert.True(t, client.IsPublic())
	})

	t.Run("TenantScopedClientLookup", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		tenant := newTenant(t, s)
		other := newTenant(t, s)

		client := &models.Client{
			TenantID:     tenant.ID,
			ClientID:     "web",
			Name:         "Web",
			RedirectURIs: models.StringArray{"https://web.example/cb"},
			Scopes:       "openid",
			GrantTypes:   "authorization_code",
			IsActive:     true,
		}
		require.NoError(t, s.CreateClient(client))

		got, err := s.GetClient(tenant.ID, "web")
		require.NoError(t, err)
		assert.Equal(t, client.ID, got.ID)

		_, err = s.GetClient(other.ID, "web")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("GlobalClientLookup", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		tenant := newTenant(t, s)

		client := &models.Client{
			TenantID:     tenant.ID,
			ClientID:     "cli-tool",
			Name:         "CLI",
			RedirectURIs: models.StringArray{"http://127.0.0.1/cb"},
			Scopes:       "openid",
			GrantTypes:   "authorization_code",
			GlobalRealm:  true,
			IsActive:     true,
		}
		require.NoError(t, s.CreateClient(client))

		got, err := s.GetGlobalClient("cli-tool")
		require.NoError(t, err)
		assert.Equal(t, client.ID, got.ID)
	})

	t.Run("UserLookupIsTenantScoped", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		tenant := newTenant(t, s)
		other := newTenant(t, s)

		user := &models.User{
			ID:           uuid.New().String(),
			TenantID:     tenant.ID,
			Email:        "jo@example.com",
			PasswordHash: "x",
			IsActive:     true,
		}
		require.NoError(t, s.CreateUser(user))

		got, err := s.GetUserByEmail(tenant.ID, "jo@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		_, err = s.GetUserByEmail(other.ID, "jo@example.com")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("SigningKeyActivateAndRetire", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		first := &models.SigningKey{
			Kid:           uuid.New().String(),
			Algorithm:     "RS256",
			PublicKeyPEM:  "pem-one",
			PrivateKeyRef: "memory:one",
			Status:        models.KeyStatusPending,
			NotBefore:     time.Now().Add(-time.Minute),
		}
		require.NoError(t, s.CreateSigningKey(first))
		require.NoError(t, s.ActivateSigningKey(first.Kid, first.NotBefore))

		active, err := s.GetActiveSigningKey()
		require.NoError(t, err)
		assert.Equal(t, first.Kid, active.Kid)

		second := &models.SigningKey{
			Kid:           uuid.New().String(),
			Algorithm:     "RS256",
			PublicKeyPEM:  "pem-two",
			PrivateKeyRef: "memory:two",
			Status:        models.KeyStatusPending,
			NotBefore:     time.Now(),
		}
		require.NoError(t, s.CreateSigningKey(second))
		require.NoError(t, s.ActivateSigningKey(second.Kid, second.NotBefore))
		require.NoError(t, s.RetireSigningKeysExcept(second.Kid, time.Now()))

		active, err = s.GetActiveSigningKey()
		require.NoError(t, err)
		assert.Equal(t, second.Kid, active.Kid)

		retired, err := s.GetSigningKeyByKid(first.Kid)
		require.NoError(t, err)
		assert.Equal(t, models.KeyStatusRetired, retired.Status)
		assert.NotNil(t, retired.NotAfter)

		// Both keys remain publishable for verification
		publishable, err := s.ListPublishableKeys()
		require.NoError(t, err)
		assert.Len(t, publishable, 2)
	})

	t.Run("AuthorizationCodeSingleConsumption", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		tenant := newTenant(t, s)

		code := &models.AuthorizationCode{
			TenantID:    tenant.ID,
			UserID:      uuid.New().String(),
			ClientID:    "web",
			CodeHash:    uuid.New().String(),
			RedirectURI: "https://web.example/cb",
			Scope:       "openid",
			ExpiresAt:   time.Now().Add(time.Minute),
		}
		require.NoError(t, s.CreateAuthorizationCode(code))

		got, err := s.GetAuthorizationCodeByHash(tenant.ID, "web", code.CodeHash)
		require.NoError(t, err)

		require.NoError(t, s.ConsumeAuthorizationCode(got.ID))
		assert.ErrorIs(t, s.ConsumeAuthorizationCode(got.ID), ErrCodeAlreadyConsumed)
	})

	t.Run("RefreshTokenRotation", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		tenant := newTenant(t, s)

		session := &models.Session{
			ID:         uuid.New().String(),
			TenantID:   tenant.ID,
			UserID:     uuid.New().String(),
			LastSeenAt: time.Now(),
		}
		require.NoError(t, s.CreateSession(session))

		first := &models.RefreshToken{
			ID:        uuid.New().String(),
			TenantID:  tenant.ID,
			SessionID: session.ID,
			TokenHash: uuid.New().String(),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		require.NoError(t, s.CreateRefreshToken(first))

		next := &models.RefreshToken{
			ID:            uuid.New().String(),
			TenantID:      tenant.ID,
			SessionID:     session.ID,
			TokenHash:     uuid.New().String(),
			ExpiresAt:     time.Now().Add(time.Hour),
			RotatedFromID: first.ID,
		}
		require.NoError(t, s.RotateRefreshToken(first.ID, next))

		// The predecessor is revoked, the successor is live
		old, err := s.GetRefreshTokenByHash(tenant.ID, first.TokenHash)
		require.NoError(t, err)
		assert.True(t, old.IsRevoked())

		fresh, err := s.GetRefreshTokenByHash(tenant.ID, next.TokenHash)
		require.NoError(t, err)
		assert.True(t, fresh.IsLive())

		// Rotating the same predecessor again loses the conditional update
		again := &models.RefreshToken{
			ID:            uuid.New().String(),
			TenantID:      tenant.ID,
			SessionID:     session.ID,
			TokenHash:     uuid.New().String(),
			ExpiresAt:     time.Now().Add(time.Hour),
			RotatedFromID: first.ID,
		}
		assert.ErrorIs(t, s.RotateRefreshToken(first.ID, again), ErrTokenAlreadyRevoked)
	})

	t.Run("RevokeSessionTokens", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		tenant := newTenant(t, s)

		session := &models.Session{
			ID:         uuid.New().String(),
			TenantID:   tenant.ID,
			UserID:     uuid.New().String(),
			LastSeenAt: time.Now(),
		}
		require.NoError(t, s.CreateSession(session))

		for i := 0; i < 3; i++ {
			token := &models.RefreshToken{
				ID:        uuid.New().String(),
				TenantID:  tenant.ID,
				SessionID: session.ID,
				TokenHash: uuid.New().String(),
				ExpiresAt: time.Now().Add(time.Hour),
			}
			require.NoError(t, s.CreateRefreshToken(token))
		}

		require.NoError(t, s.RevokeSessionTokens(session.ID))

		var live int64
		err := s.DB().Model(&models.RefreshToken{}).
			Where("session_id = ? AND revoked_at IS NULL", session.ID).
			Count(&live).Error
		require.NoError(t, err)
		assert.Zero(t, live)
	})

	t.Run("ListSessionsByUser", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		tenant := newTenant(t, s)
		other := newTenant(t, s)
		userID := uuid.New().String()

		for _, tid := range []string{tenant.ID, tenant.ID, other.ID} {
			session := &models.Session{
				ID:         uuid.New().String(),
				TenantID:   tid,
				UserID:     userID,
				LastSeenAt: time.Now(),
			}
			require.NoError(t, s.CreateSession(session))
		}

		sessions, err := s.ListSessionsByUser(tenant.ID, userID)
		require.NoError(t, err)
		assert.Len(t, sessions, 2)

		sessions, err = s.ListSessionsByUser(other.ID, userID)
		require.NoError(t, err)
		assert.Len(t, sessions, 1)
	})

	t.Run("AuditEventBatchAndFilters", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		tenant := newTenant(t, s)

		events := make([]*models.AuditEvent, 0, 5)
		for i := 0; i < 5; i++ {
			eventType := models.EventLoginSuccess
			if i%2 == 1 {
				eventType = models.EventLoginFailure
			}
			events = append(events, &models.AuditEvent{
				EventType: eventType,
				Severity:  models.SeverityInfo,
				TenantID:  tenant.ID,
				Success:   i%2 == 0,
			})
		}
		require.NoError(t, s.CreateAuditEventBatch(events))

		got, total, err := s.ListAuditEvents(AuditEventFilters{
			TenantID:  tenant.ID,
			EventType: models.EventLoginFailure,
		}, 10, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, got, 2)
	})
}
