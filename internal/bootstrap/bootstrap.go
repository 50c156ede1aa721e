package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tenauth/tenauth/internal/cache"
	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/handlers"
	"github.com/tenauth/tenauth/internal/keys"
	"github.com/tenauth/tenauth/internal/metrics"
	"github.com/tenauth/tenauth/internal/services"
	"github.com/tenauth/tenauth/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// App holds the wired application graph. Handlers at the top, the store at
// the bottom, services in between.
type App struct {
	Config  *config.Config
	Store   *store.Store
	Redis   *redis.Client
	Metrics metrics.Recorder
	Keys    *keys.Manager

	Audit          *services.AuditService
	Users          *services.UserService
	Clients        *services.ClientService
	Sessions       *services.SessionService
	OpSessions     *services.OpSessionService
	Authorizations *services.AuthorizationService
	RBAC           *services.RBACService
	Tokens         *services.TokenService

	Router *gin.Engine
}

// New wires the full application from configuration. The signing key set is
// ensured on startup so the first request never races key generation.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = newRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	recorder := metrics.Init(cfg.MetricsEnabled)

	// The in-memory private key store stands in for a KMS; the Manager only
	// sees the PrivateKeyStore interface.
	km := keys.NewManager(st, keys.NewMemoryPrivateKeyStore(), cfg.BaseURL, recorder)
	if _, err := km.EnsureActiveKey(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure signing key: %w", err)
	}

	audit := services.NewAuditService(st, cfg.AuditEnabled, cfg.AuditBufferSize)

	rbacCache, err := newRBACCache(ctx, cfg, redisClient)
	if err != nil {
		return nil, err
	}

	users := services.NewUserService(st, audit, recorder)
	clients := services.NewClientService(st)
	sessions := services.NewSessionService(st, cfg, audit, recorder)
	opSessions := services.NewOpSessionService(km, cfg)
	authorizations := services.NewAuthorizationService(st, cfg, audit, recorder)
	rbac := services.NewRBACService(st, rbacCache, cfg.PermissionCacheTTL)
	tokens := services.NewTokenService(st, cfg, km, clients, sessions, authorizations, rbac, audit, recorder)

	app := &App{
		Config:         cfg,
		Store:          st,
		Redis:          redisClient,
		Metrics:        recorder,
		Keys:           km,
		Audit:          audit,
		Users:          users,
		Clients:        clients,
		Sessions:       sessions,
		OpSessions:     opSessions,
		Authorizations: authorizations,
		RBAC:           rbac,
		Tokens:         tokens,
	}

	app.Router, err = app.buildRouter()
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) tokenHandler() *handlers.TokenHandler {
	return handlers.NewTokenHandler(a.Tokens, a.Clients, a.Config)
}

func (a *App) authorizeHandler() *handlers.AuthorizeHandler {
	return handlers.NewAuthorizeHandler(a.Authorizations, a.Clients, a.OpSessions, a.Config)
}

func (a *App) loginHandler() *handlers.LoginHandler {
	return handlers.NewLoginHandler(a.Users, a.OpSessions, a.Sessions, a.Audit, a.Config)
}

func (a *App) consentHandler() *handlers.ConsentHandler {
	return handlers.NewConsentHandler(a.Authorizations, a.Clients, a.OpSessions, a.Audit, a.Config)
}

func (a *App) oidcHandler() *handlers.OIDCHandler {
	return handlers.NewOIDCHandler(a.Tokens, a.Sessions, a.Users, a.Audit, a.Keys, a.Store, a.Config)
}

func newRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Printf("[Bootstrap] Connected to Redis at %s", cfg.RedisAddr)
	return client, nil
}

func newRBACCache(
	ctx context.Context,
	cfg *config.Config,
	redisClient *redis.Client,
) (cache.Cache[[]string], error) {
	if redisClient != nil {
		c, err := cache.NewRedisCache[[]string](ctx, redisClient, "rbac")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RBAC cache: %w", err)
		}
		return c, nil
	}
	return cache.NewMemoryCache[[]string](), nil
}
