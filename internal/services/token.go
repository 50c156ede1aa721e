package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/keys"
	"github.com/tenauth/tenauth/internal/metrics"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"

	"github.com/golang-jwt/jwt/v5"
)

// Grant type identifiers (RFC 6749)
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// Token grant errors
var (
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrClientAuthRequired   = errors.New("client authentication required")
)

// TokenResponse is the /token endpoint success body.
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// Not serialized; the handler uses these to decide cookie behavior for
	// first-party clients
	FirstParty bool   `json:"-"`
	SessionID  string `json:"-"`
}

// GrantRequest carries the parsed parameters of a /token request.
type GrantRequest struct {
	TenantID     string
	Client       *models.Client
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string
	Device       string
	IP           string
}

// TokenService dispatches /token grant requests to the services that
// implement each grant and signs the resulting access tokens.
type TokenService struct {
	store    *store.Store
	config   *config.Config
	keys     *keys.Manager
	clients  *ClientService
	sessions *SessionService
	codes    *AuthorizationService
	rbac     *RBACService
	audit    *AuditService
	metrics  metrics.Recorder
}

func NewTokenService(
	s *store.Store,
	cfg *config.Config,
	km *keys.Manager,
	clients *ClientService,
	sessions *SessionService,
	codes *AuthorizationService,
	rbac *RBACService,
	audit *AuditService,
	recorder metrics.Recorder,
) *TokenService {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &TokenService{
		store:    s,
		config:   cfg,
		keys:     km,
		clients:  clients,
		sessions: sessions,
		codes:    codes,
		rbac:     rbac,
		audit:    audit,
		metrics:  recorder,
	}
}

// Grant dispatches on grant_type.
func (s *TokenService) Grant(ctx context.Context, grantType string, req GrantRequest) (*TokenResponse, error) {
	switch grantType {
	case GrantAuthorizationCode:
		return s.AuthorizationCodeGrant(ctx, req)
	case GrantRefreshToken:
		return s.RefreshTokenGrant(ctx, req)
	case GrantClientCredentials:
		return s.ClientCredentialsGrant(ctx, req)
	default:
		s.metrics.RecordGrantRejected(grantType, "unsupported")
		return nil, ErrUnsupportedGrantType
	}
}

// AuthorizationCodeGrant redeems an authorization code for tokens and starts
// a new login session with a fresh refresh chain.
func (s *TokenService) AuthorizationCodeGrant(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	// 1. The registration must permit the grant
	if !req.Client.AllowsGrant(GrantAuthorizationCode) {
		s.metrics.RecordGrantRejected(GrantAuthorizationCode, "grant_not_allowed")
		return nil, ErrGrantNotAllowed
	}

	// 2. Consume the code (single use, PKCE checked inside)
	record, err := s.codes.ConsumeCode(ctx, req.TenantID, req.Client, req.Code, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		s.metrics.RecordGrantRejected(GrantAuthorizationCode, "invalid_code")
		return nil, err
	}

	// 3. Start the session and its refresh chain
	session, rawRefresh, err := s.sessions.IssueSession(ctx, IssueSessionInput{
		TenantID: record.TenantID,
		UserID:   record.UserID,
		Device:   req.Device,
		IP:       req.IP,
	})
	if err != nil {
		return nil, err
	}

	// 4. Sign the access token with the user's current roles and permissions
	accessToken, err := s.signUserAccessToken(ctx, record.TenantID, record.UserID, session.ID, record.Scope, GrantAuthorizationCode)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		TokenType:    "Bearer",
		AccessToken:  accessToken,
		ExpiresIn:    int(s.config.AccessTokenExpiration.Seconds()),
		RefreshToken: rawRefresh,
		Scope:        record.Scope,
		FirstParty:   req.Client.FirstParty,
		SessionID:    session.ID,
	}, nil
}

// RefreshTokenGrant rotates the presented refresh token and signs a new
// access token with the user's current roles and permissions, so a refresh
// always reflects grants revoked since the last token.
func (s *TokenService) RefreshTokenGrant(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	if !req.Client.AllowsGrant(GrantRefreshToken) {
		s.metrics.RecordGrantRejected(GrantRefreshToken, "grant_not_allowed")
		return nil, ErrGrantNotAllowed
	}
	if req.RefreshToken == "" {
		s.metrics.RecordGrantRejected(GrantRefreshToken, "missing_token")
		return nil, ErrInvalidRefreshToken
	}

	session, rawRefresh, err := s.sessions.RotateRefreshToken(ctx, req.TenantID, req.RefreshToken)
	if err != nil {
		s.metrics.RecordGrantRejected(GrantRefreshToken, "rotation_failed")
		return nil, err
	}

	scope := s.clients.NarrowScopes(req.Client, req.Scope)
	accessToken, err := s.signUserAccessToken(ctx, session.TenantID, session.UserID, session.ID, scope, GrantRefreshToken)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		TokenType:    "Bearer",
		AccessToken:  accessToken,
		ExpiresIn:    int(s.config.AccessTokenExpiration.Seconds()),
		RefreshToken: rawRefresh,
		Scope:        scope,
		FirstParty:   req.Client.FirstParty,
		SessionID:    session.ID,
	}, nil
}

// ClientCredentialsGrant signs a token for machine-to-machine callers. No
// session or refresh token: the client re-authenticates when it expires.
func (s *TokenService) ClientCredentialsGrant(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	if !req.Client.AllowsGrant(GrantClientCredentials) {
		s.metrics.RecordGrantRejected(GrantClientCredentials, "grant_not_allowed")
		return nil, ErrGrantNotAllowed
	}
	// Public clients cannot hold this grant; there is nothing to authenticate
	if req.Client.IsPublic() {
		s.metrics.RecordGrantRejected(GrantClientCredentials, "public_client")
		return nil, ErrClientAuthRequired
	}

	scope := s.clients.NarrowScopes(req.Client, req.Scope)

	start := time.Now()
	accessToken, err := s.keys.SignJWTWithTTL(ctx, jwt.MapClaims{
		"sub":    "client:" + req.Client.ClientID,
		"org_id": req.TenantID,
		"scope":  scope,
	}, s.config.AccessTokenExpiration)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	s.metrics.RecordTokenIssued(GrantClientCredentials, time.Since(start))

	if s.audit != nil {
		s.audit.Log(ctx, AuditEntry{
			EventType: models.EventAccessTokenIssued,
			Severity:  models.SeverityInfo,
			TenantID:  req.TenantID,
			ClientID:  req.Client.ClientID,
			Details:   models.AuditDetails{"grant_type": GrantClientCredentials},
			Success:   true,
		})
	}

	return &TokenResponse{
		TokenType:   "Bearer",
		AccessToken: accessToken,
		ExpiresIn:   int(s.config.AccessTokenExpiration.Seconds()),
		Scope:       scope,
	}, nil
}

// VerifyAccessToken verifies a bearer token and returns its claims. Used by
// introspection and userinfo.
func (s *TokenService) VerifyAccessToken(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	claims, err := s.keys.VerifyJWT(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	// OP session cookies share the signing keys but never pass as bearer tokens
	if purpose, _ := claims["purpose"].(string); purpose != "" {
		return nil, keys.ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) signUserAccessToken(
	ctx context.Context,
	tenantID, userID, sessionID, scope, grantType string,
) (string, error) {
	roles, err := s.rbac.RolesForUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load roles: %w", err)
	}
	permissions, err := s.rbac.PermissionsForUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load permissions: %w", err)
	}

	start := time.Now()
	token, err := s.keys.SignJWTWithTTL(ctx, jwt.MapClaims{
		"sub":         userID,
		"org_id":      tenantID,
		"sid":         sessionID,
		"roles":       roles,
		"permissions": permissions,
		"scope":       scope,
	}, s.config.AccessTokenExpiration)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	s.metrics.RecordTokenIssued(grantType, time.Since(start))

	if s.audit != nil {
		s.audit.Log(ctx, AuditEntry{
			EventType:   models.EventAccessTokenIssued,
			Severity:    models.SeverityInfo,
			TenantID:    tenantID,
			ActorUserID: userID,
			SessionID:   sessionID,
			Details:     models.AuditDetails{"grant_type": grantType},
			Success:     true,
		})
	}
	return token, nil
}
