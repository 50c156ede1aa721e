package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/metrics"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
	"github.com/tenauth/tenauth/internal/util"

	"github.com/google/uuid"
)

// Session and refresh token errors
var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenReused  = errors.New("refresh token reuse detected")
	ErrSessionNotFound     = errors.New("session not found")
)

// IssueSessionInput carries the request context for a new login session.
type IssueSessionInput struct {
	TenantID string
	UserID   string
	Device   string
	IP       string
}

// SessionService manages login sessions and their rotating refresh token
// chains. Every rotation revokes the presented token and mints a successor;
// presenting an already-revoked token is treated as theft and kills the
// whole chain.
type SessionService struct {
	store   *store.Store
	config  *config.Config
	audit   *AuditService
	metrics metrics.Recorder
}

func NewSessionService(
	s *store.Store,
	cfg *config.Config,
	audit *AuditService,
	recorder metrics.Recorder,
) *SessionService {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &SessionService{
		store:   s,
		config:  cfg,
		audit:   audit,
		metrics: recorder,
	}
}

// IssueSession creates a session with the first link of its refresh chain.
// Returns the session and the plaintext refresh token; only the token's
// SHA-256 hash is stored.
func (s *SessionService) IssueSession(
	ctx context.Context,
	input IssueSessionInput,
) (*models.Session, string, error) {
	session := &models.Session{
		ID:         uuid.New().String(),
		TenantID:   input.TenantID,
		UserID:     input.UserID,
		Device:     input.Device,
		IP:         input.IP,
		LastSeenAt: time.Now(),
	}
	if err := s.store.CreateSession(session); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	raw, token, err := s.newRefreshToken(input.TenantID, session.ID, "")
	if err != nil {
		return nil, "", err
	}
	if err := s.store.CreateRefreshToken(token); err != nil {
		return nil, "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	s.metrics.RecordSessionCreated()
	return session, raw, nil
}

// RotateRefreshToken redeems a refresh token for its successor. The outcomes:
//
//   - live token: revoke it, mint a successor, return the session
//   - revoked token: reuse detected, revoke the entire chain, fail closed
//   - expired token: reject without revoking the chain
//   - unknown token: reject
func (s *SessionService) RotateRefreshToken(
	ctx context.Context,
	tenantID, rawToken string,
) (*models.Session, string, error) {
	// 1. Look up by hash, tenant scoped
	current, err := s.store.GetRefreshTokenByHash(tenantID, util.SHA256Hex(rawToken))
	if err != nil {
		s.metrics.RecordRefreshRotation("invalid")
		return nil, "", ErrInvalidRefreshToken
	}

	// 2. A revoked token presented again means the chain leaked. Revoke every
	// live token in the session before failing.
	if current.IsRevoked() {
		s.handleReuse(ctx, current)
		return nil, "", ErrRefreshTokenReused
	}

	// 3. Expiry ends the chain quietly; the user just logs in again
	if current.IsExpired() {
		s.metrics.RecordRefreshRotation("expired")
		return nil, "", ErrRefreshTokenExpired
	}

	// 4. Revoke-and-replace in one transaction. Losing the conditional update
	// race means another request rotated first, which is the same reuse
	// signal as step 2.
	raw, next, err := s.newRefreshToken(tenantID, current.SessionID, current.ID)
	if err != nil {
		return nil, "", err
	}
	if err := s.store.RotateRefreshToken(current.ID, next); err != nil {
		if errors.Is(err, store.ErrTokenAlreadyRevoked) {
			s.handleReuse(ctx, current)
			return nil, "", ErrRefreshTokenReused
		}
		return nil, "", fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	// 5. Refresh session activity
	session, err := s.store.GetSessionByID(current.SessionID)
	if err != nil {
		return nil, "", ErrSessionNotFound
	}
	if err := s.store.TouchSession(session.ID, time.Now()); err != nil {
		log.Printf("[Session] Failed to touch session %s: %v", session.ID, err)
	}

	s.metrics.RecordRefreshRotation("success")
	if s.audit != nil {
		s.audit.Log(ctx, AuditEntry{
			EventType:   models.EventRefreshTokenRotated,
			Severity:    models.SeverityInfo,
			TenantID:    tenantID,
			ActorUserID: session.UserID,
			SessionID:   session.ID,
			Success:     true,
		})
	}

	return session, raw, nil
}

// RevokeSession revokes every live refresh token in the session's chain.
// Revoking an already-dead session is a no-op.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID, reason string) error {
	if err := s.store.RevokeSessionTokens(sessionID); err != nil {
		return fmt.Errorf("failed to revoke session tokens: %w", err)
	}

	s.metrics.RecordSessionRevoked(reason)
	if s.audit != nil {
		s.audit.Log(ctx, AuditEntry{
			EventType: models.EventSessionRevoked,
			Severity:  models.SeverityInfo,
			SessionID: sessionID,
			Details:   models.AuditDetails{"reason": reason},
			Success:   true,
		})
	}
	return nil
}

// RevokeByRawToken revokes the session behind a presented refresh token.
// Unknown tokens succeed silently per RFC 7009.
func (s *SessionService) RevokeByRawToken(ctx context.Context, tenantID, rawToken string) error {
	token, err := s.store.GetRefreshTokenByHash(tenantID, util.SHA256Hex(rawToken))
	if err != nil {
		return nil
	}
	return s.RevokeSession(ctx, token.SessionID, "user_request")
}

// LookupByRawToken resolves a raw refresh token to its record without
// mutating anything. Used by introspection.
func (s *SessionService) LookupByRawToken(tenantID, rawToken string) (*models.RefreshToken, error) {
	token, err := s.store.GetRefreshTokenByHash(tenantID, util.SHA256Hex(rawToken))
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	return token, nil
}

// CleanupExpiredTokens prunes refresh tokens past their expiry.
func (s *SessionService) CleanupExpiredTokens() error {
	return s.store.DeleteExpiredRefreshTokens()
}

func (s *SessionService) handleReuse(ctx context.Context, presented *models.RefreshToken) {
	log.Printf("[Session] Refresh token reuse detected for session %s, revoking chain", presented.SessionID)

	if err := s.store.RevokeSessionTokens(presented.SessionID); err != nil {
		log.Printf("[Session] Failed to revoke chain for session %s: %v", presented.SessionID, err)
	}

	s.metrics.RecordRefreshRotation("reuse_detected")
	s.metrics.RecordSessionRevoked("reuse_detected")

	if s.audit != nil {
		// Written synchronously: this is the signal a stolen token was used
		if err := s.audit.LogSync(ctx, AuditEntry{
			EventType: models.EventRefreshTokenReuseDetected,
			Severity:  models.SeverityCritical,
			TenantID:  presented.TenantID,
			SessionID: presented.SessionID,
			Success:   false,
		}); err != nil {
			log.Printf("[Session] Failed to write reuse audit event: %v", err)
		}
	}
}

func (s *SessionService) newRefreshToken(
	tenantID, sessionID, rotatedFromID string,
) (string, *models.RefreshToken, error) {
	raw, err := util.CryptoRandomHex(64)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return raw, &models.RefreshToken{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		SessionID:     sessionID,
		TokenHash:     util.SHA256Hex(raw),
		ExpiresAt:     time.Now().Add(s.config.RefreshTokenExpiration),
		RotatedFromID: rotatedFromID,
	}, nil
}
