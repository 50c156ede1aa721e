package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/keys"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidOpSession covers every way an OP session cookie can fail:
// missing, expired, bad signature, or wrong purpose. Callers redirect to
// login either way.
var ErrInvalidOpSession = errors.New("invalid op session")

const opSessionPurpose = "op"

// OpSessionClaims is the validated identity behind an op_session cookie.
type OpSessionClaims struct {
	UserID   string
	TenantID string
}

// OpSessionService issues and validates the OP login session cookie. The
// cookie is a signed JWT with purpose "op", so it can never pass as an
// access token even though both are signed by the same keys.
type OpSessionService struct {
	keys   *keys.Manager
	config *config.Config
}

func NewOpSessionService(km *keys.Manager, cfg *config.Config) *OpSessionService {
	return &OpSessionService{
		keys:   km,
		config: cfg,
	}
}

// Issue signs an OP session token for the authenticated user.
func (s *OpSessionService) Issue(ctx context.Context, tenantID, userID string) (string, error) {
	token, err := s.keys.SignJWTWithTTL(ctx, jwt.MapClaims{
		"sub":     userID,
		"org_id":  tenantID,
		"purpose": opSessionPurpose,
	}, s.config.OpSessionExpiration)
	if err != nil {
		return "", fmt.Errorf("failed to sign op session: %w", err)
	}
	return token, nil
}

// Validate verifies the cookie value and returns the identity it names.
func (s *OpSessionService) Validate(ctx context.Context, tokenString string) (*OpSessionClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidOpSession
	}

	claims, err := s.keys.VerifyJWT(ctx, tokenString)
	if err != nil {
		return nil, ErrInvalidOpSession
	}

	purpose, _ := claims["purpose"].(string)
	if purpose != opSessionPurpose {
		return nil, ErrInvalidOpSession
	}

	sub, _ := claims["sub"].(string)
	orgID, _ := claims["org_id"].(string)
	if sub == "" || orgID == "" {
		return nil, ErrInvalidOpSession
	}

	return &OpSessionClaims{
		UserID:   sub,
		TenantID: orgID,
	}, nil
}
