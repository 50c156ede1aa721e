package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tenauth/tenauth/internal/config"
	"github.com/tenauth/tenauth/internal/metrics"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
	"github.com/tenauth/tenauth/internal/util"
)

// Authorization Code Flow errors
var (
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrInvalidRedirectURI      = errors.New("invalid redirect_uri")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrAuthCodeNotFound        = errors.New("authorization code not found")
	ErrAuthCodeExpired         = errors.New("authorization code expired")
	ErrAuthCodeAlreadyUsed     = errors.New("authorization code already used")
	ErrInvalidCodeVerifier     = errors.New("invalid code_verifier")
	ErrPKCERequired            = errors.New("pkce required for public clients")
)

// AuthorizeRequest holds validated parameters of an incoming /authorize request
type AuthorizeRequest struct {
	Client              *models.Client
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizationService manages authorization code issuance and redemption
// (RFC 6749 with PKCE per RFC 7636)
type AuthorizationService struct {
	store   *store.Store
	config  *config.Config
	audit   *AuditService
	metrics metrics.Recorder
}

func NewAuthorizationService(
	s *store.Store,
	cfg *config.Config,
	audit *AuditService,
	recorder metrics.Recorder,
) *AuthorizationService {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &AuthorizationService{
		store:   s,
		config:  cfg,
		audit:   audit,
		metrics: recorder,
	}
}

// ValidateAuthorizeRequest validates all parameters of an incoming /authorize
// request against the client registration.
func (s *AuthorizationService) ValidateAuthorizeRequest(
	client *models.Client,
	redirectURI, responseType, scope, state, codeChallenge, codeChallengeMethod string,
) (*AuthorizeRequest, error) {
	// 1. response_type must be "code"
	if responseType != "code" {
		return nil, ErrUnsupportedResponseType
	}

	// 2. redirect_uri must exactly match one of the registered URIs
	if !client.AllowsRedirect(redirectURI) {
		return nil, ErrInvalidRedirectURI
	}

	// 3. Narrow the requested scope to the client's registration; scopes the
	// client does not hold are dropped, not refused. An empty request
	// defaults to everything the client registered.
	scope = narrowScopes(client, scope)
	if scope == "" {
		return nil, ErrInvalidScope
	}

	// 4. PKCE: public clients must send a challenge. Third-party public
	// clients must use S256; first-party ones may fall back to plain.
	if client.IsPublic() {
		if codeChallenge == "" {
			return nil, ErrPKCERequired
		}
		if !client.FirstParty && codeChallengeMethod != models.CodeChallengeS256 {
			return nil, ErrPKCERequired
		}
	}
	if codeChallengeMethod != "" &&
		codeChallengeMethod != models.CodeChallengeS256 &&
		codeChallengeMethod != models.CodeChallengePlain {
		return nil, ErrInvalidCodeVerifier
	}

	return &AuthorizeRequest{
		Client:              client,
		RedirectURI:         redirectURI,
		Scope:               scope,
		State:               state,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
	}, nil
}

// IssueCode generates a one-time authorization code and saves it. Only the
// SHA-256 hash is stored; the plaintext travels once in the redirect.
func (s *AuthorizationService) IssueCode(
	ctx context.Context,
	tenantID, userID string,
	req *AuthorizeRequest,
) (string, error) {
	// 256-bit entropy; no salt needed for the stored hash
	plainCode, err := util.CryptoRandomHex(64)
	if err != nil {
		s.metrics.RecordCodeIssued(false)
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	record := &models.AuthorizationCode{
		TenantID:            tenantID,
		UserID:              userID,
		ClientID:            req.Client.ClientID,
		CodeHash:            util.SHA256Hex(plainCode),
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(s.config.AuthCodeExpiration),
	}

	if err := s.store.CreateAuthorizationCode(record); err != nil {
		s.metrics.RecordCodeIssued(false)
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.metrics.RecordCodeIssued(true)
	if s.audit != nil {
		s.audit.Log(ctx, AuditEntry{
			EventType:   models.EventAuthorizationCodeIssued,
			Severity:    models.SeverityInfo,
			TenantID:    tenantID,
			ActorUserID: userID,
			ClientID:    req.Client.ClientID,
			Details: models.AuditDetails{
				"scope":        req.Scope,
				"pkce":         req.CodeChallenge != "",
				"redirect_uri": req.RedirectURI,
			},
			Success: true,
		})
	}

	return plainCode, nil
}

// ConsumeCode validates a plaintext authorization code and marks it consumed.
// The caller issues tokens only after this returns successfully.
func (s *AuthorizationService) ConsumeCode(
	ctx context.Context,
	tenantID string,
	client *models.Client,
	plainCode, redirectURI, codeVerifier string,
) (*models.AuthorizationCode, error) {
	// 1. Hash the incoming code for lookup, scoped to tenant and client so a
	// code never redeems under a different client
	record, err := s.store.GetAuthorizationCodeByHash(tenantID, client.ClientID, util.SHA256Hex(plainCode))
	if err != nil {
		s.metrics.RecordCodeRedemption("invalid")
		return nil, ErrAuthCodeNotFound
	}

	// 2. Validate state
	if record.IsConsumed() {
		s.metrics.RecordCodeRedemption("consumed")
		return nil, ErrAuthCodeAlreadyUsed
	}
	if record.IsExpired() {
		s.metrics.RecordCodeRedemption("expired")
		return nil, ErrAuthCodeExpired
	}
	if record.RedirectURI != redirectURI {
		s.metrics.RecordCodeRedemption("invalid")
		return nil, ErrInvalidRedirectURI
	}

	// 3. PKCE verification when the code carries a challenge
	if record.CodeChallenge != "" {
		if !verifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, codeVerifier) {
			s.metrics.RecordCodeRedemption("pkce_mismatch")
			return nil, ErrInvalidCodeVerifier
		}
	} else if client.IsPublic() {
		s.metrics.RecordCodeRedemption("invalid")
		return nil, ErrPKCERequired
	}

	// 4. Mark consumed atomically (WHERE consumed_at IS NULL ensures only one
	// concurrent request wins; the loser receives ErrCodeAlreadyConsumed)
	now := time.Now()
	if err := s.store.ConsumeAuthorizationCode(record.ID); err != nil {
		if errors.Is(err, store.ErrCodeAlreadyConsumed) {
			s.metrics.RecordCodeRedemption("consumed")
			return nil, ErrAuthCodeAlreadyUsed
		}
		return nil, fmt.Errorf("failed to consume code: %w", err)
	}
	record.ConsumedAt = &now // Reflect DB state in the returned struct

	s.metrics.RecordCodeRedemption("success")
	if s.audit != nil {
		s.audit.Log(ctx, AuditEntry{
			EventType:   models.EventAuthorizationCodeRedeemed,
			Severity:    models.SeverityInfo,
			TenantID:    tenantID,
			ActorUserID: record.UserID,
			ClientID:    client.ClientID,
			Details: models.AuditDetails{
				"scope": record.Scope,
			},
			Success: true,
		})
	}

	return record, nil
}

// CleanupExpiredCodes prunes expired authorization codes.
func (s *AuthorizationService) CleanupExpiredCodes() error {
	return s.store.DeleteExpiredAuthorizationCodes()
}

// verifyPKCE checks the code_verifier against the stored challenge.
func verifyPKCE(codeChallenge, method, codeVerifier string) bool {
	if codeVerifier == "" {
		return false
	}
	switch strings.ToUpper(method) {
	case "S256":
		return util.S256Challenge(codeVerifier) == codeChallenge
	case "PLAIN", "":
		return codeVerifier == codeChallenge
	default:
		return false
	}
}
