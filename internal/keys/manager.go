package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tenauth/tenauth/internal/metrics"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenTTL is the lifetime of signed access tokens.
	DefaultAccessTokenTTL = 5 * time.Minute

	// rotationOverlap backdates a new key's notBefore so tokens signed by
	// instances with slightly skewed clocks still verify.
	rotationOverlap = 60 * time.Second

	rsaKeyBits = 2048

	pubCacheSize = 2000
	pubCacheTTL  = 5 * time.Minute
)

// Manager owns the signing key lifecycle: generation, rotation, JWT signing
// and verification, and the published JWKS. Private key material never leaves
// the PrivateKeyStore; the database holds only public PEMs and opaque refs.
type Manager struct {
	store   *store.Store
	priv    PrivateKeyStore
	issuer  string
	metrics metrics.Recorder

	pubCache *publicKeyCache

	// rotateMu serializes rotation so concurrent callers cannot leave two
	// keys active. It only covers this process; the in-memory private key
	// store already limits a deployment to a single instance, so a
	// multi-instance KMS backend would need a store-level guard here too.
	rotateMu sync.Mutex
}

// NewManager creates a key manager backed by the given stores.
func NewManager(s *store.Store, priv PrivateKeyStore, issuer string, recorder metrics.Recorder) *Manager {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &Manager{
		store:    s,
		priv:     priv,
		issuer:   issuer,
		metrics:  recorder,
		pubCache: newPublicKeyCache(pubCacheSize, pubCacheTTL),
	}
}

// EnsureActiveKey guarantees a usable active key exists, generating one on
// first boot and rotating when the recorded key is unusable (unparsable
// public PEM or a private ref the store cannot resolve).
func (m *Manager) EnsureActiveKey(ctx context.Context) (*models.SigningKey, error) {
	key, err := m.store.GetActiveSigningKey()
	if err != nil {
		if errors.Is(err, store.ErrNoActiveKey) {
			log.Printf("[Keys] No active signing key, generating initial key")
			return m.RotateKeys(ctx)
		}
		return nil, err
	}

	if _, parseErr := parsePublicKeyPEM(key.PublicKeyPEM); parseErr != nil {
		log.Printf("[Keys] Active key %s has unusable public key, rotating: %v", key.Kid, parseErr)
		return m.RotateKeys(ctx)
	}
	if _, loadErr := m.priv.Load(ctx, key.PrivateKeyRef); loadErr != nil {
		log.Printf("[Keys] Active key %s has unresolvable private ref, rotating: %v", key.Kid, loadErr)
		return m.RotateKeys(ctx)
	}

	return key, nil
}

// RotateKeys generates a fresh key pair, activates it, and retires every
// other active key. Activation happens before retirement so there is never a
// window with zero active keys; retired keys keep verifying old tokens.
func (m *Manager) RotateKeys(ctx context.Context) (*models.SigningKey, error) {
	m.rotateMu.Lock()
	defer m.rotateMu.Unlock()

	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		m.metrics.RecordKeyRotation(false)
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	kid := uuid.New().String()

	ref, err := m.priv.Store(ctx, kid, priv)
	if err != nil {
		m.metrics.RecordKeyRotation(false)
		return nil, fmt.Errorf("failed to store private key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		m.metrics.RecordKeyRotation(false)
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	now := time.Now()
	key := &models.SigningKey{
		Kid:           kid,
		Algorithm:     "RS256",
		PublicKeyPEM:  string(pubPEM),
		PrivateKeyRef: ref,
		Status:        models.KeyStatusPending,
		NotBefore:     now.Add(-rotationOverlap),
	}
	if err := m.store.CreateSigningKey(key); err != nil {
		m.metrics.RecordKeyRotation(false)
		return nil, fmt.Errorf("failed to persist signing key: %w", err)
	}

	// Activate first, then retire. A crash between the two steps leaves two
	// active keys, which GetActiveSigningKey resolves by notBefore ordering.
	if err := m.store.ActivateSigningKey(kid, key.NotBefore); err != nil {
		m.metrics.RecordKeyRotation(false)
		return nil, fmt.Errorf("failed to activate signing key: %w", err)
	}
	if err := m.store.RetireSigningKeysExcept(kid, now); err != nil {
		m.metrics.RecordKeyRotation(false)
		return nil, fmt.Errorf("failed to retire previous keys: %w", err)
	}

	key.Status = models.KeyStatusActive
	m.pubCache.put(kid, &priv.PublicKey)
	m.metrics.RecordKeyRotation(true)
	log.Printf("[Keys] Rotated signing key, new kid: %s", kid)

	return key, nil
}

// SignJWT signs the claims with the active key using the default access
// token lifetime.
func (m *Manager) SignJWT(ctx context.Context, claims jwt.MapClaims) (string, error) {
	return m.SignJWTWithTTL(ctx, claims, DefaultAccessTokenTTL)
}

// SignJWTWithTTL signs the claims with the active key. The iss, iat, exp and
// jti claims are filled in; the kid travels in the token header.
func (m *Manager) SignJWTWithTTL(ctx context.Context, claims jwt.MapClaims, ttl time.Duration) (string, error) {
	key, err := m.store.GetActiveSigningKey()
	if err != nil {
		return "", err
	}

	priv, err := m.priv.Load(ctx, key.PrivateKeyRef)
	if err != nil {
		return "", fmt.Errorf("failed to load private key for kid %s: %w", key.Kid, err)
	}

	now := time.Now()
	claims["iss"] = m.issuer
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	claims["jti"] = uuid.New().String()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = key.Kid

	signed, err := token.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyJWT parses and verifies a token against the key named by its kid
// header, rejecting tokens whose iss claim does not match the manager's
// issuer. Retired keys still verify; only deleted or never-issued kids fail
// with ErrUnknownKey.
func (m *Manager) VerifyJWT(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	start := time.Now()

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrInvalidToken)
		}
		return m.publicKeyForKid(ctx, kid)
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			m.metrics.RecordTokenVerification("expired", time.Since(start))
			return nil, ErrExpiredToken
		case errors.Is(err, ErrUnknownKey):
			m.metrics.RecordTokenVerification("unknown_key", time.Since(start))
			return nil, ErrUnknownKey
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			m.metrics.RecordTokenVerification("invalid", time.Since(start))
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			m.metrics.RecordTokenVerification("invalid", time.Since(start))
			return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
		case errors.Is(err, ErrInvalidToken):
			m.metrics.RecordTokenVerification("invalid", time.Since(start))
			return nil, err
		default:
			m.metrics.RecordTokenVerification("invalid", time.Since(start))
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		m.metrics.RecordTokenVerification("invalid", time.Since(start))
		return nil, ErrInvalidToken
	}

	m.metrics.RecordTokenVerification("valid", time.Since(start))
	return claims, nil
}

// publicKeyForKid resolves a verification key, consulting the cache before
// the database.
func (m *Manager) publicKeyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := m.pubCache.get(kid); ok {
		return key, nil
	}

	row, err := m.store.GetSigningKeyByKid(kid)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUnknownKey
		}
		return nil, err
	}

	pub, err := parsePublicKeyPEM(row.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: kid %s: %v", ErrUnknownKey, kid, err)
	}

	m.pubCache.put(kid, pub)
	return pub, nil
}

func parsePublicKeyPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return pub, nil
}
