package services

import (
	"errors"
	"strings"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
)

// Client resolution errors
var (
	ErrClientNotFound      = errors.New("client not found")
	ErrInvalidClientSecret = errors.New("invalid client secret")
	ErrGrantNotAllowed     = errors.New("grant type not allowed for client")
)

// ClientService resolves and authenticates OAuth clients. Resolution tries
// the tenant's own registrations first and falls back to the global realm,
// so first-party clients registered once work for every tenant.
type ClientService struct {
	store *store.Store
}

func NewClientService(s *store.Store) *ClientService {
	return &ClientService{store: s}
}

// ResolveClient finds an active client visible from the tenant.
func (s *ClientService) ResolveClient(tenantID, clientID string) (*models.Client, error) {
	if clientID == "" {
		return nil, ErrClientNotFound
	}

	if tenantID != "" {
		if client, err := s.store.GetClient(tenantID, clientID); err == nil {
			return client, nil
		}
	}

	client, err := s.store.GetGlobalClient(clientID)
	if err != nil {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// Authenticate resolves the client and checks its credentials. Public
// clients authenticate by identifier alone; confidential clients must
// present their secret.
func (s *ClientService) Authenticate(tenantID, clientID, clientSecret string) (*models.Client, error) {
	client, err := s.ResolveClient(tenantID, clientID)
	if err != nil {
		return nil, err
	}

	if client.IsPublic() {
		return client, nil
	}

	if clientSecret == "" || !client.ValidateSecret(clientSecret) {
		return nil, ErrInvalidClientSecret
	}
	return client, nil
}

// NarrowScopes intersects the requested scopes with the client's registered
// scopes. An empty request yields the full registered set; requesting a
// scope the client does not hold simply drops it.
func (s *ClientService) NarrowScopes(client *models.Client, requested string) string {
	return narrowScopes(client, requested)
}

func narrowScopes(client *models.Client, requested string) string {
	if requested == "" {
		return client.Scopes
	}

	allowed := make(map[string]bool)
	for _, scope := range client.ScopeList() {
		allowed[scope] = true
	}

	var narrowed []string
	for _, scope := range strings.Fields(requested) {
		if allowed[scope] {
			narrowed = append(narrowed, scope)
		}
	}
	return strings.Join(narrowed, " ")
}
