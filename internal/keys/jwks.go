package keys

import (
	"context"
	"encoding/base64"
	"math/big"
)

// JWK is a single published verification key (RFC 7517).
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet is the document served at /jwks.json.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS returns the published key set. Active and retired keys are included
// so tokens signed before a rotation keep verifying; pending keys are not
// published.
func (m *Manager) JWKS(ctx context.Context) (*JWKSet, error) {
	rows, err := m.store.ListPublishableKeys()
	if err != nil {
		return nil, err
	}

	set := &JWKSet{Keys: make([]JWK, 0, len(rows))}
	for _, row := range rows {
		pub, err := parsePublicKeyPEM(row.PublicKeyPEM)
		if err != nil {
			// Skip unparsable rows rather than failing the whole set
			continue
		}
		set.Keys = append(set.Keys, JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: row.Algorithm,
			Kid: row.Kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	return set, nil
}
