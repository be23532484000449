package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownKeyID = errors.New("no signing key matches token kid")
)

// jwk is one RSA key from the identity provider's JWKS document.
type jwk struct {
	Alg string `json:"alg"`
	E   string `json:"e"`
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	Use string `json:"use"`
}

// Verifier validates RS256 access tokens issued by an external identity
// provider against its published JWKS. It also checks the issuer, the client
// ID, and that the token is an access token (not an ID token).
type Verifier struct {
	issuer   string
	clientID string
	client   *http.Client

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// NewVerifier creates a verifier and fetches the issuer's JWKS once up front.
// Unknown key IDs seen later trigger a refetch (provider key rotation).
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	v := &Verifier{
		issuer:   issuer,
		clientID: clientID,
		client:   &http.Client{Timeout: 10 * time.Second},
		keys:     make(map[string]*rsa.PublicKey),
	}
	if err := v.refreshKeys(ctx); err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	return v, nil
}

// Verify validates the raw token and returns the authenticated principal.
func (v *Verifier) Verify(ctx context.Context, raw string) (Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrInvalidToken
		}
		key := v.key(kid)
		if key == nil {
			// Key rotation: refetch once before giving up.
			if err := v.refreshKeys(ctx); err != nil {
				return nil, err
			}
			if key = v.key(kid); key == nil {
				return nil, ErrUnknownKeyID
			}
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Anonymous(), ErrInvalidToken
	}

	// Access tokens carry the audience in client_id, and must not be ID or
	// refresh tokens.
	if use, _ := claims["token_use"].(string); use != "access" {
		return Anonymous(), ErrInvalidToken
	}
	if cid, _ := claims["client_id"].(string); cid != v.clientID {
		return Anonymous(), ErrInvalidToken
	}

	p := Principal{Authenticated: true}
	p.Subject, _ = claims["sub"].(string)
	p.Username, _ = claims["username"].(string)
	if raw, ok := claims["cognito:groups"].([]interface{}); ok {
		for _, g := range raw {
			if s, ok := g.(string); ok {
				p.Groups = append(p.Groups, s)
			}
		}
	}
	return p, nil
}

func (v *Verifier) key(kid string) *rsa.PublicKey {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keys[kid]
}

func (v *Verifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.issuer+"/.well-known/jwks.json", nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return err
	}
	if len(doc.Keys) == 0 {
		return errors.New("jwks endpoint contains no keys")
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			return fmt.Errorf("parse jwk %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()
	return nil
}

// publicKey builds the RSA public key from the base64url modulus and exponent.
func (k jwk) publicKey() (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
