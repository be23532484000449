package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testClientID = "test-client"

// jwksServer serves a JWKS document for the given key under /.well-known/jwks.json.
func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	doc := map[string]interface{}{
		"keys": []jwk{{
			Alg: "RS256",
			Kty: "RSA",
			Use: "sig",
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func validClaims(issuer string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            issuer,
		"sub":            "user-123",
		"username":       "ada",
		"token_use":      "access",
		"client_id":      testClientID,
		"cognito:groups": []string{"admins", "organizers"},
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
	}
}

func TestVerify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := jwksServer(t, "key-1", &key.PublicKey)

	v, err := NewVerifier(context.Background(), srv.URL, testClientID)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	p, err := v.Verify(context.Background(), signToken(t, key, "key-1", validClaims(srv.URL)))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !p.Authenticated {
		t.Error("principal not authenticated")
	}
	if p.Subject != "user-123" || p.Username != "ada" {
		t.Errorf("principal = %+v", p)
	}
	if !p.InGroup("admins") || p.InGroup("speakers") {
		t.Errorf("groups = %v", p.Groups)
	}
}

func TestVerifyRejections(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := jwksServer(t, "key-1", &key.PublicKey)
	v, err := NewVerifier(context.Background(), srv.URL, testClientID)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.jwt"},
		{"expired", signToken(t, key, "key-1", func() jwt.MapClaims {
			c := validClaims(srv.URL)
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return c
		}())},
		{"wrong issuer", signToken(t, key, "key-1", func() jwt.MapClaims {
			c := validClaims(srv.URL)
			c["iss"] = "https://evil.example.com"
			return c
		}())},
		{"wrong client id", signToken(t, key, "key-1", func() jwt.MapClaims {
			c := validClaims(srv.URL)
			c["client_id"] = "someone-else"
			return c
		}())},
		{"id token not access token", signToken(t, key, "key-1", func() jwt.MapClaims {
			c := validClaims(srv.URL)
			c["token_use"] = "id"
			return c
		}())},
		{"wrong signing key", signToken(t, otherKey, "key-1", validClaims(srv.URL))},
	}
	for _, tt := range tests {
		p, err := v.Verify(context.Background(), tt.token)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", tt.name, err)
		}
		if p.Authenticated {
			t.Errorf("%s: rejected token produced authenticated principal", tt.name)
		}
	}
}

func TestHMACTokenRejected(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := jwksServer(t, "key-1", &key.PublicKey)
	v, err := NewVerifier(context.Background(), srv.URL, testClientID)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(srv.URL))
	tok.Header["kid"] = "key-1"
	s, err := tok.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(context.Background(), s); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestAnonymousIsFresh(t *testing.T) {
	a := Anonymous()
	a.Groups = append(a.Groups, "admins")
	a.Authenticated = true

	b := Anonymous()
	if b.Authenticated || len(b.Groups) != 0 {
		t.Errorf("Anonymous shares state: %+v", b)
	}
}
