package credentials

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coachflow/internal/services"
)

func newTestAccount(t *testing.T, tokenURL string) (ServiceAccount, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return ServiceAccount{
		ClientEmail:  "coach@example.iam",
		PrivateKey:   string(pemBytes),
		PrivateKeyID: "kid-1",
		TokenURI:     tokenURL,
	}, key
}

func tokenServer(t *testing.T, key *rsa.PrivateKey, expiresIn int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != jwtBearerGrant {
			t.Errorf("grant_type = %q", got)
		}
		var claims assertionClaims
		_, err := jwt.ParseWithClaims(r.PostForm.Get("assertion"), &claims, func(tok *jwt.Token) (any, error) {
			if tok.Header["kid"] != "kid-1" {
				t.Errorf("kid header = %v", tok.Header["kid"])
			}
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		if claims.Issuer != "coach@example.iam" {
			t.Errorf("issuer = %q", claims.Issuer)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "tok-" + claims.Scope,
			ExpiresIn:   int64(expiresIn),
			TokenType:   "Bearer",
		})
	}))
}

func TestProviderCachesPerScope(t *testing.T) {
	var calls atomic.Int32
	account, key := newTestAccount(t, "")
	srv := tokenServer(t, key, 3600, &calls)
	defer srv.Close()

	p, err := NewProvider(account, WithTokenURL(srv.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	ctx := context.Background()

	for range 3 {
		tok, err := p.Token(ctx, "storage")
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok != "tok-storage" {
			t.Fatalf("token = %q", tok)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 exchange, got %d", calls.Load())
	}

	tok, err := p.Token(ctx, "drive")
	if err != nil {
		t.Fatalf("Token drive: %v", err)
	}
	if tok != "tok-drive" {
		t.Fatalf("token = %q", tok)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 exchanges, got %d", calls.Load())
	}
}

func TestProviderRefreshesNearExpiry(t *testing.T) {
	var calls atomic.Int32
	account, key := newTestAccount(t, "")
	srv := tokenServer(t, key, 3600, &calls)
	defer srv.Close()

	now := time.Now()
	p, err := NewProvider(account, WithTokenURL(srv.URL), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	ctx := context.Background()
	if _, err := p.Token(ctx, "storage"); err != nil {
		t.Fatalf("Token: %v", err)
	}
	now = now.Add(56 * time.Minute)
	if _, err := p.Token(ctx, "storage"); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected refresh inside leeway, got %d exchanges", calls.Load())
	}
}

func TestProviderRejectedAssertionIsUnauthorized(t *testing.T) {
	var calls atomic.Int32
	account, _ := newTestAccount(t, "")
	_, otherKey := newTestAccount(t, "")
	srv := tokenServer(t, otherKey, 3600, &calls)
	defer srv.Close()

	p, err := NewProvider(account, WithTokenURL(srv.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	_, err = p.Token(context.Background(), "storage")
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestFromFile(t *testing.T) {
	var calls atomic.Int32
	account, key := newTestAccount(t, "")
	srv := tokenServer(t, key, 3600, &calls)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "sa.json")
	data, _ := json.Marshal(account)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	src, err := FromFile(path, srv.URL)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if _, err := src.Token(context.Background(), "transcription"); err != nil {
		t.Fatalf("Token: %v", err)
	}

	if _, err := FromFile("", srv.URL); err == nil {
		t.Fatal("expected error for empty path")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	_ = os.WriteFile(bad, []byte(`{"client_email":"x"}`), 0o600)
	if _, err := FromFile(bad, srv.URL); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token(context.Background(), "any")
	if err != nil || tok != "abc" {
		t.Fatalf("Static = %q, %v", tok, err)
	}
	if _, err := Static(" ").Token(context.Background(), "any"); err == nil {
		t.Fatal("expected error for empty static token")
	}
}
