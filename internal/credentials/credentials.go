// Package credentials issues short-lived bearer tokens for the storage, folder
// and transcription APIs by exchanging a signed service-account assertion.
package credentials

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coachflow/internal/services"
)

const (
	jwtBearerGrant     = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime  = time.Hour
	tokenRefreshLeeway = 5 * time.Minute
)

// TokenSource issues bearer tokens for a scope.
type TokenSource interface {
	Token(ctx context.Context, scope string) (string, error)
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Static is a fixed token, useful for local development against emulators.
type Static string

// Token returns the fixed token regardless of scope.
func (s Static) Token(context.Context, string) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", services.Wrap(services.ErrConfiguration, "credentials", "token", "static token is empty", nil)
	}
	return string(s), nil
}

// ServiceAccount is the subset of a service-account key file the exchange needs.
type ServiceAccount struct {
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// LoadServiceAccount reads a JSON key file.
func LoadServiceAccount(path string) (ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServiceAccount{}, services.Wrap(services.ErrConfiguration, "credentials", "load key", path, err)
	}
	var account ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return ServiceAccount{}, services.Wrap(services.ErrConfiguration, "credentials", "decode key", path, err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return ServiceAccount{}, services.Wrap(services.ErrConfiguration, "credentials", "decode key", "client_email and private_key are required", nil)
	}
	return account, nil
}

// Option customises Provider construction.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client used for the token exchange.
func WithHTTPClient(client HTTPDoer) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithTokenURL overrides the token endpoint from the key file.
func WithTokenURL(tokenURL string) Option {
	return func(p *Provider) {
		if strings.TrimSpace(tokenURL) != "" {
			p.tokenURL = strings.TrimSpace(tokenURL)
		}
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// Provider signs RS256 assertions and caches the exchanged tokens per scope
// until shortly before they expire.
type Provider struct {
	account    ServiceAccount
	key        *rsa.PrivateKey
	tokenURL   string
	httpClient HTTPDoer
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cachedToken
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

type assertionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewProvider parses the account's private key and returns a Provider.
func NewProvider(account ServiceAccount, opts ...Option) (*Provider, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "credentials", "parse key", account.ClientEmail, err)
	}
	p := &Provider{
		account:    account,
		key:        key,
		tokenURL:   account.TokenURI,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
		cache:      make(map[string]cachedToken),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tokenURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "credentials", "init", "token url is required", nil)
	}
	return p, nil
}

// Token returns a cached token for scope or exchanges a fresh assertion.
func (p *Provider) Token(ctx context.Context, scope string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache[scope]; ok && cached.expiresAt.Sub(p.now()) > tokenRefreshLeeway {
		return cached.value, nil
	}

	assertion, err := p.signAssertion(scope)
	if err != nil {
		return "", err
	}
	resp, err := p.exchange(ctx, assertion)
	if err != nil {
		return "", err
	}
	p.cache[scope] = cachedToken{
		value:     resp.AccessToken,
		expiresAt: p.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	return resp.AccessToken, nil
}

func (p *Provider) signAssertion(scope string) (string, error) {
	issuedAt := p.now()
	claims := assertionClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.account.ClientEmail,
			Audience:  jwt.ClaimStrings{p.tokenURL},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(assertionLifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if p.account.PrivateKeyID != "" {
		token.Header["kid"] = p.account.PrivateKeyID
	}
	signed, err := token.SignedString(p.key)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "credentials", "sign assertion", "", err)
	}
	return signed, nil
}

func (p *Provider) exchange(ctx context.Context, assertion string) (tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return tokenResponse{}, services.Wrap(services.ErrTransient, "credentials", "exchange", "token endpoint unreachable", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode != http.StatusOK {
		marker := services.HTTPStatusMarker(resp.StatusCode)
		if resp.StatusCode == http.StatusBadRequest {
			// invalid_grant: the key was revoked or the clock is skewed
			marker = services.ErrUnauthorized
		}
		return tokenResponse{}, services.Wrap(marker, "credentials", "exchange",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return tokenResponse{}, services.Wrap(services.ErrMalformed, "credentials", "exchange", "decode token response", err)
	}
	if payload.AccessToken == "" {
		return tokenResponse{}, services.Wrap(services.ErrMalformed, "credentials", "exchange", "response has no access_token", nil)
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = int64(assertionLifetime / time.Second)
	}
	return payload, nil
}

// FromFile builds a Provider from a key file.
func FromFile(path, tokenURL string, opts ...Option) (TokenSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("credentials: service account file not configured")
	}
	account, err := LoadServiceAccount(path)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithTokenURL(tokenURL)}, opts...)
	provider, err := NewProvider(account, opts...)
	if err != nil {
		return nil, err
	}
	return provider, nil
}
