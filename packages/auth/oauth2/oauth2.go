// Package oauth2 fetches access tokens for the oauth2Grant auth scheme.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	Password          GrantType = "password"
)

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string // For password grant
	Password     string // For password grant
	GrantType    GrantType
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	Scope       string    `json:"scope,omitempty"`
	ExpiresAt   time.Time `json:"-"`
}

// IsExpired reports whether the token expires within the clock skew margin.
func (t *Token) IsExpired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(30 * time.Second).After(t.ExpiresAt)
}

// Provider acquires tokens for one Config, reusing cached ones until they
// expire.
type Provider struct {
	config     *Config
	httpClient *http.Client
	cache      *TokenCache
	now        func() time.Time
}

// NewProvider returns a provider that sends token requests through client
// and caches tokens in cache.
func NewProvider(config *Config, client *http.Client, cache *TokenCache) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cache == nil {
		cache = NewTokenCache()
	}
	return &Provider{config: config, httpClient: client, cache: cache, now: time.Now}
}

// Token returns a valid access token, fetching a new one if necessary
func (p *Provider) Token(ctx context.Context) (*Token, error) {
	key := p.cacheKey()
	if token := p.cache.Get(key); token != nil && !token.IsExpired(p.now()) {
		return token, nil
	}

	token, err := p.fetchToken(ctx)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, token)
	return token, nil
}

func (p *Provider) cacheKey() string {
	return strings.Join([]string{string(p.config.GrantType), p.config.TokenURL, p.config.ClientID,
		p.config.Username, strings.Join(p.config.Scopes, ",")}, "\x00")
}

func (p *Provider) fetchToken(ctx context.Context) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", string(p.config.GrantType))
	if p.config.GrantType == Password {
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if p.config.ClientID != "" {
		req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = p.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return &token, nil
}

// ParseParams reads auth parameters in one of two layouts:
//
//	client_credentials tokenUrl clientId clientSecret [scope1,scope2]
//	password tokenUrl clientId clientSecret username password [scope1,scope2]
func ParseParams(params []string) (*Config, error) {
	if len(params) < 4 {
		return nil, fmt.Errorf("oauth2 auth requires at least: grant_type tokenUrl clientId clientSecret")
	}

	config := &Config{
		GrantType:    GrantType(params[0]),
		TokenURL:     params[1],
		ClientID:     params[2],
		ClientSecret: params[3],
	}

	switch config.GrantType {
	case ClientCredentials:
		if len(params) > 4 {
			config.Scopes = strings.Split(params[4], ",")
		}
	case Password:
		if len(params) < 6 {
			return nil, fmt.Errorf("oauth2 password grant requires: tokenUrl clientId clientSecret username password [scopes]")
		}
		config.Username = params[4]
		config.Password = params[5]
		if len(params) > 6 {
			config.Scopes = strings.Split(params[6], ",")
		}
	default:
		return nil, fmt.Errorf("unsupported OAuth2 grant type: %s", config.GrantType)
	}

	return config, nil
}
