package oauth2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	cfg, err := ParseParams([]string{"client_credentials", "https://auth.example.com/token", "id", "secret", "a,b"})
	require.NoError(t, err)
	assert.Equal(t, ClientCredentials, cfg.GrantType)
	assert.Equal(t, []string{"a", "b"}, cfg.Scopes)

	cfg, err = ParseParams([]string{"password", "https://auth.example.com/token", "id", "secret", "alice", "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "pw", cfg.Password)
	assert.Empty(t, cfg.Scopes)

	for _, params := range [][]string{
		{"client_credentials", "url", "id"},
		{"password", "url", "id", "secret", "alice"},
		{"implicit", "url", "id", "secret"},
	} {
		_, err := ParseParams(params)
		assert.Error(t, err, params)
	}
}

func TestProviderCachesUntilExpiry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "alice", r.PostForm.Get("username"))
		_, _ = w.Write([]byte(`{"access_token": "tok", "expires_in": 60}`))
	}))
	defer server.Close()

	cfg := &Config{GrantType: Password, TokenURL: server.URL, ClientID: "id", ClientSecret: "s", Username: "alice", Password: "pw"}
	cache := NewTokenCache()
	p := NewProvider(cfg, server.Client(), cache)
	now := time.Now()
	p.now = func() time.Time { return now }

	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, cache.Len())

	// within the skew margin of expiry
	now = now.Add(45 * time.Second)
	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			_, _ = w.Write([]byte(`{"token_type": "bearer"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}
	}))
	defer server.Close()

	_, err := NewProvider(&Config{GrantType: ClientCredentials, TokenURL: server.URL + "/empty"}, nil, nil).Token(context.Background())
	assert.ErrorContains(t, err, "no access_token")

	_, err = NewProvider(&Config{GrantType: ClientCredentials, TokenURL: server.URL + "/fail"}, nil, nil).Token(context.Background())
	assert.ErrorContains(t, err, "status 500")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewProvider(&Config{GrantType: ClientCredentials, TokenURL: server.URL}, nil, nil).Token(ctx)
	assert.Error(t, err)
}

func TestTokenIsExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Token{}).IsExpired(now))
	assert.False(t, (&Token{ExpiresAt: now.Add(time.Minute)}).IsExpired(now))
	assert.True(t, (&Token{ExpiresAt: now.Add(10 * time.Second)}).IsExpired(now))
}
