package oauth2

import (
	"sync"
)

// TokenCache provides thread-safe caching for OAuth2 tokens
type TokenCache struct {
	tokens map[string]*Token
	mutex  sync.RWMutex
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]*Token),
	}
}

func (c *TokenCache) Get(key string) *Token {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.tokens[key]
}

func (c *TokenCache) Set(key string, token *Token) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tokens[key] = token
}

func (c *TokenCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.tokens)
}
