package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueFunc fetches a fresh signed token, typically over HTTP.
type IssueFunc func(ctx context.Context) (string, error)

// Cache keeps one bearer token and refreshes it on expiry. The expiry is read
// from the token's own exp claim rather than a fixed TTL. A session issuer is
// preferred when configured; the public issuer is the fallback. A cached token
// missing the expected claims is treated as refreshable even when its exp has
// not passed.
type Cache struct {
	mu      sync.Mutex
	session IssueFunc
	public  IssueFunc

	token   string
	expires time.Time
	scope   string
}

func NewCache(session, public IssueFunc) *Cache {
	return &Cache{session: session, public: public}
}

// Token returns a cached token, refreshing when expired or when the cached
// token never carried a scope claim.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.scope != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}
	return c.refreshLocked(ctx)
}

// Invalidate drops the cached token so the next Token call refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Cache) refreshLocked(ctx context.Context) (string, error) {
	var lastErr error
	for _, issue := range []IssueFunc{c.session, c.public} {
		if issue == nil {
			continue
		}
		token, err := issue(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		exp, scope, err := inspect(token)
		if err != nil {
			lastErr = err
			continue
		}
		c.token = token
		c.expires = exp
		c.scope = scope
		return token, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no token issuer configured")
	}
	return "", lastErr
}

// inspect reads exp and scope from the token without verifying the signature;
// the cache is a client-side collaborator and does not hold the signing key.
func inspect(tokenString string) (time.Time, string, error) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return time.Time{}, "", err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, "", errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, claims.Scope, nil
}
