package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Token scopes. A session token carries identity-provider claims and sees
// full participant data; a public token only proves the caller talked to the
// token endpoint and receives masked rosters.
const (
	ScopePublic  = "public"
	ScopeSession = "session"
)

type Claims struct {
	ProviderID string `json:"provider_id,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	OrgName    string `json:"org_name,omitempty"`
	Email      string `json:"email,omitempty"`
	UserID     string `json:"user_id"`
	Scope      string `json:"scope"`
	jwt.RegisteredClaims
}

// Privileged reports whether the token may see unmasked participant data.
func (c *Claims) Privileged() bool {
	return c.Scope == ScopeSession
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Issue signs a token for the given claims with the given lifetime.
func (v *Verifier) Issue(c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(v.secret)
}

// Verify parses and validates a signed token string.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FromHeader extracts and verifies the token of an Authorization header.
// Returns ErrNoToken when the header is absent or not a bearer scheme.
func (v *Verifier) FromHeader(header string) (*Claims, error) {
	if header == "" {
		return nil, ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrNoToken
	}
	return v.Verify(strings.TrimSpace(parts[1]))
}
