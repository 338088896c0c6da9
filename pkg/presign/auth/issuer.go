package auth

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

// DefaultTokenTTL matches the lifetime of tokens handed out by the login service.
const DefaultTokenTTL = time.Hour

// Issuer mints tokens that a Verifier with the same secret accepts. It is used
// by operator tooling and tests; the gateway itself never issues tokens.
type Issuer struct {
	ja  *jwtauth.JWTAuth
	now func() time.Time
}

// NewIssuer creates an Issuer for the given secret.
func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Issuer{
		ja:  jwtauth.New(Algorithm, []byte(secret), nil),
		now: time.Now,
	}, nil
}

// Issue signs a token for the identity, valid for ttl (DefaultTokenTTL when zero).
// A negative ttl yields an already expired token.
func (i *Issuer) Issue(id Identity, ttl time.Duration) (string, error) {
	if id.Subject == "" {
		return "", errors.New("auth: subject is required")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}

	claims := map[string]interface{}{}
	for k, v := range id.Claims {
		claims[k] = v
	}
	claims["sub"] = id.Subject
	claims["uid"] = id.Subject
	if id.Username != "" {
		claims["username"] = id.Username
	}
	jti := id.TokenID
	if jti == "" {
		jti = uuid.NewString()
	}
	claims["jti"] = jti

	now := i.now()
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, now.Add(ttl))

	_, token, err := i.ja.Encode(claims)
	if err != nil {
		return "", err
	}
	return token, nil
}
