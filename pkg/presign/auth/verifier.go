package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth"
)

// Algorithm is the JWT signing algorithm shared by Verifier and Issuer.
const Algorithm = "HS256"

const bearerPrefix = "Bearer "

// Identity is the caller extracted from a verified token. It only lives for
// the duration of a request.
type Identity struct {
	Subject   string                 `json:"sub"`
	Username  string                 `json:"username,omitempty"`
	TokenID   string                 `json:"jti,omitempty"`
	IssuedAt  time.Time              `json:"iat,omitempty"`
	ExpiresAt time.Time              `json:"exp,omitempty"`
	Claims    map[string]interface{} `json:"claims,omitempty"`
}

// Verifier validates HS256 bearer tokens against a server-held secret.
// It performs no I/O and is safe for concurrent use.
type Verifier struct {
	ja *jwtauth.JWTAuth
}

// NewVerifier creates a Verifier for the given secret. An empty secret is an
// error; there is no fallback secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Verifier{ja: jwtauth.New(Algorithm, []byte(secret), nil)}, nil
}

// FromHeader extracts the raw token from an Authorization header value.
//
// Example:
//
//	token, err := auth.FromHeader("Bearer eyJhbGciOi...")
func FromHeader(header string) (string, error) {
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrNoToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Verify checks structure, signature and time claims of the token and returns
// the identity it carries.
func (v *Verifier) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	tok, err := jwtauth.VerifyToken(v.ja, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := &Identity{
		Subject:   tok.Subject(),
		TokenID:   tok.JwtID(),
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
		Claims:    tok.PrivateClaims(),
	}
	if name, ok := id.Claims["username"].(string); ok {
		id.Username = name
	}
	// Tokens minted by the login service carry the user id as "uid" only.
	if id.Subject == "" {
		if uid, ok := id.Claims["uid"]; ok && uid != nil {
			id.Subject = fmt.Sprint(uid)
		}
	}
	if id.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	return id, nil
}

// VerifyRequest reads the Authorization header of r and verifies it.
func (v *Verifier) VerifyRequest(r *http.Request) (*Identity, error) {
	token, err := FromHeader(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	return v.Verify(token)
}
