package auth

import "errors"

// Token validation errors
var (
	// ErrNoSecret is returned when a verifier or issuer is built without a signing secret
	ErrNoSecret = errors.New("auth: no token secret configured")

	// ErrNoToken is returned when the request carries no bearer token
	ErrNoToken = errors.New("auth: no bearer token")

	// ErrInvalidToken is returned when the token is malformed, expired or carries a bad signature
	ErrInvalidToken = errors.New("auth: invalid token")
)

// IsAuthError returns true if the error is a token validation error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNoToken) || errors.Is(err, ErrInvalidToken)
}
