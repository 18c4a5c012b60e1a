package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator validates HMAC-signed JWTs against a shared secret. It
// implements ITokenValidator; an expired token is reported separately so
// the server can log it, though the client sees the same rejection either
// way.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator creates a validator for tokens signed with the given
// HS256 secret
func NewJWTValidator(secret []byte) *JWTValidator {
	return &JWTValidator{secret: secret}
}

// Validate implements ITokenValidator
func (v *JWTValidator) Validate(token string) TokenStatus {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (interface{}, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenExpired
		}
		return TokenInvalid
	}
	if !parsed.Valid {
		return TokenInvalid
	}
	return TokenValid
}
