// Package auth signs and verifies dashboard session tokens.
// A token only carries the session id and display claims; the session row
// stays authoritative, so logout takes effect immediately.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/DromeProduto/DromeBoard/domain/auth"
	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, forged or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

const issuer = "dromeboard"

// Claims are the JWT claims of a session token.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 session tokens.
// Safe for concurrent use.
type TokenService struct {
	secret []byte
	clock  ports.Clock
}

// NewTokenService creates a token service.
// If secret is empty, a random 32-byte secret is generated and tokens do not
// survive a restart.
func NewTokenService(secret string, clock ports.Clock) *TokenService {
	var secretBytes []byte
	if secret == "" {
		secretBytes = make([]byte, 32)
		rand.Read(secretBytes)
	} else {
		secretBytes = []byte(secret)
	}
	return &TokenService{secret: secretBytes, clock: clock}
}

// Issue signs a token for sess. The token expires with the session.
func (s *TokenService) Issue(sess auth.Session, role string) (string, error) {
	claims := Claims{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Email:     sess.Email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies a token and returns its claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateSecret generates a random secret suitable for JWT signing.
func GenerateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Verify implements ports.TokenService.
func (s *TokenService) Verify(tokenString string) (ports.TokenClaims, error) {
	c, err := s.Validate(tokenString)
	if err != nil {
		return ports.TokenClaims{}, err
	}
	out := ports.TokenClaims{SessionID: c.SessionID, UserID: c.UserID, Email: c.Email, Role: c.Role}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

var _ ports.TokenService = (*TokenService)(nil)
