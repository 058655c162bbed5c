// ABOUTME: JWT capability tokens for callers of the waypoint store
// ABOUTME: Uses HS256 signing with configurable secret; the caps claim lists granted tokens

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// capsClaim is the JWT claim carrying the capability list.
const capsClaim = "caps"

// Claims is the verified content of a capability token.
type Claims struct {
	Subject      string
	Capabilities Set
	ExpiresAt    time.Time
}

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the token and extracts the subject and capabilities
func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	out := &Claims{Subject: sub, Capabilities: NewSet()}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	// caps is optional; a token without it grants nothing gated.
	if raw, present := claims[capsClaim]; present {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a list", ErrInvalidToken, capsClaim)
		}
		tokens := make([]string, 0, len(list))
		for _, item := range list {
			tok, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s entry is not a string", ErrInvalidToken, capsClaim)
			}
			tokens = append(tokens, tok)
		}
		out.Capabilities = NewSet(tokens...)
	}

	return out, nil
}

// Generate creates a new JWT token for subject granting caps, with expiration
func (v *JWTVerifier) Generate(subject string, caps []string, expiresIn time.Duration) (string, error) {
	if caps == nil {
		caps = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     subject,
		"iat":     now.Unix(),
		"exp":     now.Add(expiresIn).Unix(),
		capsClaim: caps,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
