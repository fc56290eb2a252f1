// Package auth verifies bearer tokens issued by the identity provider and
// exposes the caller's email as the owner of stored templates.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"cert-studio/studio-backend/pkg/apperr"
)

const ownerKey = "auth.owner"

// Claims carries the identity fields the studio uses.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// Verify parses token and returns its claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, fmt.Errorf("%w: token has no email claim", apperr.ErrUnauthorized)
	}
	return claims, nil
}

// Issue signs a token for email valid for ttl. Used by the CLI and tests.
func (v *Verifier) Issue(email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware rejects requests without a valid bearer token.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": apperr.CodeUnauthorized})
			return
		}

		claims, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": apperr.CodeUnauthorized})
			return
		}
		c.Set(ownerKey, strings.ToLower(strings.TrimSpace(claims.Email)))
		c.Next()
	}
}

var errNoOwner = errors.New("request is not authenticated")

// Owner returns the authenticated email set by Middleware.
func Owner(c *gin.Context) (string, error) {
	owner := c.GetString(ownerKey)
	if owner == "" {
		return "", fmt.Errorf("%w: %v", apperr.ErrUnauthorized, errNoOwner)
	}
	return owner, nil
}
