// Package auth resolves the caller identity from bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/miso-46/AI-minutes/internal/domain"
)

var (
	// ErrMissingToken is returned when the request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the token claims the API relies on. Subject is the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 tokens issued for this API.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
}

// NewJWTVerifier creates a verifier. Empty issuer or audience disables that
// check.
func NewJWTVerifier(secret, issuer, audience string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// Verify parses token and returns the identity in its subject.
func (v *JWTVerifier) Verify(token string) (domain.UserID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user := domain.UserID(strings.TrimSpace(claims.Subject))
	if user.IsZero() {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return user, nil
}

// Sign issues a token for user valid for ttl.
func (v *JWTVerifier) Sign(user domain.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

type userKey struct{}

// WithUser stores the authenticated caller in ctx.
func WithUser(ctx context.Context, user domain.UserID) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the caller stored by WithUser, or the zero UserID.
func UserFrom(ctx context.Context) domain.UserID {
	if u, ok := ctx.Value(userKey{}).(domain.UserID); ok {
		return u
	}
	return ""
}
