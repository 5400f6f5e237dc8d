package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v, err := NewJWTVerifier("s3cret", "minutes-auth", "minutes-api")
	require.NoError(t, err)

	tok, err := v.Sign("user-42", time.Hour)
	require.NoError(t, err)

	user, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-42"), user)
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewJWTVerifier("s3cret", "minutes-auth", "minutes-api")
	require.NoError(t, err)

	sign := func(secret string, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
		tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return tok
	}
	valid := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "minutes-auth",
			Audience:  jwt.ClaimStrings{"minutes-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := valid()
	wrongAudience.Audience = jwt.ClaimStrings{"other-api"}
	noSubject := valid()
	noSubject.Subject = " "
	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign("other", jwt.SigningMethodHS256, valid())},
		{"wrong method", sign("s3cret", jwt.SigningMethodHS512, valid())},
		{"expired", sign("s3cret", jwt.SigningMethodHS256, expired)},
		{"wrong issuer", sign("s3cret", jwt.SigningMethodHS256, wrongIssuer)},
		{"wrong audience", sign("s3cret", jwt.SigningMethodHS256, wrongAudience)},
		{"no subject", sign("s3cret", jwt.SigningMethodHS256, noSubject)},
		{"no expiry", sign("s3cret", jwt.SigningMethodHS256, noExpiry)},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = v.Verify("  ")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("", "", "")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("Bearer"))
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.True(t, UserFrom(ctx).IsZero())
	assert.Equal(t, domain.UserID("u"), UserFrom(WithUser(ctx, "u")))
}
