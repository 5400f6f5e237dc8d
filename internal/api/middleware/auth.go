package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/miso-46/AI-minutes/internal/auth"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/logger"
)

// TokenVerifier resolves a bearer token to the caller identity.
type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller identity in the request context.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user, err := verifier.Verify(auth.BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrMissingToken) {
				msg = "missing bearer token"
			}
			logger.CtxDebug(ctx, "Authentication failed: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		ctx = auth.WithUser(ctx, user)
		ctx = logger.SetUserID(ctx, user.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
