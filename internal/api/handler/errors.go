package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/auth"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/logger"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindIntegrity:
		return http.StatusConflict
	case apperr.KindTranscoding, apperr.KindTranscription, apperr.KindEmbedding, apperr.KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error", "kind"}. Internal details are not
// echoed for 5xx responses.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "Request error: %v", err)
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind})
}

// caller returns the identity stored by the auth middleware.
func caller(c *gin.Context) domain.UserID {
	return auth.UserFrom(c.Request.Context())
}

func badRequest(c *gin.Context, op, msg string) {
	respondError(c, apperr.Validation(op, "%s", msg))
}
