package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MinutesHandler handles the minutes list and detail endpoints.
type MinutesHandler struct {
	minutes MinutesReader
}

// NewMinutesHandler creates a new minutes handler.
func NewMinutesHandler(minutes MinutesReader) *MinutesHandler {
	return &MinutesHandler{minutes: minutes}
}

// List handles GET /api/v1/minutes.
func (h *MinutesHandler) List(c *gin.Context) {
	items, err := h.minutes.List(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"minutes": items})
}

// Detail handles GET /api/v1/minutes/:id.
func (h *MinutesHandler) Detail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.minutes.Detail(c.Request.Context(), caller(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
