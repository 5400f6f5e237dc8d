package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/miso-46/AI-minutes/internal/domain"
)

// Summarizer generates transcript summaries.
type Summarizer interface {
	Generate(ctx context.Context, caller domain.UserID, transcriptID uint) (string, error)
}

// SummaryHandler handles summary generation.
type SummaryHandler struct {
	summary Summarizer
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(summary Summarizer) *SummaryHandler {
	return &SummaryHandler{summary: summary}
}

// SummaryRequest is the body of POST /summaries.
type SummaryRequest struct {
	TranscriptID uint `json:"transcript_id" binding:"required"`
}

// Generate handles POST /api/v1/summaries. Regenerating replaces the stored
// summary.
func (h *SummaryHandler) Generate(c *gin.Context) {
	var req SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "handler.Summary", "transcript_id is required")
		return
	}
	content, err := h.summary.Generate(c.Request.Context(), caller(c), req.TranscriptID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript_id": req.TranscriptID, "summary": content})
}
