package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/service"
)

// VideoSubmitter queues uploaded recordings.
type VideoSubmitter interface {
	Submit(ctx context.Context, owner domain.UserID, filename string, r io.Reader) (*service.SubmitResult, error)
}

// MinutesReader serves the read side of minutes documents.
type MinutesReader interface {
	Status(ctx context.Context, caller domain.UserID, minutesID uint) (*service.StatusResult, error)
	Result(ctx context.Context, caller domain.UserID, minutesID uint) (*service.ResultView, error)
	List(ctx context.Context, caller domain.UserID) ([]service.ListItem, error)
	Detail(ctx context.Context, caller domain.UserID, minutesID uint) (*service.DetailView, error)
}

// VideoHandler handles upload and job polling endpoints.
type VideoHandler struct {
	pipeline       VideoSubmitter
	minutes        MinutesReader
	maxUploadBytes int64
}

// NewVideoHandler creates a new video handler. maxUploadBytes <= 0 leaves the
// upload size unbounded.
func NewVideoHandler(pipeline VideoSubmitter, minutes MinutesReader, maxUploadBytes int64) *VideoHandler {
	return &VideoHandler{
		pipeline:       pipeline,
		minutes:        minutes,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /api/v1/videos.
// Parameters:
//   - c: Gin request context with a multipart "file" field.
// Returns: none (writes 202 with minutes_id and status).
func (h *VideoHandler) Upload(c *gin.Context) {
	const op = "handler.Upload"
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
			return
		}
		badRequest(c, op, "multipart field \"file\" is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		badRequest(c, op, "unreadable upload")
		return
	}
	defer f.Close()

	res, err := h.pipeline.Submit(c.Request.Context(), caller(c), fh.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// Status handles GET /api/v1/videos/:id/status.
func (h *VideoHandler) Status(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.minutes.Status(c.Request.Context(), caller(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Result handles GET /api/v1/videos/:id/result.
func (h *VideoHandler) Result(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.minutes.Result(c.Request.Context(), caller(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// pathID parses a positive numeric path parameter, answering 400 otherwise.
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "handler.pathID", "invalid "+name+": "+raw)
		return 0, false
	}
	return uint(id), true
}
