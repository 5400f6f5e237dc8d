package service

import (
	"context"
	"errors"
	"time"

	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/logger"
	"github.com/miso-46/AI-minutes/internal/repository"
	"github.com/miso-46/AI-minutes/internal/storage"
	"gorm.io/gorm"
)

// MinutesService serves the read side of minutes documents.
type MinutesService struct {
	minutesRepo    *repository.MinutesRepository
	transcriptRepo *repository.TranscriptRepository
	summaryRepo    *repository.SummaryRepository
	chatRepo       *repository.ChatRepository
	storage        storage.ObjectStorage
	urlTTL         time.Duration
}

// NewMinutesService creates a new minutes service.
func NewMinutesService(
	minutesRepo *repository.MinutesRepository,
	transcriptRepo *repository.TranscriptRepository,
	summaryRepo *repository.SummaryRepository,
	chatRepo *repository.ChatRepository,
	objectStorage storage.ObjectStorage,
	urlTTL time.Duration,
) *MinutesService {
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &MinutesService{
		minutesRepo:    minutesRepo,
		transcriptRepo: transcriptRepo,
		summaryRepo:    summaryRepo,
		chatRepo:       chatRepo,
		storage:        objectStorage,
		urlTTL:         urlTTL,
	}
}

// StatusResult is the polling view of a job.
type StatusResult struct {
	MinutesID    uint             `json:"minutes_id"`
	Status       domain.JobStatus `json:"status"`
	Progress     int              `json:"progress"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// ResultView is the outcome of a completed job.
type ResultView struct {
	MinutesID    uint   `json:"minutes_id"`
	Title        string `json:"title"`
	VideoURL     string `json:"video_url"`
	TranscriptID uint   `json:"transcript_id"`
	Transcript   string `json:"transcript"`
}

// ListItem is one row of the caller's minutes list.
type ListItem struct {
	MinutesID uint             `json:"minutes_id"`
	Title     string           `json:"title"`
	ImageURL  *string          `json:"image_url,omitempty"`
	Status    domain.JobStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// MessageView is a chat message as shown in the minutes detail.
type MessageView struct {
	MessageID uint        `json:"message_id"`
	Role      domain.Role `json:"role"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

// DetailView is everything known about one minutes document.
type DetailView struct {
	MinutesID    uint             `json:"minutes_id"`
	Title        string           `json:"title"`
	Status       domain.JobStatus `json:"status"`
	Progress     int              `json:"progress"`
	CreatedAt    time.Time        `json:"created_at"`
	VideoURL     *string          `json:"video_url,omitempty"`
	ImageURL     *string          `json:"image_url,omitempty"`
	TranscriptID *uint            `json:"transcript_id,omitempty"`
	Transcript   *string          `json:"transcript,omitempty"`
	IsEmbedded   bool             `json:"is_embedded"`
	Summary      *string          `json:"summary,omitempty"`
	SessionID    *uint            `json:"session_id,omitempty"`
	Messages     []MessageView    `json:"messages"`
}

// Status returns the state and progress of the job behind a minutes document.
func (s *MinutesService) Status(ctx context.Context, caller domain.UserID, minutesID uint) (*StatusResult, error) {
	m, err := ownedMinutes(ctx, s.minutesRepo, "minutes.Status", caller, minutesID)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		MinutesID:    m.ID,
		Status:       m.Video.Status,
		Progress:     m.Video.Progress,
		ErrorMessage: m.Video.ErrorMessage,
	}, nil
}

// Result returns the title, a time-limited video URL and the transcript of a
// completed job. Jobs in any other state are a conflict.
func (s *MinutesService) Result(ctx context.Context, caller domain.UserID, minutesID uint) (*ResultView, error) {
	const op = "minutes.Result"
	m, err := ownedMinutes(ctx, s.minutesRepo, op, caller, minutesID)
	if err != nil {
		return nil, err
	}
	if m.Video.Status != domain.JobStatusCompleted {
		return nil, apperr.New(apperr.KindConflict, op, "processing is not complete (status %s)", m.Video.Status)
	}

	t, err := s.transcriptRepo.GetByVideoID(ctx, m.Video.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindIntegrity, op, "completed job %d has no transcript", m.ID)
		}
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	url, err := s.storage.PresignGetURL(ctx, m.Video.StorageKey, s.urlTTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	return &ResultView{
		MinutesID:    m.ID,
		Title:        m.Title,
		VideoURL:     url,
		TranscriptID: t.ID,
		Transcript:   t.Content,
	}, nil
}

// List returns the caller's documents, newest first.
func (s *MinutesService) List(ctx context.Context, caller domain.UserID) ([]ListItem, error) {
	const op = "minutes.List"
	if caller.IsZero() {
		return nil, apperr.New(apperr.KindUnauthorized, op, "missing user identity")
	}
	list, err := s.minutesRepo.ListByUser(ctx, caller)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	items := make([]ListItem, 0, len(list))
	for _, m := range list {
		item := ListItem{MinutesID: m.ID, Title: m.Title, CreatedAt: m.CreatedAt}
		if m.Video != nil {
			item.Status = m.Video.Status
			item.ImageURL = s.signOptional(ctx, m.Video.ImageKey)
		}
		items = append(items, item)
	}
	return items, nil
}

// Detail returns the full view of one document. Parts that do not exist yet
// (transcript, summary, chat) are omitted.
func (s *MinutesService) Detail(ctx context.Context, caller domain.UserID, minutesID uint) (*DetailView, error) {
	const op = "minutes.Detail"
	m, err := ownedMinutes(ctx, s.minutesRepo, op, caller, minutesID)
	if err != nil {
		return nil, err
	}

	view := &DetailView{
		MinutesID: m.ID,
		Title:     m.Title,
		Status:    m.Video.Status,
		Progress:  m.Video.Progress,
		CreatedAt: m.CreatedAt,
		VideoURL:  s.signOptional(ctx, m.Video.StorageKey),
		ImageURL:  s.signOptional(ctx, m.Video.ImageKey),
		Messages:  []MessageView{},
	}

	t, err := s.transcriptRepo.GetByVideoID(ctx, m.Video.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	view.TranscriptID = &t.ID
	view.Transcript = &t.Content
	view.IsEmbedded = t.IsEmbedded

	if sum, err := s.summaryRepo.GetByTranscriptID(ctx, t.ID); err == nil {
		view.Summary = &sum.Content
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	session, err := s.chatRepo.FindSession(ctx, m.ID, t.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	view.SessionID = &session.ID

	msgs, err := s.chatRepo.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	for _, msg := range msgs {
		view.Messages = append(view.Messages, MessageView{
			MessageID: msg.ID,
			Role:      msg.Role,
			Message:   msg.Message,
			CreatedAt: msg.CreatedAt,
		})
	}
	return view, nil
}

// signOptional presigns key, returning nil for an empty key or a signing
// failure. It backs optional display fields only.
func (s *MinutesService) signOptional(ctx context.Context, key string) *string {
	if key == "" {
		return nil
	}
	url, err := s.storage.PresignGetURL(ctx, key, s.urlTTL)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to sign URL for %s: %v", key, err)
		return nil
	}
	return &url
}
