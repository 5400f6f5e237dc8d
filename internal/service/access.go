package service

import (
	"context"
	"errors"

	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/logger"
	"github.com/miso-46/AI-minutes/internal/repository"
	"gorm.io/gorm"
)

// authorizeOwner is the one ownership check shared by every read and chat
// operation. A missing caller is unauthorized; a different owner is
// forbidden, which callers keep distinct from not found.
func authorizeOwner(ctx context.Context, op string, caller, owner domain.UserID) error {
	if caller.IsZero() {
		return apperr.New(apperr.KindUnauthorized, op, "missing user identity")
	}
	if !caller.Equal(owner) {
		logger.CtxWarn(ctx, "Access denied: op=%s, caller=%s", op, caller)
		return apperr.Forbidden(op)
	}
	return nil
}

// notFoundOr maps gorm's not-found to apperr NotFound and anything else to
// Internal.
func notFoundOr(op, resource string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, resource)
	}
	return apperr.Wrap(apperr.KindInternal, op, err)
}

// ownedMinutes loads a minutes document and checks the caller owns it.
func ownedMinutes(ctx context.Context, repo *repository.MinutesRepository, op string, caller domain.UserID, minutesID uint) (*domain.Minutes, error) {
	if caller.IsZero() {
		return nil, apperr.New(apperr.KindUnauthorized, op, "missing user identity")
	}
	m, err := repo.GetByID(ctx, minutesID)
	if err != nil {
		return nil, notFoundOr(op, "minutes", err)
	}
	if err := authorizeOwner(ctx, op, caller, m.UserID); err != nil {
		return nil, err
	}
	if m.Video == nil {
		return nil, apperr.NotFound(op, "video")
	}
	return m, nil
}

// ownedTranscript resolves transcript → video → minutes and checks the caller
// owns the minutes.
func ownedTranscript(ctx context.Context, minutesRepo *repository.MinutesRepository, transcriptRepo *repository.TranscriptRepository, op string, caller domain.UserID, transcriptID uint) (*domain.Transcript, *domain.Minutes, error) {
	if caller.IsZero() {
		return nil, nil, apperr.New(apperr.KindUnauthorized, op, "missing user identity")
	}
	t, err := transcriptRepo.GetByID(ctx, transcriptID)
	if err != nil {
		return nil, nil, notFoundOr(op, "transcript", err)
	}
	video, err := minutesRepo.GetVideoByID(ctx, t.VideoID)
	if err != nil {
		return nil, nil, notFoundOr(op, "video", err)
	}
	m, err := ownedMinutes(ctx, minutesRepo, op, caller, video.MinutesID)
	if err != nil {
		return nil, nil, err
	}
	return t, m, nil
}
