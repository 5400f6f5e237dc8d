package repository

import (
	"context"

	"github.com/miso-46/AI-minutes/internal/domain"
	"gorm.io/gorm"
)

// TranscriptRepository handles transcripts and summaries.
type TranscriptRepository struct {
	db *gorm.DB
}

// NewTranscriptRepository creates a new TranscriptRepository.
func NewTranscriptRepository(db *gorm.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Create inserts a transcript.
func (r *TranscriptRepository) Create(ctx context.Context, t *domain.Transcript) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// GetByID retrieves a transcript by ID.
func (r *TranscriptRepository) GetByID(ctx context.Context, id uint) (*domain.Transcript, error) {
	var t domain.Transcript
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByVideoID retrieves the transcript of a job.
func (r *TranscriptRepository) GetByVideoID(ctx context.Context, videoID uint) (*domain.Transcript, error) {
	var t domain.Transcript
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkEmbedded flags the transcript once every chunk has an embedding.
func (r *TranscriptRepository) MarkEmbedded(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&domain.Transcript{}).
		Where("id = ?", id).
		Update("is_embedded", true).Error
}

// MarkSummarized flags the transcript once a summary exists.
func (r *TranscriptRepository) MarkSummarized(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&domain.Transcript{}).
		Where("id = ?", id).
		Update("is_summarized", true).Error
}
