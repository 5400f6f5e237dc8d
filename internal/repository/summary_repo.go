package repository

import (
	"context"

	"github.com/miso-46/AI-minutes/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryRepository handles transcript summaries.
type SummaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert stores the summary of a transcript, replacing any previous one.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - s: summary keyed by TranscriptID.
// Returns:
//   - error: non-nil if the write fails.
func (r *SummaryRepository) Upsert(ctx context.Context, s *domain.Summary) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transcript_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(s).Error
}

// GetByTranscriptID retrieves the summary of a transcript.
func (r *SummaryRepository) GetByTranscriptID(ctx context.Context, transcriptID uint) (*domain.Summary, error) {
	var s domain.Summary
	if err := r.db.WithContext(ctx).Where("transcript_id = ?", transcriptID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
