package repository

import (
	"context"
	"errors"

	"github.com/miso-46/AI-minutes/internal/domain"
	"gorm.io/gorm"
)

// ErrStaleTransition is returned when a status update matched no row because
// the job had already moved on.
var ErrStaleTransition = errors.New("job status transition rejected")

// MinutesRepository handles minutes documents and their processing jobs.
type MinutesRepository struct {
	db *gorm.DB
}

// NewMinutesRepository creates a new MinutesRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *MinutesRepository: repository instance bound to db.
func NewMinutesRepository(db *gorm.DB) *MinutesRepository {
	return &MinutesRepository{db: db}
}

// CreateWithVideo inserts a minutes document and its queued job atomically.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - minutes: document to persist; its ID is set on success.
// Returns:
//   - *domain.Video: the created job in status queued with progress 0.
//   - error: non-nil if either insert fails.
func (r *MinutesRepository) CreateWithVideo(ctx context.Context, minutes *domain.Minutes) (*domain.Video, error) {
	video := &domain.Video{
		Status:   domain.JobStatusQueued,
		Progress: domain.ProgressStart,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Video").Create(minutes).Error; err != nil {
			return err
		}
		video.MinutesID = minutes.ID
		return tx.Create(video).Error
	})
	if err != nil {
		return nil, err
	}
	minutes.Video = video
	return video, nil
}

// GetByID retrieves a non-deleted minutes document with its job.
func (r *MinutesRepository) GetByID(ctx context.Context, id uint) (*domain.Minutes, error) {
	var m domain.Minutes
	err := r.db.WithContext(ctx).
		Preload("Video").
		Where("is_deleted = ?", false).
		First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByUser returns the caller's documents, newest first.
func (r *MinutesRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Minutes, error) {
	var list []domain.Minutes
	err := r.db.WithContext(ctx).
		Preload("Video").
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error
	return list, err
}

// GetVideo retrieves the job of a minutes document.
func (r *MinutesRepository) GetVideo(ctx context.Context, minutesID uint) (*domain.Video, error) {
	var v domain.Video
	if err := r.db.WithContext(ctx).Where("minutes_id = ?", minutesID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVideoByID retrieves a job by its own ID.
func (r *MinutesRepository) GetVideoByID(ctx context.Context, videoID uint) (*domain.Video, error) {
	var v domain.Video
	if err := r.db.WithContext(ctx).First(&v, videoID).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkProcessing moves a queued job to processing and resets its progress.
func (r *MinutesRepository) MarkProcessing(ctx context.Context, minutesID uint) error {
	return r.transition(ctx, minutesID, domain.JobStatusProcessing,
		map[string]interface{}{
			"progress": domain.ProgressStart,
		})
}

// MarkCompleted finishes a processing job at progress 100.
func (r *MinutesRepository) MarkCompleted(ctx context.Context, minutesID uint) error {
	return r.transition(ctx, minutesID, domain.JobStatusCompleted,
		map[string]interface{}{
			"progress": domain.ProgressCompleted,
		})
}

// MarkFailed moves a non-terminal job to failed. Progress is left as it was
// at the failing stage.
func (r *MinutesRepository) MarkFailed(ctx context.Context, minutesID uint, reason string) error {
	return r.transition(ctx, minutesID, domain.JobStatusFailed,
		map[string]interface{}{
			"error_message": reason,
		})
}

// transitionSources lists the statuses allowed to move to next.
func transitionSources(next domain.JobStatus) []domain.JobStatus {
	var from []domain.JobStatus
	for _, s := range jobStatuses {
		if s.CanTransition(next) {
			from = append(from, s)
		}
	}
	return from
}

var jobStatuses = []domain.JobStatus{
	domain.JobStatusQueued,
	domain.JobStatusProcessing,
	domain.JobStatusCompleted,
	domain.JobStatusFailed,
}

// transition moves the job to next if its stored status may move there.
// ErrStaleTransition means no row matched.
func (r *MinutesRepository) transition(ctx context.Context, minutesID uint, next domain.JobStatus, updates map[string]interface{}) error {
	updates["status"] = next
	res := r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("minutes_id = ? AND status IN ?", minutesID, transitionSources(next)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// UpdateProgress raises the progress of a processing job. Lower values and
// terminal jobs are left untouched, so readers never observe a decrease.
// Returns:
//   - bool: true if the row was updated.
//   - error: non-nil if the update fails.
func (r *MinutesRepository) UpdateProgress(ctx context.Context, minutesID uint, progress int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("minutes_id = ? AND status = ? AND progress <= ?", minutesID, domain.JobStatusProcessing, progress).
		Update("progress", progress)
	return res.RowsAffected > 0, res.Error
}

// SetVideoLocation records where the source video was stored.
func (r *MinutesRepository) SetVideoLocation(ctx context.Context, minutesID uint, key, url string) error {
	return r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("minutes_id = ?", minutesID).
		Updates(map[string]interface{}{"storage_key": key, "video_url": url}).Error
}

// SetThumbnail records the stored thumbnail and its dimensions.
func (r *MinutesRepository) SetThumbnail(ctx context.Context, minutesID uint, key string, width, height int) error {
	return r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("minutes_id = ?", minutesID).
		Updates(map[string]interface{}{"image_key": key, "image_width": width, "image_height": height}).Error
}
