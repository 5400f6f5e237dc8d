package domain

import "time"

// JobStatus is the pipeline state of an uploaded video.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether s may move to next. Statuses only move
// forward; failed is reachable from any non-terminal status.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case JobStatusFailed:
		return true
	case JobStatusProcessing:
		return s == JobStatusQueued
	case JobStatusCompleted:
		return s == JobStatusProcessing
	default:
		return false
	}
}

// Progress checkpoints written by the pipeline.
const (
	ProgressStart       = 0
	ProgressUploaded    = 20
	ProgressTranscribed = 80
	ProgressChunked     = 90
	ProgressEmbedded    = 95
	ProgressCompleted   = 100
)

// Minutes is the meeting-minutes document owned by a user. One Minutes has
// exactly one Video.
type Minutes struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    UserID    `gorm:"type:text;not null;index" json:"user_id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Video *Video `gorm:"foreignKey:MinutesID" json:"video,omitempty"`
}

// TableName returns the database table name for Minutes.
func (Minutes) TableName() string {
	return "minutes"
}

// Video is the processing job for an uploaded recording.
type Video struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	MinutesID    uint      `gorm:"not null;uniqueIndex" json:"minutes_id"`
	StorageKey   string    `gorm:"type:text" json:"-"`
	VideoURL     *string   `gorm:"type:text" json:"video_url,omitempty"`
	ImageKey     string    `gorm:"type:text" json:"-"`
	ImageWidth   int       `gorm:"default:0" json:"image_width,omitempty"`
	ImageHeight  int       `gorm:"default:0" json:"image_height,omitempty"`
	Status       JobStatus `gorm:"type:text;not null;default:queued;index" json:"status"`
	Progress     int       `gorm:"not null;default:0" json:"progress"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Video.
func (Video) TableName() string {
	return "videos"
}
