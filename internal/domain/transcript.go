package domain

import "time"

// Transcript is the full text recognized from a video.
type Transcript struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	VideoID      uint      `gorm:"not null;uniqueIndex" json:"video_id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	IsEmbedded   bool      `gorm:"default:false" json:"is_embedded"`
	IsSummarized bool      `gorm:"default:false" json:"is_summarized"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for Transcript.
func (Transcript) TableName() string {
	return "transcripts"
}

// TranscriptChunk is one retrieval unit of a transcript. ChunkIndex is
// contiguous from 0 within a transcript.
type TranscriptChunk struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TranscriptID uint      `gorm:"not null;uniqueIndex:idx_chunk_position" json:"transcript_id"`
	ChunkIndex   int       `gorm:"not null;uniqueIndex:idx_chunk_position" json:"chunk_index"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for TranscriptChunk.
func (TranscriptChunk) TableName() string {
	return "transcript_chunks"
}

// VectorEmbedding stores the serialized embedding of exactly one chunk.
type VectorEmbedding struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChunkID   uint      `gorm:"not null;uniqueIndex" json:"chunk_id"`
	Embedding string    `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for VectorEmbedding.
func (VectorEmbedding) TableName() string {
	return "vector_embeddings"
}

// ChunkWithEmbedding pairs a chunk with its stored embedding for retrieval.
type ChunkWithEmbedding struct {
	Chunk     TranscriptChunk
	Embedding string
}

// Summary is the generated summary of a transcript. Regenerating overwrites it.
type Summary struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TranscriptID uint      `gorm:"not null;uniqueIndex" json:"transcript_id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Summary.
func (Summary) TableName() string {
	return "summaries"
}
