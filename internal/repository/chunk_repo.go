package repository

import (
	"context"
	"time"

	"github.com/miso-46/AI-minutes/internal/domain"
	"gorm.io/gorm"
)

// ChunkRepository handles transcript chunks and their embeddings.
type ChunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// InUnitOfWork runs fn inside one transaction. The repository handed to fn is
// bound to that transaction; returning an error rolls everything back.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fn: work to run against the transactional repository.
// Returns:
//   - error: fn's error, or the commit error.
func (r *ChunkRepository) InUnitOfWork(ctx context.Context, fn func(tx *ChunkRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ChunkRepository{db: tx})
	})
}

// CreateChunk inserts a chunk.
func (r *ChunkRepository) CreateChunk(ctx context.Context, chunk *domain.TranscriptChunk) error {
	return r.db.WithContext(ctx).Create(chunk).Error
}

// CreateEmbedding inserts the embedding of a chunk.
func (r *ChunkRepository) CreateEmbedding(ctx context.Context, emb *domain.VectorEmbedding) error {
	return r.db.WithContext(ctx).Create(emb).Error
}

// CountByTranscript returns the number of persisted chunks of a transcript.
func (r *ChunkRepository) CountByTranscript(ctx context.Context, transcriptID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.TranscriptChunk{}).
		Where("transcript_id = ?", transcriptID).
		Count(&n).Error
	return n, err
}

type chunkEmbeddingRow struct {
	ID           uint
	TranscriptID uint
	ChunkIndex   int
	Content      string
	CreatedAt    time.Time
	Embedding    string
}

func (r *ChunkRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("transcript_chunks").
		Select("transcript_chunks.id, transcript_chunks.transcript_id, transcript_chunks.chunk_index, " +
			"transcript_chunks.content, transcript_chunks.created_at, vector_embeddings.embedding").
		Joins("JOIN vector_embeddings ON vector_embeddings.chunk_id = transcript_chunks.id")
}

// ListWithEmbeddings returns every embedded chunk of a transcript in chunk
// order.
func (r *ChunkRepository) ListWithEmbeddings(ctx context.Context, transcriptID uint) ([]domain.ChunkWithEmbedding, error) {
	var rows []chunkEmbeddingRow
	err := r.joined(ctx).
		Where("transcript_chunks.transcript_id = ?", transcriptID).
		Order("transcript_chunks.chunk_index ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toChunkEmbeddings(rows), nil
}

// ListWithEmbeddingsByIDs returns the embedded chunks among ids that belong to
// the transcript, in chunk order.
func (r *ChunkRepository) ListWithEmbeddingsByIDs(ctx context.Context, transcriptID uint, ids []uint) ([]domain.ChunkWithEmbedding, error) {
	if len(ids) == 0 {
		return []domain.ChunkWithEmbedding{}, nil
	}
	var rows []chunkEmbeddingRow
	err := r.joined(ctx).
		Where("transcript_chunks.transcript_id = ? AND transcript_chunks.id IN ?", transcriptID, ids).
		Order("transcript_chunks.chunk_index ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toChunkEmbeddings(rows), nil
}

func toChunkEmbeddings(rows []chunkEmbeddingRow) []domain.ChunkWithEmbedding {
	out := make([]domain.ChunkWithEmbedding, len(rows))
	for i, row := range rows {
		out[i] = domain.ChunkWithEmbedding{
			Chunk: domain.TranscriptChunk{
				ID:           row.ID,
				TranscriptID: row.TranscriptID,
				ChunkIndex:   row.ChunkIndex,
				Content:      row.Content,
				CreatedAt:    row.CreatedAt,
			},
			Embedding: row.Embedding,
		}
	}
	return out
}
