package repository

import (
	"context"
	"errors"

	"github.com/miso-46/AI-minutes/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository handles chat sessions, messages and their references.
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// EnsureSession returns the session of (minutesID, transcriptID), creating it
// if needed. Concurrent callers converge on the same row through the unique
// index.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - minutesID: owning minutes document.
//   - transcriptID: transcript the session chats about.
// Returns:
//   - *domain.ChatSession: the existing or newly created session.
//   - error: non-nil if the lookup or insert fails.
func (r *ChatRepository) EnsureSession(ctx context.Context, minutesID, transcriptID uint) (*domain.ChatSession, error) {
	if s, err := r.FindSession(ctx, minutesID, transcriptID); err == nil {
		return s, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	session := &domain.ChatSession{MinutesID: minutesID, TranscriptID: transcriptID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(session).Error
	if err != nil {
		return nil, err
	}
	// A lost race inserts nothing; read back the winner's row.
	return r.FindSession(ctx, minutesID, transcriptID)
}

// FindSession looks up the session of (minutesID, transcriptID).
func (r *ChatRepository) FindSession(ctx context.Context, minutesID, transcriptID uint) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := r.db.WithContext(ctx).
		Where("minutes_id = ? AND transcript_id = ?", minutesID, transcriptID).
		Take(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession retrieves a session by ID.
func (r *ChatRepository) GetSession(ctx context.Context, id uint) (*domain.ChatSession, error) {
	var s domain.ChatSession
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateMessage appends a message to a session.
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// GetMessage retrieves a message by ID.
func (r *ChatRepository) GetMessage(ctx context.Context, id uint) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns the messages of a session in conversation order.
func (r *ChatRepository) ListMessages(ctx context.Context, sessionID uint) ([]domain.ChatMessage, error) {
	var msgs []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

// CreateReferences stores the chunks that grounded an assistant message.
func (r *ChatRepository) CreateReferences(ctx context.Context, refs []domain.Reference) error {
	if len(refs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&refs).Error
}

// ReferencedChunk is a reference joined with the chunk it points at.
type ReferencedChunk struct {
	ChunkID uint
	Content string
	Rank    int
}

// ListReferences returns the chunks referenced by a message, rank 1 first.
func (r *ChatRepository) ListReferences(ctx context.Context, messageID uint) ([]ReferencedChunk, error) {
	var out []ReferencedChunk
	err := r.db.WithContext(ctx).
		Table("chat_references").
		Select("transcript_chunks.id AS chunk_id, transcript_chunks.content AS content, chat_references.rank AS rank").
		Joins("JOIN transcript_chunks ON transcript_chunks.id = chat_references.transcript_chunk_id").
		Where("chat_references.chat_message_id = ?", messageID).
		Order("chat_references.rank ASC").
		Scan(&out).Error
	return out, err
}
