package domain

import "time"

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatSession is the single conversation attached to a (minutes, transcript)
// pair.
type ChatSession struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	MinutesID    uint      `gorm:"not null;uniqueIndex:idx_session_scope" json:"minutes_id"`
	TranscriptID uint      `gorm:"not null;uniqueIndex:idx_session_scope" json:"transcript_id"`
	StartedAt    time.Time `gorm:"autoCreateTime" json:"started_at"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage is one turn in a session.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"not null;index" json:"session_id"`
	Role      Role      `gorm:"type:text;not null" json:"role"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// Reference links an assistant message to a chunk that grounded it.
// Rank 1 is the most relevant chunk.
type Reference struct {
	ID                uint `gorm:"primaryKey" json:"id"`
	ChatMessageID     uint `gorm:"not null;index" json:"chat_message_id"`
	TranscriptChunkID uint `gorm:"not null" json:"transcript_chunk_id"`
	Rank              int  `gorm:"not null" json:"rank"`
}

// TableName returns the database table name for Reference.
func (Reference) TableName() string {
	return "chat_references"
}
