package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/logger"
	"github.com/miso-46/AI-minutes/internal/metrics"
	"github.com/miso-46/AI-minutes/internal/prompts"
	"github.com/miso-46/AI-minutes/internal/repository"
	"github.com/miso-46/AI-minutes/internal/retrieval"
	"gorm.io/gorm"
)

// Candidate sources for chat retrieval.
const (
	CandidateSourceDatabase = "database"
	CandidateSourceQdrant   = "qdrant"
)

// ChatService answers questions about a transcript from its most similar
// chunks.
type ChatService struct {
	minutesRepo    *repository.MinutesRepository
	transcriptRepo *repository.TranscriptRepository
	chunkRepo      *repository.ChunkRepository
	chatRepo       *repository.ChatRepository
	embedder       Embedder
	completer      Completer
	index          ChunkIndex
	cfg            ChatConfig
}

// ChatConfig holds retrieval and generation settings.
type ChatConfig struct {
	Threshold       float64
	MaxResults      int
	CandidateSource string
	CandidateLimit  int
	Temperature     float64
	MaxTokens       int
}

// DefaultChatConfig returns threshold 0.65, five references and the
// generation settings used for answers.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Threshold:       retrieval.DefaultThreshold,
		MaxResults:      retrieval.DefaultMaxResults,
		CandidateSource: CandidateSourceDatabase,
		CandidateLimit:  50,
		Temperature:     0.3,
		MaxTokens:       800,
	}
}

// ChatDeps groups the collaborators of ChatService.
type ChatDeps struct {
	MinutesRepo    *repository.MinutesRepository
	TranscriptRepo *repository.TranscriptRepository
	ChunkRepo      *repository.ChunkRepository
	ChatRepo       *repository.ChatRepository
	Embedder       Embedder
	Completer      Completer
	// Index is required only when CandidateSource is qdrant.
	Index ChunkIndex
}

// NewChatService creates a new chat service.
func NewChatService(deps ChatDeps, cfg ChatConfig) *ChatService {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = retrieval.DefaultMaxResults
	}
	if cfg.CandidateSource == "" || deps.Index == nil {
		cfg.CandidateSource = CandidateSourceDatabase
	}
	if cfg.CandidateLimit < cfg.MaxResults {
		cfg.CandidateLimit = cfg.MaxResults
	}
	return &ChatService{
		minutesRepo:    deps.MinutesRepo,
		transcriptRepo: deps.TranscriptRepo,
		chunkRepo:      deps.ChunkRepo,
		chatRepo:       deps.ChatRepo,
		embedder:       deps.Embedder,
		completer:      deps.Completer,
		index:          deps.Index,
		cfg:            cfg,
	}
}

// StartResult tells the client whether it can chat and in which session.
type StartResult struct {
	IsEmbedded bool  `json:"is_embedded"`
	SessionID  *uint `json:"session_id,omitempty"`
}

// MessageResult is the assistant reply to a question.
type MessageResult struct {
	MessageID    uint        `json:"message_id"`
	Role         domain.Role `json:"role"`
	Message      string      `json:"message"`
	CreatedAt    time.Time   `json:"created_at"`
	IsReferenced bool        `json:"is_referenced"`
}

// ReferenceItem is one chunk that grounded a reply.
type ReferenceItem struct {
	ChunkID uint   `json:"chunk_id"`
	Content string `json:"content"`
	Rank    int    `json:"rank"`
}

// Start returns the chat session of a minutes document, creating it on first
// use. No session is returned until the transcript is embedded.
func (s *ChatService) Start(ctx context.Context, caller domain.UserID, minutesID uint) (*StartResult, error) {
	const op = "chat.Start"
	m, err := ownedMinutes(ctx, s.minutesRepo, op, caller, minutesID)
	if err != nil {
		return nil, err
	}

	t, err := s.transcriptRepo.GetByVideoID(ctx, m.Video.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &StartResult{IsEmbedded: false}, nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	if !t.IsEmbedded {
		return &StartResult{IsEmbedded: false}, nil
	}

	session, err := s.chatRepo.EnsureSession(ctx, m.ID, t.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	logger.CtxInfo(logger.SetSessionID(ctx, session.ID), "Chat session ready: minutes_id=%d", m.ID)
	return &StartResult{IsEmbedded: true, SessionID: &session.ID}, nil
}

// Send stores the question, retrieves the most similar chunks and stores
// the reply with its references. With no similar chunk the reply is a fixed
// message; when generation fails the reply is the ranked chunks themselves.
func (s *ChatService) Send(ctx context.Context, caller domain.UserID, sessionID uint, text string) (*MessageResult, error) {
	const op = "chat.Send"
	question := strings.TrimSpace(text)
	if question == "" {
		return nil, apperr.Validation(op, "message must not be empty")
	}

	session, err := s.ownedSession(ctx, op, caller, sessionID)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetSessionID(ctx, session.ID)

	userMsg := &domain.ChatMessage{SessionID: session.ID, Role: domain.RoleUser, Message: question}
	if err := s.chatRepo.CreateMessage(ctx, userMsg); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	vector, err := embedQuery(ctx, s.embedder, question)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbedding, op, err)
	}

	candidates, err := s.candidates(ctx, session.TranscriptID, vector)
	if err != nil {
		return nil, err
	}
	matches, err := retrieval.FindSimilar(vector, candidates, retrieval.Options{
		Threshold:  s.cfg.Threshold,
		MaxResults: s.cfg.MaxResults,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbedding, op, err)
	}

	if len(matches) == 0 {
		reply, err := s.reply(ctx, session.ID, prompts.NoMatchMessage)
		if err != nil {
			return nil, err
		}
		metrics.ChatReply(metrics.ReplyNoMatch, 0)
		logger.With(nil).WithCount(len(candidates)).Info(ctx, "No chunk above threshold")
		return reply, nil
	}

	excerpts := make([]prompts.Excerpt, 0, len(matches))
	for _, m := range matches {
		excerpts = append(excerpts, prompts.Excerpt{Rank: m.Rank, Content: m.Chunk.Content})
	}

	kind := metrics.ReplyGrounded
	answer, err := s.completer.Complete(ctx, prompts.ChatSystemPrompt, prompts.BuildChatUserPrompt(question, excerpts), CompletionOptions{
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		logger.CtxWarn(ctx, "Generation failed, replying with references: %v", err)
		answer = prompts.JoinExcerpts(excerpts)
		kind = metrics.ReplyGenerationFallback
	}

	reply, err := s.reply(ctx, session.ID, answer)
	if err != nil {
		return nil, err
	}

	refs := make([]domain.Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, domain.Reference{
			ChatMessageID:     reply.MessageID,
			TranscriptChunkID: m.Chunk.ID,
			Rank:              m.Rank,
		})
	}
	if err := s.chatRepo.CreateReferences(ctx, refs); err != nil {
		logger.CtxWarn(ctx, "Failed to save references of message %d: %v", reply.MessageID, err)
	}

	metrics.ChatReply(kind, len(matches))
	reply.IsReferenced = true
	return reply, nil
}

// References returns the chunks behind an assistant message, rank 1 first.
func (s *ChatService) References(ctx context.Context, caller domain.UserID, messageID uint) ([]ReferenceItem, error) {
	const op = "chat.References"
	if caller.IsZero() {
		return nil, apperr.New(apperr.KindUnauthorized, op, "missing user identity")
	}
	msg, err := s.chatRepo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, notFoundOr(op, "message", err)
	}
	if _, err := s.ownedSession(ctx, op, caller, msg.SessionID); err != nil {
		return nil, err
	}

	rows, err := s.chatRepo.ListReferences(ctx, messageID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	items := make([]ReferenceItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, ReferenceItem{ChunkID: r.ChunkID, Content: r.Content, Rank: r.Rank})
	}
	return items, nil
}

func (s *ChatService) ownedSession(ctx context.Context, op string, caller domain.UserID, sessionID uint) (*domain.ChatSession, error) {
	if caller.IsZero() {
		return nil, apperr.New(apperr.KindUnauthorized, op, "missing user identity")
	}
	session, err := s.chatRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(op, "chat session", err)
	}
	if _, err := ownedMinutes(ctx, s.minutesRepo, op, caller, session.MinutesID); err != nil {
		return nil, err
	}
	return session, nil
}

// candidates loads the chunk/vector pairs to rank. The qdrant source narrows
// them to the index's nearest neighbours first.
func (s *ChatService) candidates(ctx context.Context, transcriptID uint, vector []float32) ([]domain.ChunkWithEmbedding, error) {
	const op = "chat.candidates"
	if s.cfg.CandidateSource == CandidateSourceQdrant {
		ids, err := s.index.SearchChunks(ctx, transcriptID, vector, s.cfg.CandidateLimit)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, err)
		}
		rows, err := s.chunkRepo.ListWithEmbeddingsByIDs(ctx, transcriptID, ids)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, err)
		}
		return rows, nil
	}

	rows, err := s.chunkRepo.ListWithEmbeddings(ctx, transcriptID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	return rows, nil
}

func (s *ChatService) reply(ctx context.Context, sessionID uint, text string) (*MessageResult, error) {
	msg := &domain.ChatMessage{SessionID: sessionID, Role: domain.RoleAssistant, Message: text}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "chat.reply", err)
	}
	return &MessageResult{
		MessageID: msg.ID,
		Role:      msg.Role,
		Message:   msg.Message,
		CreatedAt: msg.CreatedAt,
	}, nil
}
