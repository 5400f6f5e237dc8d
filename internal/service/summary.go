package service

import (
	"context"
	"sync"

	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/logger"
	"github.com/miso-46/AI-minutes/internal/prompts"
	"github.com/miso-46/AI-minutes/internal/repository"
	"github.com/pkoukk/tiktoken-go"
)

// SummaryService generates and stores the markdown summary of a transcript.
type SummaryService struct {
	minutesRepo    *repository.MinutesRepository
	transcriptRepo *repository.TranscriptRepository
	summaryRepo    *repository.SummaryRepository
	completer      Completer
	cfg            SummaryConfig

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// SummaryConfig holds generation settings. MaxInputTokens <= 0 disables
// truncation of long transcripts.
type SummaryConfig struct {
	Temperature    float64
	MaxTokens      int
	MaxInputTokens int
	Encoding       string
}

// NewSummaryService creates a new summary service.
func NewSummaryService(
	minutesRepo *repository.MinutesRepository,
	transcriptRepo *repository.TranscriptRepository,
	summaryRepo *repository.SummaryRepository,
	completer Completer,
	cfg SummaryConfig,
) *SummaryService {
	if cfg.Encoding == "" {
		cfg.Encoding = "cl100k_base"
	}
	return &SummaryService{
		minutesRepo:    minutesRepo,
		transcriptRepo: transcriptRepo,
		summaryRepo:    summaryRepo,
		completer:      completer,
		cfg:            cfg,
	}
}

// Generate summarizes a transcript the caller owns, replacing any previous
// summary, and returns the new one.
func (s *SummaryService) Generate(ctx context.Context, caller domain.UserID, transcriptID uint) (string, error) {
	const op = "summary.Generate"
	t, _, err := ownedTranscript(ctx, s.minutesRepo, s.transcriptRepo, op, caller, transcriptID)
	if err != nil {
		return "", err
	}

	input := s.truncate(ctx, t.Content)
	content, err := s.completer.Complete(ctx, prompts.SummarySystemPrompt, prompts.BuildSummaryUserPrompt(input), CompletionOptions{
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, op, err)
	}

	if err := s.summaryRepo.Upsert(ctx, &domain.Summary{TranscriptID: t.ID, Content: content}); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, op, err)
	}
	if !t.IsSummarized {
		if err := s.transcriptRepo.MarkSummarized(ctx, t.ID); err != nil {
			return "", apperr.Wrap(apperr.KindInternal, op, err)
		}
	}

	logger.With(logger.Fields{"transcript_id": t.ID, logger.FieldSize: len(content)}).Info(ctx, "Summary stored")
	return content, nil
}

// truncate keeps the transcript within the input token budget. When the
// encoding cannot be loaded the text is sent unchanged.
func (s *SummaryService) truncate(ctx context.Context, text string) string {
	if s.cfg.MaxInputTokens <= 0 {
		return text
	}
	enc := s.encoding(ctx)
	if enc == nil {
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= s.cfg.MaxInputTokens {
		return text
	}
	logger.CtxWarn(ctx, "Transcript truncated for summary: tokens=%d, budget=%d", len(tokens), s.cfg.MaxInputTokens)
	return enc.Decode(tokens[:s.cfg.MaxInputTokens])
}

func (s *SummaryService) encoding(ctx context.Context) *tiktoken.Tiktoken {
	s.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(s.cfg.Encoding)
		if err != nil {
			logger.CtxWarn(ctx, "Token encoding %s unavailable: %v", s.cfg.Encoding, err)
			return
		}
		s.enc = enc
	})
	return s.enc
}
