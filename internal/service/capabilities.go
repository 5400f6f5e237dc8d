package service

import (
	"context"
	"time"

	"github.com/miso-46/AI-minutes/internal/domain"
)

// Transcriber turns one audio/video file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Embedder produces the vector used for both chunks and chat queries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// CompletionOptions tune a single completion request.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// Completer generates text from a system and a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error)
}

// MediaProcessor is the subset of media.Transcoder the services use.
type MediaProcessor interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
	Compress(ctx context.Context, in, out string) error
	Split(ctx context.Context, in, outDir string, segment time.Duration) ([]string, error)
	ExtractThumbnail(ctx context.Context, in, out string) error
}

// ChunkIndex mirrors chunk vectors into an approximate-search index.
// *repository.QdrantRepository implements it.
type ChunkIndex interface {
	UpsertChunk(ctx context.Context, chunk *domain.TranscriptChunk, vector []float32) error
	SearchChunks(ctx context.Context, transcriptID uint, vector []float32, limit int) ([]uint, error)
}

// ProgressSink receives the percentage of a stage that is done.
type ProgressSink func(ctx context.Context, percent int)

func (s ProgressSink) report(ctx context.Context, percent int) {
	if s != nil {
		s(ctx, percent)
	}
}
