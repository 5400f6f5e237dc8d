package service

import (
	"context"
	"fmt"

	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainEmbedder embeds through langchaingo's OpenAI client.
type LangchainEmbedder struct {
	embedder embeddings.Embedder
	model    string
}

// NewLangchainEmbedder creates an embedder for the OpenAI embeddings API or a
// compatible server at cfg.BaseURL.
func NewLangchainEmbedder(cfg *EmbeddingConfig) (*LangchainEmbedder, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &LangchainEmbedder{embedder: embedder, model: cfg.Model}, nil
}

// GetModel returns the model name being used.
func (e *LangchainEmbedder) GetModel() string {
	return e.model
}

// Embed generates an embedding for a single text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbedding, "langchain.Embed", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, apperr.New(apperr.KindEmbedding, "langchain.Embed", "no embedding returned")
	}
	return vectors[0], nil
}

// EmbedQuery generates an embedding for a search query.
func (e *LangchainEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbedding, "langchain.EmbedQuery", err)
	}
	if len(vector) == 0 {
		return nil, apperr.New(apperr.KindEmbedding, "langchain.EmbedQuery", "no embedding returned")
	}
	return vector, nil
}
