package service

import (
	"context"
	"fmt"

	"github.com/miso-46/AI-minutes/internal/config"
	"github.com/miso-46/AI-minutes/internal/logger"
)

// QueryEmbedder is implemented by providers that embed search queries
// differently from stored passages.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// embedQuery uses the query-specific path when the provider has one.
func embedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if q, ok := e.(QueryEmbedder); ok {
		return q.EmbedQuery(ctx, text)
	}
	return e.Embed(ctx, text)
}

// NewEmbedder builds the provider selected by cfg.
// Parameters:
//   - cfg: validated embedding configuration with its API key resolved.
// Returns:
//   - Embedder: provider used for both chunks and queries.
//   - error: non-nil if the provider is unknown or cannot be created.
func NewEmbedder(cfg *config.EmbeddingConfig) (Embedder, error) {
	if err := cfg.ValidateWithAPIKey(); err != nil {
		return nil, err
	}

	svcCfg := &EmbeddingConfig{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Dimensions: cfg.Dimensions,
	}

	logger.Info("Initializing embedding provider: name=%s, provider=%s, model=%s, dimensions=%d",
		cfg.Name, cfg.Provider, cfg.Model, cfg.Dimensions)

	switch cfg.Provider {
	case "jina", "openai-compatible":
		return NewEmbeddingService(svcCfg), nil
	case "openai":
		return NewLangchainEmbedder(svcCfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
