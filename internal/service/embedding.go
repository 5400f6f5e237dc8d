package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/miso-46/AI-minutes/internal/apperr"
)

const (
	jinaEndpoint = "https://api.jina.ai/v1/embeddings"
)

// EmbeddingService handles text embedding generation over HTTP. It speaks
// both the Jina API and any OpenAI-compatible /embeddings endpoint.
type EmbeddingService struct {
	client     *resty.Client
	provider   string
	model      string
	dimensions int
	endpoint   string
}

// EmbeddingConfig holds configuration for embedding service
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(cfg *EmbeddingConfig) *EmbeddingService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	endpoint := jinaEndpoint
	if cfg.Provider != "jina" {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		endpoint = strings.TrimRight(baseURL, "/") + "/embeddings"
	} else if cfg.BaseURL != "" {
		endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/embeddings"
	}

	return &EmbeddingService{
		client:     client,
		provider:   cfg.Provider,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		endpoint:   endpoint,
	}
}

// GetModel returns the model name being used
func (s *EmbeddingService) GetModel() string {
	return s.model
}

// embeddingRequest covers both APIs; Task and EmbeddingType are Jina-only
// and omitted for OpenAI-compatible providers.
type embeddingRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Detail string `json:"detail,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding for a transcript chunk.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return s.call(ctx, "retrieval.passage", texts)
}

// EmbedQuery generates an embedding optimized for query/search
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := s.call(ctx, "retrieval.query", []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (s *EmbeddingService) call(ctx context.Context, task string, texts []string) ([][]float32, error) {
	const op = "embedding.Embed"

	req := embeddingRequest{
		Model:      s.model,
		Dimensions: s.dimensions,
		Input:      texts,
	}
	if s.provider == "jina" {
		req.Task = task
		req.EmbeddingType = "float"
	}

	var resp embeddingResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbedding, op, fmt.Errorf("failed to call %s API: %w", s.provider, err))
	}

	if httpResp.StatusCode() != 200 {
		switch {
		case resp.Detail != "":
			return nil, apperr.New(apperr.KindEmbedding, op, "%s API error: %s", s.provider, resp.Detail)
		case resp.Error != nil:
			return nil, apperr.New(apperr.KindEmbedding, op, "%s API error: %s", s.provider, resp.Error.Message)
		}
		return nil, apperr.New(apperr.KindEmbedding, op, "%s API error: status %d", s.provider, httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, apperr.New(apperr.KindEmbedding, op, "unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	// Sort by index to ensure correct order
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, apperr.New(apperr.KindEmbedding, op, "empty embedding at index %d", i)
		}
	}

	return embeddings, nil
}
