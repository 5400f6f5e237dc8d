package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/miso-46/AI-minutes/internal/apperr"
)

// CompletionService generates text through an OpenAI-compatible chat
// completions API.
type CompletionService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// CompletionConfig holds configuration for the completion service.
type CompletionConfig struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewCompletionService creates a new completion client.
// Parameters:
//   - cfg: model, credentials and endpoint of the chat API.
//
// Returns:
//   - *CompletionService: initialized client wrapper.
func NewCompletionService(cfg *CompletionConfig) *CompletionService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Set timeout to prevent hanging requests
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	// Default to OpenAI compatible endpoint if not specified
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &CompletionService{
		client:   client,
		model:    cfg.Model,
		endpoint: strings.TrimRight(baseURL, "/") + "/chat/completions",
	}
}

// GetModel returns the model name being used.
func (s *CompletionService) GetModel() string {
	return s.model
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one system and one user message and returns the reply.
func (s *CompletionService) Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error) {
	const op = "completion.Complete"

	req := chatCompletionRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var resp chatCompletionResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)

	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, op, fmt.Errorf("failed to call chat API: %w", err))
	}

	// Check HTTP status code
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", apperr.New(apperr.KindGeneration, op, "chat API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", apperr.New(apperr.KindGeneration, op, "chat API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.KindGeneration, op, "no choices in response (status: %d)", httpResp.StatusCode())
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", apperr.New(apperr.KindGeneration, op, "empty completion")
	}
	return content, nil
}
