package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/miso-46/AI-minutes/internal/apperr"
)

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperTranscriber struct {
	client   *resty.Client
	model    string
	language string
	endpoint string
}

// WhisperConfig holds configuration for the transcription API.
type WhisperConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// NewWhisperTranscriber creates a new transcription client.
func NewWhisperTranscriber(cfg *WhisperConfig) *WhisperTranscriber {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}

	return &WhisperTranscriber{
		client:   client,
		model:    model,
		language: cfg.Language,
		endpoint: strings.TrimRight(baseURL, "/") + "/audio/transcriptions",
	}
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe uploads the file at path and returns its text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	form := map[string]string{
		"model":           t.model,
		"response_format": "json",
	}
	if t.language != "" {
		form["language"] = t.language
	}

	var resp transcriptionResponse
	httpResp, err := t.client.R().
		SetContext(ctx).
		SetFile("file", path).
		SetFormData(form).
		SetResult(&resp).
		SetError(&resp).
		Post(t.endpoint)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTranscription, "whisper.Transcribe", fmt.Errorf("failed to call transcription API: %w", err))
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := string(httpResp.Body())
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return "", apperr.New(apperr.KindTranscription, "whisper.Transcribe", "HTTP %d: %s", httpResp.StatusCode(), msg)
	}

	return strings.TrimSpace(resp.Text), nil
}
