package config

import (
	"fmt"
	"os"
)

// EmbeddingConfig selects the embedding provider used for chunks and queries.
// The same provider must embed both, or similarity scores are meaningless.
type EmbeddingConfig struct {
	Name       string `mapstructure:"name"`
	Provider   string `mapstructure:"provider"` // jina, openai-compatible, openai
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	APIKeyEnv  string `mapstructure:"api_key_env"`
	BaseURL    string `mapstructure:"base_url"`
	BaseURLEnv string `mapstructure:"base_url_env"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ResolveEnvVars fills APIKey and BaseURL from the named environment
// variables when they were not set directly.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
	if c.BaseURLEnv != "" && c.BaseURL == "" {
		c.BaseURL = os.Getenv(c.BaseURLEnv)
	}
}

// Validate checks that the embedding configuration has all required fields.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedding %q: provider is required", c.Name)
	}
	if c.Model == "" {
		return fmt.Errorf("embedding %q: model is required", c.Name)
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding %q: dimensions must be positive", c.Name)
	}

	switch c.Provider {
	case "jina", "openai-compatible", "openai":
	default:
		return fmt.Errorf("embedding %q: unknown provider %q", c.Name, c.Provider)
	}
	return nil
}

// ValidateWithAPIKey also requires an API key. Use it where the provider is
// actually called.
func (c *EmbeddingConfig) ValidateWithAPIKey() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("embedding %q: api_key is required (set directly or via %s)", c.Name, c.APIKeyEnv)
	}
	return nil
}
