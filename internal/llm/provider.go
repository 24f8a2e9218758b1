// Package llm provides the classification oracle and the providers behind it.
// Supports Anthropic, OpenAI, Ollama (local) and Google Gemini.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxErrorBodySize limits how much error response body we read (1MB)
const MaxErrorBodySize = 1 * 1024 * 1024

var (
	// ErrNotConfigured is returned when a provider has no credentials or endpoint.
	ErrNotConfigured = errors.New("llm: provider not configured")
	// ErrEmptyResponse is returned when a provider answers without any text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// StatusError reports a non-200 answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Code, e.Body)
}

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Oracle is the classification oracle contract: a system instruction and a user
// message in, free text out. Nothing is guaranteed about the shape of the text.
// Implementations must be safe for concurrent use.
type Oracle interface {
	Call(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, systemPrompt, userMessage string) (string, error)

// Call implements Oracle.
func (f OracleFunc) Call(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return f(ctx, systemPrompt, userMessage)
}

// Provider is an Oracle backed by a named remote or local model service.
type Provider interface {
	Oracle

	// Name returns the provider identifier.
	Name() string

	// Available returns true if the provider is configured.
	Available() bool
}

// ProviderConfig contains configuration for an LLM provider.
type ProviderConfig struct {
	// Name identifies the provider (anthropic, openai, ollama, gemini).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication.
	APIKey string

	// Model is the default model to use.
	Model string

	// MaxTokens default for responses.
	MaxTokens int

	// Temperature default.
	Temperature float64

	// Timeout for API calls.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a provider.
// Classification runs at temperature zero.
func DefaultConfig(name string) *ProviderConfig {
	switch name {
	case "anthropic":
		return &ProviderConfig{
			Name:      "anthropic",
			Endpoint:  "https://api.anthropic.com",
			Model:     "claude-3-5-haiku-20241022",
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		}
	case "openai":
		return &ProviderConfig{
			Name:      "openai",
			Endpoint:  "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		}
	case "ollama":
		return &ProviderConfig{
			Name:      "ollama",
			Endpoint:  "http://127.0.0.1:11434",
			Model:     "llama3.2:3b",
			MaxTokens: 1024,
			Timeout:   time.Minute,
		}
	case "gemini":
		return &ProviderConfig{
			Name:      "gemini",
			Model:     "gemini-2.5-flash",
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		}
	default:
		return &ProviderConfig{
			Name:      name,
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		}
	}
}

// withDefaults fills empty fields from DefaultConfig without mutating cfg.
func withDefaults(cfg *ProviderConfig, providerName string) *ProviderConfig {
	defaults := DefaultConfig(providerName)
	if cfg == nil {
		return defaults
	}

	merged := *cfg
	if merged.Endpoint == "" {
		merged.Endpoint = defaults.Endpoint
	}
	if merged.Model == "" {
		merged.Model = defaults.Model
	}
	if merged.MaxTokens == 0 {
		merged.MaxTokens = defaults.MaxTokens
	}
	if merged.Timeout == 0 {
		merged.Timeout = defaults.Timeout
	}
	merged.Name = providerName
	return &merged
}

// ═══════════════════════════════════════════════════════════════════════════════
// BASE PROVIDER (DRY helper for HTTP-based providers)
// ═══════════════════════════════════════════════════════════════════════════════

// baseProvider provides common functionality for HTTP-based LLM providers.
type baseProvider struct {
	config *ProviderConfig
	client *http.Client
}

// newBaseProvider creates a new base provider with defaults applied.
func newBaseProvider(cfg *ProviderConfig, providerName string) baseProvider {
	merged := withDefaults(cfg, providerName)
	return baseProvider{
		config: merged,
		client: &http.Client{Timeout: merged.Timeout},
	}
}

// Name returns the provider identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}

// Available checks if the API key is configured.
func (b *baseProvider) Available() bool {
	return b.config.APIKey != ""
}

// do executes req and returns the body of a 200 answer.
func (b *baseProvider) do(req *http.Request) (io.ReadCloser, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, &StatusError{Provider: b.config.Name, Code: resp.StatusCode, Body: string(bodyBytes)}
	}
	return resp.Body, nil
}
