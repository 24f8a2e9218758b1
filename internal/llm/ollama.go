package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// isRemoteEndpoint checks if the Ollama endpoint is a remote server (not localhost).
func isRemoteEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1", "host.docker.internal", "docker.for.mac.localhost":
		return false
	}
	return true
}

// OllamaProvider implements the Provider interface for a local or remote Ollama server.
// Requests are non-streaming; classification answers are short.
type OllamaProvider struct {
	baseProvider
}

// NewOllamaProvider creates a new Ollama provider.
// Remote endpoints get a longer response header timeout to absorb cold starts.
func NewOllamaProvider(cfg *ProviderConfig) *OllamaProvider {
	base := newBaseProvider(cfg, "ollama")

	headerTimeout := 2 * time.Minute
	if isRemoteEndpoint(base.config.Endpoint) {
		headerTimeout = 5 * time.Minute
	}
	base.client.Transport = &http.Transport{
		ResponseHeaderTimeout: headerTimeout,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
	}

	return &OllamaProvider{baseProvider: base}
}

// Available reports whether an endpoint is configured. Ollama needs no API key.
func (p *OllamaProvider) Available() bool {
	return p.config.Endpoint != ""
}

// Call sends a non-streaming chat request to Ollama.
func (p *OllamaProvider) Call(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if p.config.Endpoint == "" {
		return "", fmt.Errorf("ollama: %w", ErrNotConfigured)
	}

	ollamaReq := ollamaChatRequest{
		Model:  p.config.Model,
		Stream: false,
		Options: ollamaOptions{
			Temperature: p.config.Temperature,
			NumPredict:  p.config.MaxTokens,
		},
	}
	if systemPrompt != "" {
		ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{Role: "user", Content: userMessage})

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := p.do(httpReq)
	if err != nil {
		return "", err
	}
	defer respBody.Close()

	var ollamaResp ollamaChatResponse
	if err := json.NewDecoder(respBody).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if strings.TrimSpace(ollamaResp.Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	log.Debug().
		Str("provider", p.Name()).
		Str("model", ollamaResp.Model).
		Int("prompt_eval_count", ollamaResp.PromptEvalCount).
		Int("eval_count", ollamaResp.EvalCount).
		Msg("oracle call complete")

	return ollamaResp.Message.Content, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}
