package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	baseProvider
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg *ProviderConfig) *AnthropicProvider {
	return &AnthropicProvider{
		baseProvider: newBaseProvider(cfg, "anthropic"),
	}
}

// Call sends a single-turn message to Anthropic and returns the concatenated text blocks.
func (p *AnthropicProvider) Call(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if p.config.APIKey == "" {
		return "", fmt.Errorf("anthropic: %w", ErrNotConfigured)
	}

	anthropicReq := anthropicChatRequest{
		Model:       p.config.Model,
		System:      systemPrompt,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: userMessage},
		},
	}

	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	respBody, err := p.do(httpReq)
	if err != nil {
		return "", err
	}
	defer respBody.Close()

	var anthropicResp anthropicChatResponse
	if err := json.NewDecoder(respBody).Decode(&anthropicResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var content strings.Builder
	for _, block := range anthropicResp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return "", ErrEmptyResponse
	}

	log.Debug().
		Str("provider", p.Name()).
		Str("model", anthropicResp.Model).
		Int("input_tokens", anthropicResp.Usage.InputTokens).
		Int("output_tokens", anthropicResp.Usage.OutputTokens).
		Msg("oracle call complete")

	return content.String(), nil
}

// Anthropic API types
type anthropicChatRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicChatResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
