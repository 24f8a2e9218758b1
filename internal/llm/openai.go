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

// OpenAIProvider implements the Provider interface for OpenAI and
// OpenAI-compatible chat completion endpoints.
type OpenAIProvider struct {
	baseProvider
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg *ProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		baseProvider: newBaseProvider(cfg, "openai"),
	}
}

// Call sends a system and user message pair to the chat completions endpoint.
func (p *OpenAIProvider) Call(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if p.config.APIKey == "" {
		return "", fmt.Errorf("openai: %w", ErrNotConfigured)
	}

	openaiReq := openAIChatRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}
	if systemPrompt != "" {
		openaiReq.Messages = append(openaiReq.Messages, openAIMessage{Role: "system", Content: systemPrompt})
	}
	openaiReq.Messages = append(openaiReq.Messages, openAIMessage{Role: "user", Content: userMessage})

	body, err := json.Marshal(openaiReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	respBody, err := p.do(httpReq)
	if err != nil {
		return "", err
	}
	defer respBody.Close()

	var openaiResp openAIChatResponse
	if err := json.NewDecoder(respBody).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(openaiResp.Choices) == 0 || strings.TrimSpace(openaiResp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	log.Debug().
		Str("provider", p.Name()).
		Str("model", openaiResp.Model).
		Int("total_tokens", openaiResp.Usage.TotalTokens).
		Msg("oracle call complete")

	return openaiResp.Choices[0].Message.Content, nil
}

// OpenAI API types
type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
