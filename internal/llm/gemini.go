package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini
// through the official genai client.
type GeminiProvider struct {
	config *ProviderConfig

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider. The genai client is
// built on first use.
func NewGeminiProvider(cfg *ProviderConfig) *GeminiProvider {
	return &GeminiProvider{config: withDefaults(cfg, "gemini")}
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return p.config.Name
}

// Available checks if the API key is configured.
func (p *GeminiProvider) Available() bool {
	return p.config.APIKey != ""
}

func (p *GeminiProvider) genaiClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  p.config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.config.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.config.Endpoint}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	p.client = client
	return client, nil
}

// Call sends the message with the system prompt as the system instruction.
func (p *GeminiProvider) Call(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if p.config.APIKey == "" {
		return "", fmt.Errorf("gemini: %w", ErrNotConfigured)
	}

	client, err := p.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	temperature := float32(p.config.Temperature)
	genCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(p.config.MaxTokens),
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	resp, err := client.Models.GenerateContent(ctx, p.config.Model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: userMessage}}}},
		genCfg,
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		content.WriteString(part.Text)
	}
	if strings.TrimSpace(content.String()) == "" {
		return "", ErrEmptyResponse
	}

	log.Debug().
		Str("provider", p.Name()).
		Str("model", p.config.Model).
		Msg("oracle call complete")

	return content.String(), nil
}
