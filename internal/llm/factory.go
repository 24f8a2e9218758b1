package llm

import (
	"fmt"
	"os"
	"slices"

	"github.com/normanking/stancegate/internal/config"
)

// NewProvider creates the configured default provider.
func NewProvider(cfg *config.Config) (Provider, error) {
	providerName := cfg.LLM.DefaultProvider
	if providerName == "" {
		providerName = "ollama"
	}

	providerCfg, exists := cfg.LLM.Providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider '%s' not found in configuration", providerName)
	}

	// Get API key from config, falling back to environment variables
	apiKey := providerCfg.APIKey
	if apiKey == "" {
		apiKey = getAPIKeyFromEnv(providerName)
	}

	llmCfg := &ProviderConfig{
		Name:     providerName,
		Endpoint: providerCfg.Endpoint,
		APIKey:   apiKey,
		Model:    providerCfg.Model,
		Timeout:  providerCfg.Timeout(),
	}

	return NewProviderByName(providerName, llmCfg)
}

// NewOracle builds the default provider and bounds its concurrency with
// cfg.LLM.MaxConcurrent.
func NewOracle(cfg *config.Config) (Oracle, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewLimited(provider, cfg.LLM.MaxConcurrent), nil
}

// getAPIKeyFromEnv retrieves the API key from standard environment variables.
func getAPIKeyFromEnv(providerName string) string {
	envVars := map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"gemini":    "GEMINI_API_KEY",
	}
	if envVar, ok := envVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}

// NewProviderByName creates a specific provider by name.
func NewProviderByName(name string, cfg *ProviderConfig) (Provider, error) {
	switch name {
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// AvailableProviders returns the sorted names of configured providers that
// have the credentials or endpoint they need to serve as the oracle.
func AvailableProviders(cfg *config.Config) []string {
	var available []string

	for name, providerCfg := range cfg.LLM.Providers {
		apiKey := providerCfg.APIKey
		if apiKey == "" {
			apiKey = getAPIKeyFromEnv(name)
		}
		llmCfg := &ProviderConfig{
			Name:     name,
			Endpoint: providerCfg.Endpoint,
			APIKey:   apiKey,
			Model:    providerCfg.Model,
		}

		provider, err := NewProviderByName(name, llmCfg)
		if err != nil {
			continue
		}

		if provider.Available() {
			available = append(available, name)
		}
	}

	slices.Sort(available)
	return available
}
