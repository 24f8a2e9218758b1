package pipeline

import (
	"context"

	"github.com/normanking/stancegate/internal/llm"
)

// Generator produces the reply text for a message under a rendered system
// prompt. Content generation lives outside the gates; the pipeline only
// calls it once every pre-generation gate has allowed the request.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, message string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, systemPrompt, message string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, systemPrompt, message string) (string, error) {
	return f(ctx, systemPrompt, message)
}

// OracleGenerator generates replies with an llm.Oracle.
type OracleGenerator struct {
	oracle llm.Oracle
}

// NewOracleGenerator wraps oracle as a Generator.
func NewOracleGenerator(oracle llm.Oracle) *OracleGenerator {
	return &OracleGenerator{oracle: oracle}
}

// Generate implements Generator.
func (g *OracleGenerator) Generate(ctx context.Context, systemPrompt, message string) (string, error) {
	if g.oracle == nil {
		return "", llm.ErrNotConfigured
	}
	return g.oracle.Call(ctx, systemPrompt, message)
}
