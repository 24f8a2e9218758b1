package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Limited bounds the number of in-flight calls to the wrapped oracle.
// Callers that cannot acquire a slot before their context ends get the
// context error back and the oracle is never invoked.
type Limited struct {
	oracle Oracle
	sem    *semaphore.Weighted
}

// NewLimited wraps oracle with a concurrency limit. A limit of zero or less
// returns the oracle unwrapped.
func NewLimited(oracle Oracle, maxConcurrent int) Oracle {
	if maxConcurrent <= 0 {
		return oracle
	}
	return &Limited{
		oracle: oracle,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Call implements Oracle.
func (l *Limited) Call(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire oracle slot: %w", err)
	}
	defer l.sem.Release(1)

	return l.oracle.Call(ctx, systemPrompt, userMessage)
}
