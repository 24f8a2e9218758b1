package intent

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/llm"
)

// systemPrompt instructs the oracle to answer with one JSON object.
const systemPrompt = `You classify a single user message for a personal assistant.
Respond with ONLY a JSON object, no prose:
{
  "type": "question|decision|action|planning|venting|greeting|followup|clarification",
  "secondaryType": "<another type, only if the message clearly carries two intents, else omit>",
  "primaryDomain": "mental_health|health|finance|legal|career|relationships|education|technology|productivity|creative|general",
  "domains": ["<every domain the message touches, primary included>"],
  "complexity": "simple|medium|complex",
  "urgency": "low|medium|high",
  "safetySignal": "none|watch|high",
  "confidence": <0.0-1.0>,
  "reasoningCode": "direct-question|decision-request|explicit-action|planning-request|emotional-expression|social-greeting|followup-context|clarification-request|multi-intent|crisis-signal"
}
Use safetySignal "high" for any mention of self-harm or suicide, "watch" for emotional distress.`

// OracleClassifier asks the classification oracle and validates its answer.
// Any failure falls back to the keyword heuristics with FailedOpen set.
type OracleClassifier struct {
	oracle   llm.Oracle
	timeout  time.Duration
	fallback *HeuristicClassifier
}

// NewOracleClassifier creates a classifier backed by oracle. A nil oracle is
// allowed and always fails open. A zero timeout leaves the caller's deadline
// in charge.
func NewOracleClassifier(oracle llm.Oracle, timeout time.Duration) *OracleClassifier {
	return &OracleClassifier{
		oracle:   oracle,
		timeout:  timeout,
		fallback: NewHeuristicClassifier(),
	}
}

// Classify implements Classifier.
func (c *OracleClassifier) Classify(ctx context.Context, message string) (Classification, Telemetry) {
	if c.oracle == nil {
		return c.failOpen(message, "", RepairOracleUnavailable)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.oracle.Call(callCtx, systemPrompt, message)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return c.failOpen(message, "", RepairOracleUnavailable)
		}
		log.Warn().Err(err).Str("gate", "intent").Msg("intent oracle call failed, using keyword fallback")
		return c.failOpen(message, "", RepairOracleError)
	}

	parsed, repairs, ok := ParseOracleOutput(raw)
	if !ok {
		log.Debug().Str("gate", "intent").Str("raw", raw).Msg("intent oracle output not parseable")
		return c.failOpen(message, raw, RepairParseErrorFallback)
	}

	result, invariantRepairs := ApplyInvariants(parsed)
	return result, Telemetry{
		ValidationRepairs: append(repairs, invariantRepairs...),
		RawModelOutput:    raw,
	}
}

func (c *OracleClassifier) failOpen(message, raw, reason string) (Classification, Telemetry) {
	result, repairs := ApplyInvariants(c.fallback.classify(message))
	return result, Telemetry{
		ValidationRepairs: append([]string{reason}, repairs...),
		FailedOpen:        true,
		RawModelOutput:    raw,
	}
}
