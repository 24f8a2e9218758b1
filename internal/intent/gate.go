package intent

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/config"
	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/llm"
)

// Classifier turns a message into a validated classification. Implementations
// never fail; problems are reported through Telemetry.
type Classifier interface {
	Classify(ctx context.Context, message string) (Classification, Telemetry)
}

// New selects the classifier implementation for cfg.Mode.
func New(cfg config.IntentConfig, oracle llm.Oracle) Classifier {
	if cfg.Mode == config.ModeHeuristic {
		return NewHeuristicClassifier()
	}
	return NewOracleClassifier(oracle, cfg.Timeout)
}

// Gate wraps a Classifier in the gate envelope.
type Gate struct {
	classifier Classifier
}

// NewGate creates the intent gate.
func NewGate(classifier Classifier) *Gate {
	return &Gate{classifier: classifier}
}

// Run classifies message. A fail-open classification is a soft failure; the
// pipeline always continues.
func (g *Gate) Run(ctx context.Context, message string) gate.Result[Outcome] {
	timer := gate.Start(gate.IDIntent)
	c, tel := g.classifier.Classify(ctx, message)
	out := Outcome{Classification: c, Telemetry: tel}

	log.Info().
		Str("gate", string(gate.IDIntent)).
		Str("type", string(c.Type)).
		Str("secondary_type", string(c.SecondaryType)).
		Str("domain", string(c.PrimaryDomain)).
		Float64("confidence", c.Confidence).
		Str("reasoning", string(c.ReasoningCode)).
		Bool("failed_open", tel.FailedOpen).
		Strs("repairs", tel.ValidationRepairs).
		Msg("intent classified")

	if tel.FailedOpen {
		return gate.Finish(timer, gate.StatusSoftFail, gate.ActionContinue, out, "classifier failed open")
	}
	return gate.Pass(timer, out)
}
