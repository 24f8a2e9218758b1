package shield

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/gate"
)

// Gate runs the control rules, then the classifier, and maps the result to
// a decision.
type Gate struct {
	classifier Classifier
}

// NewGate creates the shield gate.
func NewGate(classifier Classifier) *Gate {
	return &Gate{classifier: classifier}
}

// Run evaluates message. Control mode and hard vetoes stop the request; a
// soft veto waits for acknowledgment. A classifier that failed open yields
// soft_fail but lets the request continue.
func (g *Gate) Run(ctx context.Context, message string) gate.Result[Decision] {
	timer := gate.Start(gate.IDShield)

	var d Decision
	if r, ok := Match(ControlRules, message); ok {
		d = Decide(SafetyClassification{
			Category:   r.Category,
			Confidence: 1,
			Reasoning:  "control pattern " + r.Name,
		})
		d.ControlRule = r.Name
	} else {
		d = Decide(g.classifier.Classify(ctx, message))
	}

	log.Info().
		Str("gate", string(gate.IDShield)).
		Str("category", string(d.Classification.Category)).
		Str("risk_level", string(d.Classification.RiskLevel)).
		Bool("control_mode", d.ControlMode).
		Str("veto", string(d.VetoType)).
		Str("control_rule", d.ControlRule).
		Bool("failed_open", d.Classification.FailedOpen).
		Msg("safety classified")

	switch {
	case d.ControlMode:
		return gate.Finish(timer, gate.StatusHardFail, gate.ActionStop, d, "crisis control mode")
	case d.VetoType == VetoHard:
		return gate.Finish(timer, gate.StatusHardFail, gate.ActionStop, d, "hard veto: "+string(d.Classification.Category))
	case d.VetoType == VetoSoft:
		return gate.Finish(timer, gate.StatusSoftFail, gate.ActionAwaitAck, d, "soft veto: acknowledgment required")
	case d.Classification.FailedOpen:
		return gate.Finish(timer, gate.StatusSoftFail, gate.ActionContinue, d, "failed open: "+d.Classification.FailReason)
	}
	return gate.Pass(timer, d)
}
