// Package spark decides whether a minimal next-action suggestion may be offered.
package spark

import (
	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/capability"
	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/shield"
	"github.com/normanking/stancegate/internal/stance"
)

// Ineligibility reasons.
const (
	ReasonNotSword             = "not_sword_stance"
	ReasonShieldIntervention   = "shield_intervention_active"
	ReasonCapabilityNotAllowed = "capability_not_allowed"
)

// Eligibility is the spark gate's output.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// Evaluate is eligible only in sword stance with no active shield veto and
// with suggest_next_action unlocked.
func Evaluate(s stance.Stance, d shield.Decision, caps capability.Result) Eligibility {
	switch {
	case d.ControlMode || d.Vetoed():
		return Eligibility{Reason: ReasonShieldIntervention}
	case s != stance.Sword:
		return Eligibility{Reason: ReasonNotSword}
	case !caps.Allows(capability.SuggestNextAction):
		return Eligibility{Reason: ReasonCapabilityNotAllowed}
	}
	return Eligibility{Eligible: true}
}

// Run wraps Evaluate in the gate envelope. Ineligibility is not a failure.
func Run(s stance.Stance, d shield.Decision, caps capability.Result) gate.Result[Eligibility] {
	timer := gate.Start(gate.IDSpark)
	e := Evaluate(s, d, caps)

	log.Debug().
		Str("gate", string(gate.IDSpark)).
		Bool("eligible", e.Eligible).
		Str("reason", e.Reason).
		Msg("spark evaluated")

	return gate.Pass(timer, e)
}
