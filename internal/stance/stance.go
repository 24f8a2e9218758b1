// Package stance picks the single operating posture for a request.
package stance

import (
	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/intent"
	"github.com/normanking/stancegate/internal/lens"
	"github.com/normanking/stancegate/internal/shield"
)

// Stance is the operating posture.
type Stance string

const (
	// Control handles a crisis: resources only, nothing else.
	Control Stance = "control"
	// Shield holds the line on a vetoed request.
	Shield Stance = "shield"
	// Lens informs carefully and flags what is unverified.
	Lens Stance = "lens"
	// Sword acts on the user's behalf.
	Sword Stance = "sword"
)

// Rule names recorded in the resolution.
const (
	RuleControlMode         = "control_mode"
	RuleShieldVeto          = "shield_veto"
	RuleUnverifiedFreshness = "unverified_freshness"
	RuleActionIntent        = "action_intent"
	RuleDefault             = "default"
)

// Resolution is the stance gate's output.
type Resolution struct {
	Stance Stance `json:"stance"`
	Rule   string `json:"rule"`
}

// Resolve applies the fixed priority order. Control dominates everything,
// including a pending veto, and an unverified freshness concern dominates
// action intents.
func Resolve(d shield.Decision, a lens.Assessment, t intent.Type) Resolution {
	switch {
	case d.ControlMode:
		return Resolution{Stance: Control, Rule: RuleControlMode}
	case d.Vetoed():
		return Resolution{Stance: Shield, Rule: RuleShieldVeto}
	case a.Unresolved():
		return Resolution{Stance: Lens, Rule: RuleUnverifiedFreshness}
	case t == intent.TypeAction || t == intent.TypePlanning:
		return Resolution{Stance: Sword, Rule: RuleActionIntent}
	default:
		return Resolution{Stance: Lens, Rule: RuleDefault}
	}
}

// Run wraps Resolve in the gate envelope. Resolution never fails.
func Run(d shield.Decision, a lens.Assessment, t intent.Type) gate.Result[Resolution] {
	timer := gate.Start(gate.IDStance)
	r := Resolve(d, a, t)

	log.Info().
		Str("gate", string(gate.IDStance)).
		Str("stance", string(r.Stance)).
		Str("rule", r.Rule).
		Msg("stance resolved")

	return gate.Pass(timer, r)
}
