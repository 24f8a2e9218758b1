// Package precondition evaluates named checks against a PipelineState.
// Only the names in the registry are recognized; anything else is denied.
package precondition

import (
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/lens"
	"github.com/normanking/stancegate/internal/state"
)

// Recognized precondition names.
const (
	ResourcesProvided    = "resources_provided"
	VerificationComplete = "verification_complete"
	UserAuthenticated    = "user_authenticated"
	SessionActive        = "session_active"
	NoPendingVeto        = "no_pending_veto"
)

// guestPrefixes mark user IDs that never count as authenticated.
var guestPrefixes = []string{"guest_", "anon_"}

// Check is a predicate over the pipeline state.
type Check func(s *state.PipelineState) bool

var registry = map[string]Check{
	ResourcesProvided: func(s *state.PipelineState) bool {
		return !s.Risk.RequiredPrependResources || s.CrisisResourcesProvided
	},
	VerificationComplete: func(s *state.PipelineState) bool {
		p := s.Verification.Plan
		if p == nil {
			return false
		}
		return p.Verified || p.VerificationStatus == lens.StatusNotRequired
	},
	UserAuthenticated: func(s *state.PipelineState) bool {
		id := s.Input.UserID
		if id == "" {
			return false
		}
		return !slices.ContainsFunc(guestPrefixes, func(p string) bool {
			return strings.HasPrefix(id, p)
		})
	},
	SessionActive: func(s *state.PipelineState) bool {
		return s.Input.SessionID != "" && !s.SessionEnded
	},
	NoPendingVeto: func(s *state.PipelineState) bool {
		return !s.PendingAck && !s.ShieldVetoActive()
	},
}

// Names returns the recognized precondition names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Known reports whether name is a recognized precondition.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Evaluate reports whether the named precondition holds. Unknown names and a
// nil state evaluate to false.
func Evaluate(name string, s *state.PipelineState) bool {
	check, ok := registry[name]
	if !ok {
		log.Warn().
			Str("security_event", "unknown_precondition").
			Str("precondition", name).
			Msg("unknown precondition denied")
		return false
	}
	if s == nil {
		return false
	}
	return check(s)
}

// Outcome lists which preconditions held.
type Outcome struct {
	Satisfied bool     `json:"satisfied"`
	Passed    []string `json:"passed"`
	Failed    []string `json:"failed"`
}

// Run evaluates every name. All must hold for the gate to pass.
func Run(names []string, s *state.PipelineState) gate.Result[Outcome] {
	timer := gate.Start(gate.IDPrecondition)

	out := Outcome{Passed: []string{}, Failed: []string{}}
	for _, name := range names {
		if Evaluate(name, s) {
			out.Passed = append(out.Passed, name)
		} else {
			out.Failed = append(out.Failed, name)
		}
	}
	out.Satisfied = len(out.Failed) == 0

	if !out.Satisfied {
		return gate.Finish(timer, gate.StatusHardFail, gate.ActionStop, out,
			"precondition not met: "+strings.Join(out.Failed, ", "))
	}
	return gate.Pass(timer, out)
}
