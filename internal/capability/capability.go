// Package capability decides what a stance may do and which requested
// actions come from sources explicit enough to be trusted.
package capability

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/stance"
)

// Capability is something the assistant may do in a stance.
type Capability string

const (
	Respond            Capability = "respond"
	Explain            Capability = "explain"
	RecommendResources Capability = "recommend_resources"
	SuggestNextAction  Capability = "suggest_next_action"
	ExecuteAction      Capability = "execute_action"
	CreateGoal         Capability = "create_goal"
	ScheduleJob        Capability = "schedule_job"
	WebVerify          Capability = "web_verify"
	AcknowledgeRisk    Capability = "acknowledge_risk"
	CrisisResources    Capability = "crisis_resources"
)

// AllowList is the fixed capability table, one row per stance.
var AllowList = map[stance.Stance][]Capability{
	stance.Sword:   {Respond, Explain, RecommendResources, SuggestNextAction, ExecuteAction, CreateGoal, ScheduleJob},
	stance.Lens:    {Respond, Explain, RecommendResources, WebVerify},
	stance.Shield:  {Respond, Explain, AcknowledgeRisk},
	stance.Control: {CrisisResources},
}

// Source tags where a requested action came from.
type Source string

const (
	SourceUIButton      Source = "ui_button"
	SourceCommandParser Source = "command_parser"
	SourceAPIField      Source = "api_field"
	// SourceNLInference marks an action guessed from free text. Always denied.
	SourceNLInference Source = "nl_inference"
)

// Explicit reports whether actions from s count as explicit user intent.
func (s Source) Explicit() bool {
	switch s {
	case SourceUIButton, SourceCommandParser, SourceAPIField:
		return true
	}
	return false
}

// Denial markers.
const (
	DeniedNLInference   = "nl_inference_blocked"
	DeniedUnknownSource = "unknown_source_blocked"
	notAllowedSuffix    = "_not_allowed"
)

// ActionSource is a requested action and where it came from. An empty
// Capability means execute_action.
type ActionSource struct {
	ID         string     `json:"id"`
	Source     Source     `json:"source"`
	Capability Capability `json:"capability,omitempty"`
}

// Denial explains why one action was refused.
type Denial struct {
	Action ActionSource `json:"action"`
	Reason string       `json:"reason"`
}

// Result is the capability gate's output.
type Result struct {
	Stance             stance.Stance  `json:"stance"`
	Allowed            []Capability   `json:"allowed"`
	ExplicitActions    []ActionSource `json:"explicitActions"`
	DeniedCapabilities []string       `json:"deniedCapabilities"`
	DeniedActions      []Denial       `json:"deniedActions"`
}

// Allows reports whether c is unlocked.
func (r Result) Allows(c Capability) bool {
	return slices.Contains(r.Allowed, c)
}

// Resolve looks up the stance's allow-list and filters sources. Free-text
// inferred actions are never accepted.
func Resolve(s stance.Stance, sources []ActionSource) Result {
	r := Result{
		Stance:             s,
		Allowed:            slices.Clone(AllowList[s]),
		ExplicitActions:    []ActionSource{},
		DeniedCapabilities: []string{},
		DeniedActions:      []Denial{},
	}

	deny := func(a ActionSource, marker string) {
		r.DeniedActions = append(r.DeniedActions, Denial{Action: a, Reason: marker})
		if !slices.Contains(r.DeniedCapabilities, marker) {
			r.DeniedCapabilities = append(r.DeniedCapabilities, marker)
		}
	}

	for _, a := range sources {
		if a.Capability == "" {
			a.Capability = ExecuteAction
		}
		switch {
		case a.Source == SourceNLInference:
			deny(a, DeniedNLInference)
		case !a.Source.Explicit():
			deny(a, DeniedUnknownSource)
		case !r.Allows(a.Capability):
			deny(a, string(a.Capability)+notAllowedSuffix)
		default:
			r.ExplicitActions = append(r.ExplicitActions, a)
		}
	}
	return r
}

// Run wraps Resolve in the gate envelope. Denied actions make it a soft
// failure; the request still continues.
func Run(s stance.Stance, sources []ActionSource) gate.Result[Result] {
	timer := gate.Start(gate.IDCapability)
	r := Resolve(s, sources)

	log.Info().
		Str("gate", string(gate.IDCapability)).
		Str("stance", string(s)).
		Int("explicit_actions", len(r.ExplicitActions)).
		Strs("denied", r.DeniedCapabilities).
		Msg("capabilities resolved")

	if len(r.DeniedActions) > 0 {
		return gate.Finish(timer, gate.StatusSoftFail, gate.ActionContinue, r, "actions denied")
	}
	return gate.Pass(timer, r)
}
