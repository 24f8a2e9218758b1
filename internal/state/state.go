// Package state holds the per-request accumulator the pipeline threads
// through the gates. A PipelineState belongs to exactly one request and is
// never shared or persisted.
package state

import (
	"regexp"
	"strings"

	"github.com/normanking/stancegate/internal/capability"
	"github.com/normanking/stancegate/internal/constraint"
	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/intent"
	"github.com/normanking/stancegate/internal/lens"
	"github.com/normanking/stancegate/internal/personality"
	"github.com/normanking/stancegate/internal/shield"
	"github.com/normanking/stancegate/internal/spark"
	"github.com/normanking/stancegate/internal/stance"
)

// Input is one inbound message with its caller-supplied context.
type Input struct {
	Text      string                    `json:"text"`
	UserID    string                    `json:"userId,omitempty"`
	SessionID string                    `json:"sessionId,omitempty"`
	Actions   []capability.ActionSource `json:"actions,omitempty"`
}

// Risk carries the shield's requirements on the reply.
type Risk struct {
	RequiredPrependResources bool `json:"requiredPrependResources"`
}

// VerificationPlan mirrors the lens verification outcome.
type VerificationPlan struct {
	VerificationStatus string `json:"verificationStatus"`
	Verified           bool   `json:"verified"`
}

// Verification holds the plan, nil until the lens gate has run.
type Verification struct {
	Plan *VerificationPlan `json:"plan,omitempty"`
}

// PipelineState accumulates gate outputs for a single request.
type PipelineState struct {
	Input Input `json:"input"`

	SessionEnded            bool         `json:"sessionEnded"`
	PendingAck              bool         `json:"pendingAck"`
	CrisisResourcesProvided bool         `json:"crisisResourcesProvided"`
	Risk                    Risk         `json:"risk"`
	Verification            Verification `json:"verification"`

	Intent      *gate.Result[intent.Outcome]         `json:"intent,omitempty"`
	Shield      *gate.Result[shield.Decision]        `json:"shield,omitempty"`
	Lens        *gate.Result[lens.Assessment]        `json:"lens,omitempty"`
	Stance      *gate.Result[stance.Resolution]      `json:"stance,omitempty"`
	Capability  *gate.Result[capability.Result]      `json:"capability,omitempty"`
	Constraints *gate.Result[constraint.Constraints] `json:"constraints,omitempty"`
	Generation  string                               `json:"generation,omitempty"`
	Validated   *gate.Result[personality.Report]     `json:"validated,omitempty"`
	Spark       *gate.Result[spark.Eligibility]      `json:"spark,omitempty"`

	Trace []gate.Summary `json:"trace"`

	stopped    bool
	stopReason string
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeText trims the message, folds typographic quotes and collapses
// runs of whitespace.
func NormalizeText(s string) string {
	s = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`).Replace(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// New starts the state for one request.
func New(in Input) *PipelineState {
	in.Text = NormalizeText(in.Text)
	return &PipelineState{Input: in, Trace: []gate.Summary{}}
}

// Stop records a terminal decision. Once stopped the state stays stopped and
// the first reason is kept.
func (s *PipelineState) Stop(reason string) {
	if s.stopped {
		return
	}
	s.stopped = true
	s.stopReason = reason
}

// Stopped reports whether a terminal decision was made.
func (s *PipelineState) Stopped() bool { return s.stopped }

// StopReason returns the reason given to the first Stop call.
func (s *PipelineState) StopReason() string { return s.stopReason }

// ShieldVetoActive reports whether the shield vetoed or entered control mode.
func (s *PipelineState) ShieldVetoActive() bool {
	if s.Shield == nil {
		return false
	}
	return s.Shield.Output.ControlMode || s.Shield.Output.Vetoed()
}

// SetIntent records the intent gate result.
func (s *PipelineState) SetIntent(r gate.Result[intent.Outcome]) {
	s.Intent = &r
	s.record(r.Summary())
}

// SetShield records the shield gate result and derives the risk flags.
func (s *PipelineState) SetShield(r gate.Result[shield.Decision]) {
	s.Shield = &r
	s.Risk.RequiredPrependResources = r.Output.RequiredPrependResources
	s.PendingAck = r.Output.VetoType == shield.VetoSoft
	s.record(r.Summary())
	if r.Action == gate.ActionStop {
		s.Stop(r.FailureReason)
	}
}

// SetLens records the lens gate result and the verification plan.
func (s *PipelineState) SetLens(r gate.Result[lens.Assessment]) {
	s.Lens = &r
	s.Verification.Plan = &VerificationPlan{
		VerificationStatus: r.Output.VerificationStatus,
		Verified:           r.Output.Verified,
	}
	s.record(r.Summary())
}

// SetStance records the stance gate result.
func (s *PipelineState) SetStance(r gate.Result[stance.Resolution]) {
	s.Stance = &r
	s.record(r.Summary())
}

// SetCapability records the capability gate result.
func (s *PipelineState) SetCapability(r gate.Result[capability.Result]) {
	s.Capability = &r
	s.record(r.Summary())
}

// SetConstraints records the constraint gate result.
func (s *PipelineState) SetConstraints(r gate.Result[constraint.Constraints]) {
	s.Constraints = &r
	s.record(r.Summary())
}

// SetValidated records a personality gate result. It is called once per
// generation attempt.
func (s *PipelineState) SetValidated(r gate.Result[personality.Report]) {
	s.Validated = &r
	s.record(r.Summary())
}

// SetSpark records the spark gate result.
func (s *PipelineState) SetSpark(r gate.Result[spark.Eligibility]) {
	s.Spark = &r
	s.record(r.Summary())
}

// Record appends the summary of a gate whose output the state does not
// keep. It never changes the stop decision.
func (s *PipelineState) Record(sum gate.Summary) {
	s.record(sum)
}

func (s *PipelineState) record(sum gate.Summary) {
	s.Trace = append(s.Trace, sum)
}
