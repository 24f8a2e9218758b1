package precondition

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/lens"
	"github.com/normanking/stancegate/internal/shield"
	"github.com/normanking/stancegate/internal/state"
)

func newState(mutate func(*state.PipelineState)) *state.PipelineState {
	s := state.New(state.Input{Text: "hello", UserID: "user_42", SessionID: "sess_1"})
	s.Verification.Plan = &state.VerificationPlan{VerificationStatus: lens.StatusNotRequired, Verified: true}
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		check  string
		mutate func(*state.PipelineState)
		want   bool
	}{
		{"resources not required", ResourcesProvided, nil, true},
		{"resources required but missing", ResourcesProvided, func(s *state.PipelineState) {
			s.Risk.RequiredPrependResources = true
		}, false},
		{"resources required and provided", ResourcesProvided, func(s *state.PipelineState) {
			s.Risk.RequiredPrependResources = true
			s.CrisisResourcesProvided = true
		}, true},
		{"verification not required", VerificationComplete, nil, true},
		{"verification pending", VerificationComplete, func(s *state.PipelineState) {
			s.Verification.Plan = &state.VerificationPlan{VerificationStatus: lens.StatusPending}
		}, false},
		{"verification verified", VerificationComplete, func(s *state.PipelineState) {
			s.Verification.Plan = &state.VerificationPlan{VerificationStatus: lens.StatusVerified, Verified: true}
		}, true},
		{"no verification plan", VerificationComplete, func(s *state.PipelineState) {
			s.Verification.Plan = nil
		}, false},
		{"authenticated user", UserAuthenticated, nil, true},
		{"guest user", UserAuthenticated, func(s *state.PipelineState) { s.Input.UserID = "guest_9" }, false},
		{"anonymous user", UserAuthenticated, func(s *state.PipelineState) { s.Input.UserID = "anon_abc" }, false},
		{"missing user", UserAuthenticated, func(s *state.PipelineState) { s.Input.UserID = "" }, false},
		{"active session", SessionActive, nil, true},
		{"ended session", SessionActive, func(s *state.PipelineState) { s.SessionEnded = true }, false},
		{"missing session", SessionActive, func(s *state.PipelineState) { s.Input.SessionID = "" }, false},
		{"no veto", NoPendingVeto, nil, true},
		{"pending ack", NoPendingVeto, func(s *state.PipelineState) { s.PendingAck = true }, false},
		{"hard veto", NoPendingVeto, func(s *state.PipelineState) {
			d := shield.Decide(shield.SafetyClassification{Category: shield.CategoryHarmRisk})
			s.SetShield(gate.Finish(gate.Start(gate.IDShield), gate.StatusHardFail, gate.ActionStop, d, "hard veto"))
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.check, newState(tt.mutate)))
		})
	}
}

func TestEvaluate_UnknownNameDenied(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	assert.False(t, Evaluate("made_up_key", newState(nil)))
	assert.False(t, Evaluate("", nil))
	assert.Contains(t, buf.String(), `"security_event":"unknown_precondition"`)
	assert.Contains(t, buf.String(), `"precondition":"made_up_key"`)
}

func TestEvaluate_NilState(t *testing.T) {
	for _, name := range Names() {
		assert.False(t, Evaluate(name, nil), name)
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		NoPendingVeto, ResourcesProvided, SessionActive, UserAuthenticated, VerificationComplete,
	}, Names())
	assert.True(t, Known(SessionActive))
	assert.False(t, Known("admin"))
}

func TestRun(t *testing.T) {
	res := Run([]string{SessionActive, UserAuthenticated}, newState(nil))
	assert.Equal(t, gate.StatusPass, res.Status)
	assert.True(t, res.Output.Satisfied)

	res = Run([]string{SessionActive, "made_up_key"}, newState(nil))
	assert.Equal(t, gate.StatusHardFail, res.Status)
	assert.Equal(t, gate.ActionStop, res.Action)
	require.Equal(t, []string{"made_up_key"}, res.Output.Failed)
	assert.Equal(t, []string{SessionActive}, res.Output.Passed)
	assert.Contains(t, res.FailureReason, "made_up_key")
}
