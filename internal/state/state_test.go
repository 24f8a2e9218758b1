package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/lens"
	"github.com/normanking/stancegate/internal/shield"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, `Hey what's "up"`, NormalizeText("  Hey\twhat’s   “up”\n"))
}

func TestNew_NormalizesInput(t *testing.T) {
	s := New(Input{Text: "  hi  there ", UserID: "u1"})
	assert.Equal(t, "hi there", s.Input.Text)
	assert.Equal(t, "u1", s.Input.UserID)
	assert.NotNil(t, s.Trace)
	assert.False(t, s.Stopped())
}

func TestStop_IsSticky(t *testing.T) {
	s := New(Input{Text: "x"})
	s.Stop("crisis control mode")
	s.Stop("something later")

	assert.True(t, s.Stopped())
	assert.Equal(t, "crisis control mode", s.StopReason())
}

func TestSetShield_DerivesFlags(t *testing.T) {
	s := New(Input{Text: "x"})
	d := shield.Decide(shield.SafetyClassification{Category: shield.CategoryRecklessDecision})
	s.SetShield(gate.Finish(gate.Start(gate.IDShield), gate.StatusSoftFail, gate.ActionAwaitAck, d, "soft veto"))

	assert.True(t, s.PendingAck)
	assert.True(t, s.ShieldVetoActive())
	assert.False(t, s.Stopped())
	require.Len(t, s.Trace, 1)
	assert.Equal(t, gate.IDShield, s.Trace[0].GateID)

	s = New(Input{Text: "x"})
	d = shield.Decide(shield.SafetyClassification{Category: shield.CategoryDeathRisk})
	s.SetShield(gate.Finish(gate.Start(gate.IDShield), gate.StatusHardFail, gate.ActionStop, d, "crisis control mode"))

	assert.True(t, s.Risk.RequiredPrependResources)
	assert.True(t, s.Stopped())
	assert.False(t, s.PendingAck)
}

func TestSetLens_BuildsPlan(t *testing.T) {
	s := New(Input{Text: "x"})
	assert.Nil(t, s.Verification.Plan)

	s.SetLens(gate.Pass(gate.Start(gate.IDLens), lens.Assess("tell me a joke")))
	require.NotNil(t, s.Verification.Plan)
	assert.True(t, s.Verification.Plan.Verified)
	assert.Equal(t, lens.StatusNotRequired, s.Verification.Plan.VerificationStatus)
}
