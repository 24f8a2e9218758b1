package spark

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/normanking/stancegate/internal/capability"
	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/shield"
	"github.com/normanking/stancegate/internal/stance"
)

func TestEvaluate(t *testing.T) {
	swordCaps := capability.Resolve(stance.Sword, nil)
	lensCaps := capability.Resolve(stance.Lens, nil)

	tests := []struct {
		name     string
		stance   stance.Stance
		decision shield.Decision
		caps     capability.Result
		eligible bool
		reason   string
	}{
		{"sword without veto", stance.Sword, shield.Decision{}, swordCaps, true, ""},
		{"lens stance", stance.Lens, shield.Decision{}, lensCaps, false, ReasonNotSword},
		{"soft veto", stance.Shield, shield.Decision{VetoType: shield.VetoSoft}, lensCaps, false, ReasonShieldIntervention},
		{"veto wins over sword", stance.Sword, shield.Decision{VetoType: shield.VetoHard}, swordCaps, false, ReasonShieldIntervention},
		{"control", stance.Control, shield.Decision{ControlMode: true}, capability.Resolve(stance.Control, nil), false, ReasonShieldIntervention},
		{"sword missing capability", stance.Sword, shield.Decision{}, capability.Result{Stance: stance.Sword}, false, ReasonCapabilityNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Evaluate(tt.stance, tt.decision, tt.caps)
			assert.Equal(t, tt.eligible, e.Eligible)
			assert.Equal(t, tt.reason, e.Reason)
		})
	}
}

func TestRun(t *testing.T) {
	res := Run(stance.Lens, shield.Decision{}, capability.Resolve(stance.Lens, nil))
	assert.Equal(t, gate.IDSpark, res.GateID)
	assert.Equal(t, gate.StatusPass, res.Status)
	assert.False(t, res.Output.Eligible)
}
