package gate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Halts(t *testing.T) {
	tests := []struct {
		action Action
		halts  bool
	}{
		{ActionContinue, false},
		{ActionStop, true},
		{ActionRegenerate, false},
		{ActionDegrade, false},
		{ActionAwaitAck, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.halts, tt.action.Halts())
		})
	}
}

func TestStatus_Failed(t *testing.T) {
	assert.False(t, StatusPass.Failed())
	assert.True(t, StatusSoftFail.Failed())
	assert.True(t, StatusHardFail.Failed())
}

func TestFinish_BuildsEnvelope(t *testing.T) {
	timer := Start(IDLens)
	res := Finish(timer, StatusSoftFail, ActionDegrade, "payload", "needs verification")

	assert.Equal(t, IDLens, res.GateID)
	assert.Equal(t, StatusSoftFail, res.Status)
	assert.Equal(t, ActionDegrade, res.Action)
	assert.Equal(t, "payload", res.Output)
	assert.Equal(t, "needs verification", res.FailureReason)
	assert.GreaterOrEqual(t, res.ExecutionTimeMs, int64(0))
	assert.False(t, res.Halts())
}

func TestResult_JSONShape(t *testing.T) {
	res := Pass(Start(IDStance), map[string]string{"stance": "sword"})

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "stance", decoded["gateId"])
	assert.Equal(t, "pass", decoded["status"])
	assert.Equal(t, "continue", decoded["action"])
	assert.Contains(t, decoded, "executionTimeMs")
	assert.NotContains(t, decoded, "failureReason")
}

func TestResult_Summary(t *testing.T) {
	res := Finish(Start(IDShield), StatusHardFail, ActionStop, 42, "hard veto")
	sum := res.Summary()

	assert.Equal(t, IDShield, sum.GateID)
	assert.Equal(t, StatusHardFail, sum.Status)
	assert.Equal(t, ActionStop, sum.Action)
	assert.Equal(t, "hard veto", sum.FailureReason)
}
