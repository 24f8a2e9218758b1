package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/stancegate/internal/capability"
	"github.com/normanking/stancegate/internal/pipeline"
	"github.com/normanking/stancegate/internal/stance"
)

func TestParseActions(t *testing.T) {
	got, err := parseActions([]string{"ui_button:schedule_job", "nl_inference"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, capability.ActionSource{ID: "action-1", Source: capability.SourceUIButton, Capability: capability.ScheduleJob}, got[0])
	assert.Equal(t, capability.SourceNLInference, got[1].Source)
	assert.Empty(t, got[1].Capability)

	_, err = parseActions([]string{":execute_action"})
	assert.Error(t, err)
}

func TestCheckKnown(t *testing.T) {
	assert.NoError(t, checkKnown([]string{"session_active", "user_authenticated"}))
	assert.NoError(t, checkKnown(nil))
	assert.ErrorContains(t, checkKnown([]string{"session_active", "is_admin"}), "is_admin")
}

func TestRender_PlainWhenColorDisabled(t *testing.T) {
	setupColor(true)

	assert.Equal(t, "control", strings.TrimSpace(renderStance(stance.Control)))
	assert.Equal(t, "answered", renderOutcome(pipeline.OutcomeAnswered))
	assert.Equal(t, "refused", renderOutcome(pipeline.OutcomeRefused))
	assert.Equal(t, "unknown", renderStance(stance.Stance("unknown")))
}
