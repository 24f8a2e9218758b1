package intent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/stancegate/internal/config"
	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/llm"
)

func cannedOracle(text string) llm.Oracle {
	return llm.OracleFunc(func(ctx context.Context, s, u string) (string, error) {
		return text, nil
	})
}

func failingOracle(err error) llm.Oracle {
	return llm.OracleFunc(func(ctx context.Context, s, u string) (string, error) {
		return "", err
	})
}

func TestOracleClassifier_NoisyGreeting(t *testing.T) {
	raw := "```json\n" + `{"type":"greeting","secondaryType":"question","primaryDomain":"finance","domains":["finance","legal"],"complexity":"complex","urgency":"high","safetySignal":"watch","confidence":0.8,"reasoningCode":"direct-question"}` + "\n```"
	c, tel := NewOracleClassifier(cannedOracle(raw), time.Second).Classify(context.Background(), "Hey what's up")

	assert.Equal(t, TypeGreeting, c.Type)
	assert.Equal(t, DomainGeneral, c.PrimaryDomain)
	assert.Equal(t, []Domain{DomainGeneral}, c.Domains)
	assert.Equal(t, ComplexitySimple, c.Complexity)
	assert.Equal(t, UrgencyLow, c.Urgency)
	assert.Equal(t, SafetyNone, c.SafetySignal)
	assert.False(t, tel.FailedOpen)
	assert.Equal(t, raw, tel.RawModelOutput)
	assert.Contains(t, tel.ValidationRepairs, RepairGreetingNormalized)
}

func TestOracleClassifier_UnfencedValid(t *testing.T) {
	raw := `{"type":"question","primaryDomain":"finance","domains":["finance"],"complexity":"medium","urgency":"low","safetySignal":"none","confidence":0.9,"reasoningCode":"direct-question"}`
	c, tel := NewOracleClassifier(cannedOracle(raw), 0).Classify(context.Background(), "how do index funds work?")

	assert.Equal(t, TypeQuestion, c.Type)
	assert.Equal(t, DomainFinance, c.PrimaryDomain)
	assert.Equal(t, 0.9, c.Confidence)
	assert.Empty(t, tel.ValidationRepairs)
	assert.False(t, tel.FailedOpen)
}

func TestOracleClassifier_FailOpen(t *testing.T) {
	tests := []struct {
		name   string
		oracle llm.Oracle
		tag    string
		raw    string
	}{
		{"nil oracle", nil, RepairOracleUnavailable, ""},
		{"not configured", failingOracle(fmt.Errorf("anthropic: %w", llm.ErrNotConfigured)), RepairOracleUnavailable, ""},
		{"oracle error", failingOracle(errors.New("connection refused")), RepairOracleError, ""},
		{"malformed output", cannedOracle("I would say this is a question."), RepairParseErrorFallback, "I would say this is a question."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, tel := NewOracleClassifier(tt.oracle, time.Second).Classify(context.Background(), "How do I file my taxes?")

			assert.True(t, tel.FailedOpen)
			require.NotEmpty(t, tel.ValidationRepairs)
			assert.Equal(t, tt.tag, tel.ValidationRepairs[0])
			assert.Equal(t, tt.raw, tel.RawModelOutput)

			want, _ := NewHeuristicClassifier().Classify(context.Background(), "How do I file my taxes?")
			assert.Equal(t, want, c)
			assert.Equal(t, DomainFinance, c.PrimaryDomain)
		})
	}
}

func TestOracleClassifier_TimeoutFailsOpen(t *testing.T) {
	slow := llm.OracleFunc(func(ctx context.Context, s, u string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	c, tel := NewOracleClassifier(slow, 10*time.Millisecond).Classify(context.Background(), "I want to kill myself")

	assert.True(t, tel.FailedOpen)
	assert.Equal(t, RepairOracleError, tel.ValidationRepairs[0])
	assert.Equal(t, SafetyHigh, c.SafetySignal)
}

func TestOracleClassifier_SendsSystemPrompt(t *testing.T) {
	var gotSystem, gotUser string
	o := llm.OracleFunc(func(ctx context.Context, s, u string) (string, error) {
		gotSystem, gotUser = s, u
		return `{"type":"question"}`, nil
	})

	NewOracleClassifier(o, 0).Classify(context.Background(), "hello?")
	assert.Contains(t, gotSystem, "safetySignal")
	assert.Equal(t, "hello?", gotUser)
}

func TestGate_UnavailableOracleSoftFails(t *testing.T) {
	g := NewGate(NewOracleClassifier(nil, time.Second))
	res := g.Run(context.Background(), "How do I file my taxes?")

	assert.Equal(t, gate.IDIntent, res.GateID)
	assert.Equal(t, gate.StatusSoftFail, res.Status)
	assert.Equal(t, gate.ActionContinue, res.Action)
	assert.True(t, res.Output.Telemetry.FailedOpen)
}

func TestGate_OraclePasses(t *testing.T) {
	g := NewGate(NewOracleClassifier(cannedOracle(`{"type":"action","primaryDomain":"productivity","domains":["productivity"],"complexity":"simple","urgency":"low","safetySignal":"none","confidence":0.9,"reasoningCode":"explicit-action"}`), 0))
	res := g.Run(context.Background(), "remind me to stretch")

	assert.Equal(t, gate.StatusPass, res.Status)
	assert.Equal(t, gate.ActionContinue, res.Action)
	assert.Equal(t, TypeAction, res.Output.Classification.Type)
}

func TestNew_SelectsByMode(t *testing.T) {
	_, isHeuristic := New(config.IntentConfig{Mode: config.ModeHeuristic}, nil).(*HeuristicClassifier)
	assert.True(t, isHeuristic)

	_, isOracle := New(config.IntentConfig{Mode: config.ModeOracle, Timeout: time.Second}, cannedOracle("{}")).(*OracleClassifier)
	assert.True(t, isOracle)
}
