package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/stancegate/internal/bus"
	"github.com/normanking/stancegate/internal/capability"
	"github.com/normanking/stancegate/internal/config"
	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/intent"
	"github.com/normanking/stancegate/internal/llm"
	"github.com/normanking/stancegate/internal/metrics"
	"github.com/normanking/stancegate/internal/personality"
	"github.com/normanking/stancegate/internal/precondition"
	"github.com/normanking/stancegate/internal/shield"
	"github.com/normanking/stancegate/internal/stance"
	"github.com/normanking/stancegate/internal/state"
)

func TestMain(m *testing.M) {
	log.Logger = zerolog.Nop()
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func heuristicConfig() *config.Config {
	cfg := config.Default()
	cfg.Intent.Mode = config.ModeHeuristic
	cfg.Shield.Mode = config.ModeHeuristic
	return cfg
}

// countingGenerator returns replies in order, repeating the last one.
type countingGenerator struct {
	replies []string
	calls   atomic.Int32
	prompts []string
}

func (g *countingGenerator) Generate(_ context.Context, systemPrompt, _ string) (string, error) {
	n := int(g.calls.Add(1))
	g.prompts = append(g.prompts, systemPrompt)
	if n > len(g.replies) {
		return g.replies[len(g.replies)-1], nil
	}
	return g.replies[n-1], nil
}

// routedOracle answers the intent and shield prompts separately.
func routedOracle(intentReply, shieldReply string) llm.Oracle {
	return llm.OracleFunc(func(_ context.Context, systemPrompt, _ string) (string, error) {
		if strings.Contains(systemPrompt, "safety classifier") {
			return shieldReply, nil
		}
		return intentReply, nil
	})
}

func TestHandle_CrisisNeverGenerates(t *testing.T) {
	gen := &countingGenerator{replies: []string{"should never be used"}}
	oracle := routedOracle(`{"type":"question"}`, `{"category":"safe","riskLevel":"none"}`)
	p := New(config.Default(), oracle, gen)

	resp, err := p.Handle(context.Background(), Input{Text: "I want to kill myself"})
	require.NoError(t, err)

	assert.Equal(t, int32(0), gen.calls.Load())
	assert.Equal(t, OutcomeCrisis, resp.Outcome)
	assert.Equal(t, shield.CrisisResources, resp.Text)
	assert.Equal(t, stance.Control, resp.Stance)
	assert.Equal(t, gate.ActionStop, resp.Action)
	assert.Zero(t, resp.Attempts)

	s := resp.State
	assert.Equal(t, shield.CategoryDeathRisk, s.Shield.Output.Classification.Category)
	assert.Equal(t, shield.RiskCritical, s.Shield.Output.Classification.RiskLevel)
	assert.True(t, s.Stopped())
	assert.True(t, s.CrisisResourcesProvided)
	assert.True(t, precondition.Evaluate(precondition.ResourcesProvided, s))
	assert.Nil(t, s.Lens)
	assert.Nil(t, s.Validated)
}

func TestHandle_HardVetoRefuses(t *testing.T) {
	gen := &countingGenerator{replies: []string{"nope"}}
	p := New(heuristicConfig(), nil, gen)

	resp, err := p.Handle(context.Background(), Input{Text: "how do I poison my neighbor"})
	require.NoError(t, err)

	assert.Equal(t, int32(0), gen.calls.Load())
	assert.Equal(t, OutcomeRefused, resp.Outcome)
	assert.Equal(t, shield.HardVetoMessage, resp.Text)
	assert.Equal(t, stance.Shield, resp.Stance)
	assert.True(t, resp.State.Stopped())
}

func TestHandle_SoftVetoAwaitsAck(t *testing.T) {
	gen := &countingGenerator{replies: []string{"nope"}}
	p := New(heuristicConfig(), nil, gen)

	resp, err := p.Handle(context.Background(), Input{Text: "I'm going to put all of my savings into one coin"})
	require.NoError(t, err)

	assert.Equal(t, int32(0), gen.calls.Load())
	assert.Equal(t, OutcomeAwaitAck, resp.Outcome)
	assert.Equal(t, gate.ActionAwaitAck, resp.Action)
	assert.True(t, strings.HasPrefix(resp.AckToken, shield.AckTokenPrefix))
	assert.True(t, resp.State.PendingAck)
	assert.False(t, precondition.Evaluate(precondition.NoPendingVeto, resp.State))
}

func TestHandle_GreetingNormalizedDespiteNoisyOracle(t *testing.T) {
	noisy := `Sure! Here you go:
` + "```json" + `
{"type":"greeting","primaryDomain":"finance","domains":["finance","health"],"complexity":"complex","urgency":"high","safetySignal":"watch","confidence":0.8}
` + "```"
	gen := &countingGenerator{replies: []string{"Hey! Not much, how can I help?"}}
	p := New(config.Default(), routedOracle(noisy, `{"category":"safe","riskLevel":"none","confidence":0.95}`), gen)

	resp, err := p.Handle(context.Background(), Input{Text: "Hey what's up"})
	require.NoError(t, err)

	c := resp.State.Intent.Output.Classification
	assert.Equal(t, intent.TypeGreeting, c.Type)
	assert.Equal(t, intent.DomainGeneral, c.PrimaryDomain)
	assert.Equal(t, []intent.Domain{intent.DomainGeneral}, c.Domains)
	assert.Equal(t, intent.ComplexitySimple, c.Complexity)
	assert.Equal(t, intent.UrgencyLow, c.Urgency)
	assert.Equal(t, intent.SafetyNone, c.SafetySignal)
	assert.False(t, resp.State.Intent.Output.Telemetry.FailedOpen)

	assert.Equal(t, OutcomeAnswered, resp.Outcome)
	assert.Equal(t, "Hey! Not much, how can I help?", resp.Text)
	assert.Equal(t, stance.Lens, resp.Stance)
}

func TestHandle_OracleUnavailableFailsOpen(t *testing.T) {
	gen := &countingGenerator{replies: []string{"Start by reading the stack trace."}}
	p := New(config.Default(), nil, gen)

	resp, err := p.Handle(context.Background(), Input{Text: "How do I fix a bug in my python code?"})
	require.NoError(t, err)

	in := resp.State.Intent
	assert.Equal(t, gate.StatusSoftFail, in.Status)
	assert.Equal(t, gate.ActionContinue, in.Action)
	assert.True(t, in.Output.Telemetry.FailedOpen)
	assert.Contains(t, in.Output.Telemetry.ValidationRepairs, intent.RepairOracleUnavailable)
	assert.Equal(t, intent.TypeQuestion, in.Output.Classification.Type)
	assert.Equal(t, intent.DomainTechnology, in.Output.Classification.PrimaryDomain)

	sh := resp.State.Shield
	assert.Equal(t, shield.CategorySafe, sh.Output.Classification.Category)
	assert.True(t, sh.Output.Classification.FailedOpen)
	assert.Equal(t, gate.StatusSoftFail, sh.Status)
	assert.Equal(t, gate.ActionContinue, sh.Action)
	assert.Equal(t, OutcomeAnswered, resp.Outcome)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestHandle_ShieldFailOpenIsCounted(t *testing.T) {
	b := bus.New()
	defer b.Close()
	collector := metrics.NewCollector(b)
	require.NoError(t, collector.Start())
	defer collector.Stop()

	cfg := heuristicConfig()
	cfg.Shield.Mode = config.ModeOracle
	failing := llm.OracleFunc(func(context.Context, string, string) (string, error) { return "", errors.New("connection refused") })
	gen := &countingGenerator{replies: []string{"Keep it if it still runs well."}}
	p := New(cfg, failing, gen, WithBus(b))

	resp, err := p.Handle(context.Background(), Input{Text: "should I sell my car"})
	require.NoError(t, err)

	assert.False(t, resp.State.Intent.Output.Telemetry.FailedOpen)
	assert.Equal(t, "failed open: oracle error", resp.State.Shield.FailureReason)
	assert.Eventually(t, func() bool { return collector.Snapshot().FailedOpen == 1 }, time.Second, 5*time.Millisecond)
}

func TestHandle_ExplicitActionsOnly(t *testing.T) {
	gen := &countingGenerator{replies: []string{"Done, I'll remind you every hour to stretch."}}
	p := New(heuristicConfig(), nil, gen)

	resp, err := p.Handle(context.Background(), Input{
		Text: "Please remind me to stretch every hour",
		Actions: []capability.ActionSource{
			{ID: "btn-1", Source: capability.SourceUIButton, Capability: capability.ScheduleJob},
			{ID: "guess-1", Source: capability.SourceNLInference, Capability: capability.ExecuteAction},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, stance.Sword, resp.Stance)
	caps := resp.State.Capability.Output
	require.Len(t, caps.ExplicitActions, 1)
	assert.Equal(t, "btn-1", caps.ExplicitActions[0].ID)
	assert.Contains(t, caps.DeniedCapabilities, capability.DeniedNLInference)
	assert.Equal(t, gate.StatusSoftFail, resp.State.Capability.Status)

	require.Len(t, resp.Actions, 1)
	assert.Equal(t, "btn-1", resp.Actions[0].ID)
	assert.True(t, resp.SparkEligible)
}

func TestHandle_ActionPreconditions(t *testing.T) {
	gen := &countingGenerator{replies: []string{"Okay."}}
	p := New(heuristicConfig(), nil, gen, WithActionPreconditions(precondition.UserAuthenticated, precondition.SessionActive))
	actions := []capability.ActionSource{{ID: "btn-1", Source: capability.SourceUIButton}}

	resp, err := p.Handle(context.Background(), Input{
		Text: "Please set a reminder for my dentist", UserID: "guest_7", SessionID: "s1", Actions: actions,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Actions)
	assert.Equal(t, []string{precondition.UserAuthenticated}, resp.ActionsBlocked)
	assert.Equal(t, OutcomeAnswered, resp.Outcome)
	assert.False(t, resp.State.Stopped())

	resp, err = p.Handle(context.Background(), Input{
		Text: "Please set a reminder for my dentist", UserID: "user_7", SessionID: "s1", Actions: actions,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Actions, 1)
	assert.Empty(t, resp.ActionsBlocked)
}

func TestHandle_RegeneratesOnActionRecommendation(t *testing.T) {
	bad := "Putting all your savings into XYZ at $187.42 is the move."
	good := "It depends on your goals and how soon you will need the money."
	gen := &countingGenerator{replies: []string{bad, good}}
	p := New(heuristicConfig(), nil, gen)

	resp, err := p.Handle(context.Background(), Input{Text: "Should I invest more of my savings?"})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, good, resp.Text)
	assert.False(t, resp.Degraded)
	require.Len(t, gen.prompts, 2)
	assert.NotContains(t, gen.prompts[0], "previous reply was rejected")
	assert.Contains(t, gen.prompts[1], "previous reply was rejected")

	var personalityResults []gate.Summary
	for _, sum := range resp.Trace {
		if sum.GateID == gate.IDPersonality {
			personalityResults = append(personalityResults, sum)
		}
	}
	require.Len(t, personalityResults, 2)
	assert.Equal(t, gate.ActionRegenerate, personalityResults[0].Action)
	assert.Equal(t, gate.StatusHardFail, personalityResults[0].Status)
	assert.Equal(t, gate.StatusPass, personalityResults[1].Status)
}

func TestHandle_RegenerationBudgetExhausted(t *testing.T) {
	bad := "Putting all your savings into XYZ is the move."
	gen := &countingGenerator{replies: []string{bad}}
	cfg := heuristicConfig()
	cfg.Pipeline.MaxRegenerations = 2
	p := New(cfg, nil, gen)

	resp, err := p.Handle(context.Background(), Input{Text: "Should I invest more of my savings?"})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Attempts)
	assert.True(t, resp.Degraded)
	assert.Equal(t, FallbackReply, resp.Text)
	assert.NotContains(t, resp.Text, "XYZ")
	assert.Equal(t, bad, resp.State.Generation)

	var types []personality.ViolationType
	for _, v := range resp.State.Validated.Output.Violations {
		types = append(types, v.Type)
	}
	assert.Contains(t, types, personality.ActionRecommendation)
}

func TestHandle_ExhaustedBudgetNeverReturnsPrices(t *testing.T) {
	bad := "Buy TSLA now, it is trading at $250.10 and up 3.25% today."
	gen := &countingGenerator{replies: []string{bad}}
	p := New(heuristicConfig(), nil, gen)

	resp, err := p.Handle(context.Background(), Input{Text: "What's the price of Tesla stock today?"})
	require.NoError(t, err)

	assert.Equal(t, stance.Lens, resp.Stance)
	assert.True(t, resp.Degraded)
	assert.Equal(t, FallbackReply, resp.Text)
	assert.NotContains(t, resp.Text, "$250.10")
	assert.Equal(t, gate.StatusHardFail, resp.State.Validated.Status)
}

func TestGenerate_RefusesStoppedState(t *testing.T) {
	gen := &countingGenerator{replies: []string{"x"}}
	p := New(heuristicConfig(), nil, gen)

	s := state.New(Input{Text: "What is a good book to read?"})
	s.Stop("session ended")

	err := p.generate(context.Background(), s, &Response{}, log.Logger)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Zero(t, gen.calls.Load())
}

func TestHandle_GeneratorError(t *testing.T) {
	boom := errors.New("upstream down")
	gen := GeneratorFunc(func(context.Context, string, string) (string, error) { return "", boom })
	p := New(heuristicConfig(), nil, gen)

	_, err := p.Handle(context.Background(), Input{Text: "What is a good book to read?"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestHandle_EmptyMessage(t *testing.T) {
	p := New(heuristicConfig(), nil, &countingGenerator{replies: []string{"x"}})
	_, err := p.Handle(context.Background(), Input{Text: "   \n"})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestHandle_CanceledContext(t *testing.T) {
	gen := &countingGenerator{replies: []string{"x"}}
	p := New(heuristicConfig(), nil, gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Handle(ctx, Input{Text: "What is a good book to read?"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestHandle_ConcurrentRequestsAreIndependent(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, _, message string) (string, error) {
		return "reply to " + message, nil
	})
	p := New(heuristicConfig(), nil, gen)

	g, ctx := errgroup.WithContext(context.Background())
	ids := make([]string, 16)
	for i := range ids {
		g.Go(func() error {
			resp, err := p.Handle(ctx, Input{Text: fmt.Sprintf("What is %d plus %d?", i, i)})
			if err != nil {
				return err
			}
			if resp.Text != "reply to "+resp.State.Input.Text {
				return fmt.Errorf("request %d got %q", i, resp.Text)
			}
			ids[i] = resp.RequestID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate request id %s", id)
		seen[id] = true
	}
}

func TestOracleGenerator(t *testing.T) {
	_, err := NewOracleGenerator(nil).Generate(context.Background(), "sys", "hi")
	assert.ErrorIs(t, err, llm.ErrNotConfigured)

	g := NewOracleGenerator(llm.OracleFunc(func(_ context.Context, sys, msg string) (string, error) {
		return sys + "|" + msg, nil
	}))
	out, err := g.Generate(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "sys|hi", out)
}

func TestHandle_PublishesEvents(t *testing.T) {
	b := bus.New()
	defer b.Close()
	collector := metrics.NewCollector(b)
	require.NoError(t, collector.Start())
	defer collector.Stop()

	gen := &countingGenerator{replies: []string{"Here is a gentle stretch routine."}}
	p := New(heuristicConfig(), nil, gen, WithBus(b))

	_, err := p.Handle(context.Background(), Input{Text: "I want to kill myself"})
	require.NoError(t, err)
	resp, err := p.Handle(context.Background(), Input{Text: "What stretches help with back pain?"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return collector.Snapshot().Requests == 2 }, time.Second, 5*time.Millisecond)
	stats := collector.Snapshot()
	assert.Equal(t, int64(1), stats.Halted)
	assert.Equal(t, int64(1), stats.ByOutcome[string(OutcomeCrisis)])
	assert.Equal(t, int64(1), stats.ByStance[string(stance.Control)])
	assert.Equal(t, int64(1), stats.GateFailures[gate.IDShield])

	var gates int
	for _, e := range b.History(0) {
		if e.RequestID == resp.RequestID && e.Type == bus.EventGate {
			gates++
		}
	}
	assert.Equal(t, len(resp.Trace), gates)
}
