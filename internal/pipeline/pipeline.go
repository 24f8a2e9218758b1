// Package pipeline runs a message through the gates in order and produces
// the reply. A Pipeline is built once and shared; it holds no per-request
// state, so Handle is safe for concurrent use.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/bus"
	"github.com/normanking/stancegate/internal/capability"
	"github.com/normanking/stancegate/internal/config"
	"github.com/normanking/stancegate/internal/constraint"
	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/intent"
	"github.com/normanking/stancegate/internal/lens"
	"github.com/normanking/stancegate/internal/llm"
	"github.com/normanking/stancegate/internal/personality"
	"github.com/normanking/stancegate/internal/precondition"
	"github.com/normanking/stancegate/internal/shield"
	"github.com/normanking/stancegate/internal/spark"
	"github.com/normanking/stancegate/internal/stance"
	"github.com/normanking/stancegate/internal/state"
)

// ErrEmptyMessage is returned for input with no text after normalization.
var ErrEmptyMessage = errors.New("empty message")

// ErrStopped is returned when generation is attempted on a stopped request.
var ErrStopped = errors.New("request stopped")

// FallbackReply replaces generated text that still fails validation once
// the regeneration budget is spent.
const FallbackReply = "I can't give specific advice or exact figures on this. " + constraint.DisclaimerText

// Input is one inbound message.
type Input = state.Input

// Outcome describes how a request ended.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeCrisis   Outcome = "crisis"
	OutcomeRefused  Outcome = "refused"
	OutcomeAwaitAck Outcome = "await_ack"
)

// Response is the result of handling one message.
type Response struct {
	RequestID string        `json:"requestId"`
	Outcome   Outcome       `json:"outcome"`
	Text      string        `json:"text"`
	Stance    stance.Stance `json:"stance"`
	Action    gate.Action   `json:"action"`
	AckToken  string        `json:"ackToken,omitempty"`

	// Degraded is set when the reply was produced under reduced guarantees:
	// unverified time-sensitive content or exhausted regenerations.
	Degraded bool `json:"degraded"`
	// Attempts counts generator calls.
	Attempts int `json:"attempts"`

	Actions        []capability.ActionSource `json:"actions,omitempty"`
	ActionsBlocked []string                  `json:"actionsBlocked,omitempty"`
	SparkEligible  bool                      `json:"sparkEligible"`

	Trace []gate.Summary       `json:"trace"`
	State *state.PipelineState `json:"-"`
}

// Pipeline wires the gates together.
type Pipeline struct {
	intent           *intent.Gate
	shield           *shield.Gate
	lens             *lens.Gate
	personality      *personality.Gate
	generator        Generator
	constraints      constraint.Options
	maxRegenerations int
	actionChecks     []string
	events           *bus.Bus
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithVerifier sets the live verifier used by the lens gate.
func WithVerifier(v lens.Verifier) Option {
	return func(p *Pipeline) {
		p.lens = lens.NewGate(v)
	}
}

// WithActionPreconditions names the preconditions every explicit action
// requires. Actions are dropped from the response when any fails.
func WithActionPreconditions(names ...string) Option {
	return func(p *Pipeline) {
		p.actionChecks = append(p.actionChecks, names...)
	}
}

// WithBus publishes every gate result and request outcome to b.
func WithBus(b *bus.Bus) Option {
	return func(p *Pipeline) {
		p.events = b
	}
}

// WithIntentClassifier overrides the classifier selected from config.
func WithIntentClassifier(c intent.Classifier) Option {
	return func(p *Pipeline) {
		p.intent = intent.NewGate(c)
	}
}

// WithShieldClassifier overrides the classifier selected from config.
func WithShieldClassifier(c shield.Classifier) Option {
	return func(p *Pipeline) {
		p.shield = shield.NewGate(c)
	}
}

// New builds a pipeline. oracle backs the classifiers in oracle mode and
// may be nil, in which case they fail open.
func New(cfg *config.Config, oracle llm.Oracle, generator Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		intent:           intent.NewGate(intent.New(cfg.Intent, oracle)),
		shield:           shield.NewGate(shield.New(cfg.Shield, oracle)),
		lens:             lens.NewGate(nil),
		personality:      personality.NewGate(personality.NewValidator(cfg.Personality.ActionThreshold)),
		generator:        generator,
		constraints:      constraint.OptionsFromConfig(cfg.Personality),
		maxRegenerations: cfg.Pipeline.MaxRegenerations,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Handle runs in through every gate. Errors are returned only for empty
// input, cancellation, or a failing generator; gate failures degrade instead.
func (p *Pipeline) Handle(ctx context.Context, in Input) (*Response, error) {
	s := state.New(in)
	if s.Input.Text == "" {
		return nil, ErrEmptyMessage
	}

	start := time.Now()
	resp := &Response{RequestID: uuid.NewString(), State: s}
	logger := log.With().Str("request_id", resp.RequestID).Logger()

	s.SetIntent(p.intent.Run(ctx, s.Input.Text))
	s.SetShield(p.shield.Run(ctx, s.Input.Text))
	kind := s.Intent.Output.Classification.Type

	if s.Stopped() || s.Shield.Halts() {
		s.SetStance(stance.Run(s.Shield.Output, lens.Assessment{}, kind))
		p.halt(s, resp, logger)
		p.publish(resp, bus.EventRequestHalted, time.Since(start))
		return resp, nil
	}

	s.SetLens(p.lens.Run(ctx, s.Input.Text))
	s.SetStance(stance.Run(s.Shield.Output, s.Lens.Output, kind))
	st := s.Stance.Output.Stance

	s.SetCapability(capability.Run(st, s.Input.Actions))
	p.gateActions(s, resp)

	s.SetConstraints(constraint.Run(constraint.Input{
		Stance:         st,
		Classification: s.Intent.Output.Classification,
		Lens:           s.Lens.Output,
	}, p.constraints))

	if err := p.generate(ctx, s, resp, logger); err != nil {
		return nil, err
	}

	s.SetSpark(spark.Run(st, s.Shield.Output, s.Capability.Output))

	resp.Outcome = OutcomeAnswered
	resp.Stance = st
	resp.Action = gate.ActionContinue
	resp.SparkEligible = s.Spark.Output.Eligible
	resp.Degraded = resp.Degraded || s.Lens.Action == gate.ActionDegrade
	resp.Trace = s.Trace

	logger.Info().
		Str("stance", string(st)).
		Int("attempts", resp.Attempts).
		Bool("degraded", resp.Degraded).
		Bool("spark", resp.SparkEligible).
		Msg("request answered")

	p.publish(resp, bus.EventRequestCompleted, time.Since(start))
	return resp, nil
}

// halt builds the response for a shield stop or await_ack. The generator is
// never called on this path.
func (p *Pipeline) halt(s *state.PipelineState, resp *Response, logger zerolog.Logger) {
	d := s.Shield.Output
	resp.Stance = s.Stance.Output.Stance
	resp.Action = s.Shield.Action
	resp.Trace = s.Trace

	switch {
	case d.ControlMode:
		resp.Outcome = OutcomeCrisis
		resp.Text = shield.CrisisResources
		s.CrisisResourcesProvided = true
	case d.VetoType == shield.VetoSoft:
		resp.Outcome = OutcomeAwaitAck
		resp.Text = shield.SoftVetoMessage
		resp.AckToken = d.AckToken
	default:
		resp.Outcome = OutcomeRefused
		resp.Text = shield.HardVetoMessage
	}

	logger.Warn().
		Str("outcome", string(resp.Outcome)).
		Str("stance", string(resp.Stance)).
		Str("category", string(d.Classification.Category)).
		Str("reason", s.Shield.FailureReason).
		Msg("request halted by shield")
}

// publish sends the trace and the outcome to the bus, if one is set.
func (p *Pipeline) publish(resp *Response, t bus.EventType, elapsed time.Duration) {
	if p.events == nil {
		return
	}

	for _, sum := range resp.Trace {
		if err := p.events.Publish(bus.GateEvent(resp.RequestID, sum)); err != nil {
			log.Debug().Err(err).Str("request_id", resp.RequestID).Msg("event not published")
			return
		}
	}

	e := bus.NewEvent(t, resp.RequestID)
	e.Stance = string(resp.Stance)
	e.Outcome = string(resp.Outcome)
	e.Attempts = resp.Attempts
	e.Degraded = resp.Degraded
	e.FailedOpen = failedOpen(resp.State)
	e.DurationMs = elapsed.Milliseconds()
	if err := p.events.Publish(e); err != nil {
		log.Debug().Err(err).Str("request_id", resp.RequestID).Msg("event not published")
	}
}

func failedOpen(s *state.PipelineState) bool {
	if s.Intent != nil && s.Intent.Output.Telemetry.FailedOpen {
		return true
	}
	return s.Shield != nil && s.Shield.Output.Classification.FailedOpen
}

// gateActions copies the explicit actions into the response once the
// configured preconditions hold.
func (p *Pipeline) gateActions(s *state.PipelineState, resp *Response) {
	actions := s.Capability.Output.ExplicitActions
	if len(actions) == 0 {
		return
	}
	if len(p.actionChecks) > 0 {
		res := precondition.Run(p.actionChecks, s)
		s.Record(res.Summary())
		if !res.Output.Satisfied {
			resp.ActionsBlocked = res.Output.Failed
			return
		}
	}
	resp.Actions = actions
}

// generate calls the generator and validates its output, regenerating with
// the rejected phrases until the text passes or the budget runs out.
func (p *Pipeline) generate(ctx context.Context, s *state.PipelineState, resp *Response, logger zerolog.Logger) error {
	if s.Stopped() {
		return fmt.Errorf("generate: %w: %s", ErrStopped, s.StopReason())
	}
	if p.generator == nil {
		return fmt.Errorf("generate: %w", llm.ErrNotConfigured)
	}

	c := s.Constraints.Output
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("generate: %w", err)
		}

		text, err := p.generator.Generate(ctx, c.SystemPrompt(), s.Input.Text)
		resp.Attempts++
		if err != nil {
			return fmt.Errorf("generate attempt %d: %w", attempt+1, err)
		}
		s.Generation = text

		res := p.personality.Run(text, c)
		s.SetValidated(res)
		resp.Text = res.Output.Text

		if res.Action != gate.ActionRegenerate {
			return nil
		}
		if attempt >= p.maxRegenerations {
			logger.Warn().
				Int("attempts", resp.Attempts).
				Strs("violations", res.Output.RegenerationPhrases()).
				Msg("regeneration budget exhausted, replying with fallback")
			resp.Text = FallbackReply
			resp.Degraded = true
			return nil
		}

		logger.Debug().
			Int("attempt", attempt+1).
			Str("reason", res.FailureReason).
			Msg("regenerating")
		c = c.WithRegeneration(res.Output.RegenerationPhrases())
	}
}
