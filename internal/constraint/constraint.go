// Package constraint derives generation-time constraints from the decisions
// made by the upstream gates.
package constraint

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/config"
	"github.com/normanking/stancegate/internal/gate"
	"github.com/normanking/stancegate/internal/intent"
	"github.com/normanking/stancegate/internal/lens"
	"github.com/normanking/stancegate/internal/shield"
	"github.com/normanking/stancegate/internal/stance"
)

// DefaultBannedPhrases are never allowed in generated text.
var DefaultBannedPhrases = []string{
	"as an ai language model",
	"as an ai",
	"i'm just an ai",
	"i hope this helps",
	"it's important to note that",
	"i'm not able to have feelings",
}

// DefaultMaxSelfReferences caps we/us/our per reply.
const DefaultMaxSelfReferences = 3

// DisclaimerText is the sentence the generator is asked to include when
// freshness-sensitive content could not be verified.
const DisclaimerText = "I can't verify this in real time, so please check a current source before acting on it."

// Constraints steer generation and drive the personality validator.
type Constraints struct {
	Stance                       stance.Stance `json:"stance"`
	BannedPhrases                []string      `json:"bannedPhrases"`
	MaxSelfReferences            int           `json:"maxSelfReferences"`
	ActionRecommendationsAllowed bool          `json:"actionRecommendationsAllowed"`
	NumericPrecisionAllowed      bool          `json:"numericPrecisionAllowed"`
	RequireDisclaimer            bool          `json:"requireDisclaimer"`
	MustInclude                  []string      `json:"mustInclude,omitempty"`
	MustNotInclude               []string      `json:"mustNotInclude,omitempty"`
	// PromptPrefix leads the prompt context. It is never spliced into the reply.
	PromptPrefix string   `json:"promptPrefix,omitempty"`
	PromptNotes  []string `json:"promptNotes,omitempty"`
	// Regeneration holds phrases a previous attempt was rejected for.
	Regeneration []string `json:"regeneration,omitempty"`
}

// Options are the configurable parts of the constraints.
type Options struct {
	BannedPhrases     []string
	MaxSelfReferences int
}

// OptionsFromConfig reads Options from the personality config, falling back
// to the defaults for empty values.
func OptionsFromConfig(cfg config.PersonalityConfig) Options {
	return Options{
		BannedPhrases:     cfg.BannedPhrases,
		MaxSelfReferences: cfg.MaxSelfReferences,
	}
}

// Input is the upstream state the builder reads.
type Input struct {
	Stance         stance.Stance
	Classification intent.Classification
	Lens           lens.Assessment
}

// Build derives the constraints for one generation.
func Build(in Input, opts Options) Constraints {
	c := Constraints{
		Stance:                       in.Stance,
		BannedPhrases:                slices.Clone(DefaultBannedPhrases),
		MaxSelfReferences:            DefaultMaxSelfReferences,
		ActionRecommendationsAllowed: true,
		NumericPrecisionAllowed:      true,
	}
	if len(opts.BannedPhrases) > 0 {
		c.BannedPhrases = slices.Clone(opts.BannedPhrases)
	}
	if opts.MaxSelfReferences > 0 {
		c.MaxSelfReferences = opts.MaxSelfReferences
	}

	if in.Classification.HighStakes() {
		c.ActionRecommendationsAllowed = false
	}

	switch {
	case in.Lens.Unresolved():
		c.ActionRecommendationsAllowed = false
		c.NumericPrecisionAllowed = false
		c.RequireDisclaimer = true
		c.PromptNotes = append(c.PromptNotes, fmt.Sprintf(
			"The user is asking about %s, which changes within %s and could not be verified. Do not state exact prices, figures or percentages. Include this disclaimer: %q",
			humanize(in.Lens.Domain), window(in.Lens.FreshnessWindow), DisclaimerText))
	case in.Lens.Matched:
		c.PromptNotes = append(c.PromptNotes, fmt.Sprintf(
			"Information about %s goes stale within %s. Say when your information may be out of date.",
			humanize(in.Lens.Domain), window(in.Lens.FreshnessWindow)))
	}

	switch in.Stance {
	case stance.Control:
		c.PromptPrefix = shield.CrisisResources
		c.ActionRecommendationsAllowed = false
	case stance.Shield:
		c.ActionRecommendationsAllowed = false
		c.PromptNotes = append(c.PromptNotes, "Acknowledge the risk plainly before anything else. Do not encourage the risky course of action.")
	}

	return c
}

// WithRegeneration returns a copy carrying the phrases a previous attempt
// was rejected for.
func (c Constraints) WithRegeneration(phrases []string) Constraints {
	c.Regeneration = append(slices.Clone(c.Regeneration), phrases...)
	return c
}

// SystemPrompt renders the constraints as instructions for the generator.
func (c Constraints) SystemPrompt() string {
	var b strings.Builder

	if c.PromptPrefix != "" {
		b.WriteString(c.PromptPrefix)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "You are a helpful personal assistant operating in %s mode.\n", c.Stance)
	b.WriteString("Rules:\n")
	if len(c.BannedPhrases) > 0 {
		fmt.Fprintf(&b, "- Never use these phrases: %s.\n", quoteList(c.BannedPhrases))
	}
	fmt.Fprintf(&b, "- Use \"we\", \"us\" or \"our\" at most %d times.\n", c.MaxSelfReferences)
	b.WriteString("- Do not open with flattery such as \"Great question\".\n")
	if !c.ActionRecommendationsAllowed {
		b.WriteString("- Do not tell the user to buy, sell or invest in anything specific.\n")
	}
	if !c.NumericPrecisionAllowed {
		b.WriteString("- Do not state exact prices, currency amounts or decimal percentages.\n")
	}
	if c.RequireDisclaimer {
		fmt.Fprintf(&b, "- Include this disclaimer: %q\n", DisclaimerText)
	}
	for _, s := range c.MustInclude {
		fmt.Fprintf(&b, "- Include: %q\n", s)
	}
	for _, s := range c.MustNotInclude {
		fmt.Fprintf(&b, "- Never include: %q\n", s)
	}
	for _, n := range c.PromptNotes {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	if len(c.Regeneration) > 0 {
		fmt.Fprintf(&b, "- Your previous reply was rejected. Avoid: %s.\n", quoteList(c.Regeneration))
	}
	return b.String()
}

// Run wraps Build in the gate envelope.
func Run(in Input, opts Options) gate.Result[Constraints] {
	timer := gate.Start(gate.IDConstraint)
	c := Build(in, opts)

	log.Debug().
		Str("gate", string(gate.IDConstraint)).
		Str("stance", string(c.Stance)).
		Bool("action_recommendations", c.ActionRecommendationsAllowed).
		Bool("numeric_precision", c.NumericPrecisionAllowed).
		Bool("disclaimer", c.RequireDisclaimer).
		Msg("constraints built")

	return gate.Pass(timer, c)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}

func humanize(domain string) string {
	if domain == "" {
		return "this topic"
	}
	return strings.ReplaceAll(domain, "_", " ")
}

func window(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short time"
	case d >= 24*time.Hour:
		return fmt.Sprintf("%d days", int(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
