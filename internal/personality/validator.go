// Package personality checks generated text against the active constraints
// and decides whether a violation can be edited out or forces regeneration.
package personality

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/constraint"
	"github.com/normanking/stancegate/internal/gate"
)

// Severity of a violation. High severity is never surgically editable.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ViolationType names a class of violation.
type ViolationType string

const (
	BannedPhrase         ViolationType = "banned_phrase"
	SelfReferenceOveruse ViolationType = "self_reference_overuse"
	Manipulation         ViolationType = "manipulation"
	Dependency           ViolationType = "dependency"
	SycophanticOpener    ViolationType = "sycophantic_opener"
	MissingRequired      ViolationType = "missing_required"
	ForbiddenContent     ViolationType = "forbidden_content"
	MissingDisclaimer    ViolationType = "missing_disclaimer"
	ActionRecommendation ViolationType = "action_recommendation"
	PreciseNumber        ViolationType = "precise_number"
)

// Violation is one problem found in the text.
type Violation struct {
	Type            ViolationType `json:"type"`
	Phrase          string        `json:"phrase"`
	Severity        Severity      `json:"severity"`
	CanSurgicalEdit bool          `json:"canSurgicalEdit"`
}

// Report is the validator's output.
type Report struct {
	// Text is the input with surgical edits applied.
	Text       string      `json:"text"`
	Edited     bool        `json:"edited"`
	Violations []Violation `json:"violations"`
	// ActionScore is the action-recommendation confidence, zero when the
	// semantic pass did not run.
	ActionScore float64 `json:"actionScore"`
}

// HasHigh reports whether any violation is high severity.
func (r Report) HasHigh() bool {
	return slices.ContainsFunc(r.Violations, func(v Violation) bool { return v.Severity == SeverityHigh })
}

// RegenerationPhrases lists the phrases of every violation that cannot be
// edited out, deduplicated in order.
func (r Report) RegenerationPhrases() []string {
	var out []string
	for _, v := range r.Violations {
		if v.CanSurgicalEdit || slices.Contains(out, v.Phrase) {
			continue
		}
		out = append(out, v.Phrase)
	}
	return out
}

// DefaultActionThreshold is the score at which an action recommendation is reported.
const DefaultActionThreshold = 0.5

// Validator scans generated text.
type Validator struct {
	actionThreshold float64
}

// NewValidator creates a validator. A non-positive threshold uses the default.
func NewValidator(actionThreshold float64) *Validator {
	if actionThreshold <= 0 {
		actionThreshold = DefaultActionThreshold
	}
	return &Validator{actionThreshold: actionThreshold}
}

// Validate runs the cheap literal pass, then the semantic pass for whatever
// the constraints forbid.
func (v *Validator) Validate(text string, c constraint.Constraints) Report {
	r := Report{Text: text, Violations: []Violation{}}

	if m := sycophanticOpener.FindString(r.Text); m != "" {
		r.Violations = append(r.Violations, Violation{
			Type:            SycophanticOpener,
			Phrase:          strings.TrimSpace(m),
			Severity:        SeverityLow,
			CanSurgicalEdit: true,
		})
		r.Text = capitalizeFirst(r.Text[len(m):])
		r.Edited = true
	}

	lower := strings.ToLower(r.Text)

	for _, p := range c.BannedPhrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			r.add(BannedPhrase, p, SeverityMedium)
		}
	}

	if n := len(selfReference.FindAllString(r.Text, -1)); c.MaxSelfReferences > 0 && n > c.MaxSelfReferences {
		r.add(SelfReferenceOveruse, fmt.Sprintf("we/us/our x%d", n), SeverityLow)
	}

	for _, re := range manipulationPatterns {
		if m := re.FindString(r.Text); m != "" {
			r.add(Manipulation, m, SeverityHigh)
		}
	}
	for _, re := range dependencyPatterns {
		if m := re.FindString(r.Text); m != "" {
			r.add(Dependency, m, SeverityMedium)
		}
	}

	for _, s := range c.MustInclude {
		if !strings.Contains(lower, strings.ToLower(s)) {
			r.add(MissingRequired, s, SeverityHigh)
		}
	}
	for _, s := range c.MustNotInclude {
		if strings.Contains(lower, strings.ToLower(s)) {
			r.add(ForbiddenContent, s, SeverityHigh)
		}
	}

	disclaimed := hasDisclaimer(r.Text)
	if c.RequireDisclaimer && !disclaimed {
		r.add(MissingDisclaimer, constraint.DisclaimerText, SeverityHigh)
	}

	if !c.ActionRecommendationsAllowed {
		score, phrase := v.actionScore(r.Text, disclaimed)
		r.ActionScore = score
		if score >= v.actionThreshold {
			r.add(ActionRecommendation, phrase, SeverityHigh)
		}
	}

	if !c.NumericPrecisionAllowed {
		for _, re := range preciseNumberPatterns {
			for _, m := range re.FindAllString(r.Text, -1) {
				r.add(PreciseNumber, strings.TrimSpace(m), SeverityHigh)
			}
		}
	}

	return r
}

// add records a non-editable violation.
func (r *Report) add(t ViolationType, phrase string, sev Severity) {
	r.Violations = append(r.Violations, Violation{Type: t, Phrase: phrase, Severity: sev})
}

// actionScore sums the weights of every matching signal, caps the sum at 1
// and halves it when the text carries a disclaimer. phrase is the sentence
// holding the first match.
func (v *Validator) actionScore(text string, disclaimed bool) (float64, string) {
	var score float64
	first := -1
	for _, s := range actionSignals {
		loc := s.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		score += s.weight
		if first < 0 || loc[0] < first {
			first = loc[0]
		}
	}
	if first < 0 {
		return 0, ""
	}
	score = min(score, 1)
	if disclaimed {
		score /= 2
	}
	return score, sentenceAt(text, first)
}

func hasDisclaimer(text string) bool {
	return slices.ContainsFunc(disclaimerPatterns, func(re *regexp.Regexp) bool {
		return re.MatchString(text)
	})
}

// sentenceAt returns the sentence containing byte offset i.
func sentenceAt(text string, i int) string {
	for i < len(text) && strings.ContainsRune(".!? \n", rune(text[i])) {
		i++
	}
	start := strings.LastIndexAny(text[:i], ".!?\n") + 1
	end := len(text)
	if j := strings.IndexAny(text[i:], ".!?\n"); j >= 0 {
		end = i + j + 1
	}
	// A decimal point inside a number does not end the sentence.
	for end < len(text) && end > 0 && text[end-1] == '.' && unicode.IsDigit(rune(text[end])) {
		if j := strings.IndexAny(text[end:], ".!?\n"); j >= 0 {
			end += j + 1
		} else {
			end = len(text)
		}
	}
	return strings.TrimSpace(text[start:end])
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Gate wraps a Validator in the gate envelope.
type Gate struct {
	validator *Validator
}

// NewGate creates the personality gate.
func NewGate(v *Validator) *Gate {
	return &Gate{validator: v}
}

// Run validates text. Any high-severity violation forces regeneration.
func (g *Gate) Run(text string, c constraint.Constraints) gate.Result[Report] {
	timer := gate.Start(gate.IDPersonality)
	r := g.validator.Validate(text, c)

	log.Info().
		Str("gate", string(gate.IDPersonality)).
		Int("violations", len(r.Violations)).
		Bool("edited", r.Edited).
		Float64("action_score", r.ActionScore).
		Msg("output validated")

	switch {
	case r.HasHigh():
		return gate.Finish(timer, gate.StatusHardFail, gate.ActionRegenerate, r,
			"regenerate without: "+strings.Join(r.RegenerationPhrases(), "; "))
	case len(r.Violations) > 0:
		return gate.Finish(timer, gate.StatusSoftFail, gate.ActionContinue, r, string(r.Violations[0].Type))
	}
	return gate.Pass(timer, r)
}
