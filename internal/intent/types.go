// Package intent classifies an inbound message into a closed vocabulary of
// type, domain, complexity, urgency and safety signal. Classifiers never
// return errors: any failure falls back to the keyword heuristics and is
// recorded in Telemetry.
package intent

import "slices"

// Type is the conversational intent of a message.
type Type string

const (
	TypeQuestion      Type = "question"
	TypeDecision      Type = "decision"
	TypeAction        Type = "action"
	TypePlanning      Type = "planning"
	TypeVenting       Type = "venting"
	TypeGreeting      Type = "greeting"
	TypeFollowup      Type = "followup"
	TypeClarification Type = "clarification"
)

// Types lists every valid Type.
var Types = []Type{
	TypeQuestion, TypeDecision, TypeAction, TypePlanning,
	TypeVenting, TypeGreeting, TypeFollowup, TypeClarification,
}

// Valid reports whether t is in the closed vocabulary.
func (t Type) Valid() bool { return slices.Contains(Types, t) }

// Domain is a subject area. A message may touch several.
type Domain string

const (
	DomainMentalHealth  Domain = "mental_health"
	DomainHealth        Domain = "health"
	DomainFinance       Domain = "finance"
	DomainLegal         Domain = "legal"
	DomainCareer        Domain = "career"
	DomainRelationships Domain = "relationships"
	DomainEducation     Domain = "education"
	DomainTechnology    Domain = "technology"
	DomainProductivity  Domain = "productivity"
	DomainCreative      Domain = "creative"
	DomainGeneral       Domain = "general"
)

// DomainPriority is the fixed sort order for secondary domains.
var DomainPriority = []Domain{
	DomainMentalHealth, DomainHealth, DomainFinance, DomainLegal,
	DomainCareer, DomainRelationships, DomainEducation, DomainTechnology,
	DomainProductivity, DomainCreative, DomainGeneral,
}

// Valid reports whether d is in the closed vocabulary.
func (d Domain) Valid() bool { return slices.Contains(DomainPriority, d) }

// HighStakes reports whether mistakes in d can cause real harm.
func (d Domain) HighStakes() bool {
	switch d {
	case DomainMentalHealth, DomainHealth, DomainFinance, DomainLegal:
		return true
	}
	return false
}

func (d Domain) priority() int {
	if i := slices.Index(DomainPriority, d); i >= 0 {
		return i
	}
	return len(DomainPriority)
}

// Complexity is how much work a good answer needs.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Complexities lists every valid Complexity.
var Complexities = []Complexity{ComplexitySimple, ComplexityMedium, ComplexityComplex}

func (c Complexity) Valid() bool { return slices.Contains(Complexities, c) }

// Urgency is how time-sensitive the message is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Urgencies lists every valid Urgency in ascending order.
var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}

func (u Urgency) Valid() bool { return slices.Contains(Urgencies, u) }

// bump raises u by one level, saturating at high.
func (u Urgency) bump() Urgency {
	switch u {
	case UrgencyLow:
		return UrgencyMedium
	default:
		return UrgencyHigh
	}
}

// SafetySignal is the intent classifier's coarse read on user safety.
// The shield gate makes the binding safety decision.
type SafetySignal string

const (
	SafetyNone  SafetySignal = "none"
	SafetyWatch SafetySignal = "watch"
	SafetyHigh  SafetySignal = "high"
)

// SafetySignals lists every valid SafetySignal.
var SafetySignals = []SafetySignal{SafetyNone, SafetyWatch, SafetyHigh}

func (s SafetySignal) Valid() bool { return slices.Contains(SafetySignals, s) }

// ReasoningCode is a closed set of short explanations for a classification.
type ReasoningCode string

const (
	ReasonDirectQuestion   ReasoningCode = "direct-question"
	ReasonDecisionRequest  ReasoningCode = "decision-request"
	ReasonExplicitAction   ReasoningCode = "explicit-action"
	ReasonPlanningRequest  ReasoningCode = "planning-request"
	ReasonEmotionalExpress ReasoningCode = "emotional-expression"
	ReasonSocialGreeting   ReasoningCode = "social-greeting"
	ReasonFollowupContext  ReasoningCode = "followup-context"
	ReasonClarification    ReasoningCode = "clarification-request"
	ReasonMultiIntent      ReasoningCode = "multi-intent"
	ReasonCrisisSignal     ReasoningCode = "crisis-signal"
	ReasonKeywordFallback  ReasoningCode = "keyword-fallback"
	ReasonUnclassified     ReasoningCode = "unclassified"
)

// ReasoningCodes lists every valid ReasoningCode.
var ReasoningCodes = []ReasoningCode{
	ReasonDirectQuestion, ReasonDecisionRequest, ReasonExplicitAction,
	ReasonPlanningRequest, ReasonEmotionalExpress, ReasonSocialGreeting,
	ReasonFollowupContext, ReasonClarification, ReasonMultiIntent,
	ReasonCrisisSignal, ReasonKeywordFallback, ReasonUnclassified,
}

func (r ReasoningCode) Valid() bool { return slices.Contains(ReasoningCodes, r) }

// Field defaults used when the oracle returns something outside the vocabulary.
const (
	DefaultType          = TypeQuestion
	DefaultDomain        = DomainGeneral
	DefaultComplexity    = ComplexityMedium
	DefaultUrgency       = UrgencyLow
	DefaultSafetySignal  = SafetyNone
	DefaultConfidence    = 0.5
	DefaultReasoningCode = ReasonUnclassified
)

// Classification is the validated output of an intent classifier.
// SecondaryType is empty unless the message carries two intents.
type Classification struct {
	Type          Type          `json:"type"`
	SecondaryType Type          `json:"secondaryType,omitempty"`
	PrimaryDomain Domain        `json:"primaryDomain"`
	Domains       []Domain      `json:"domains"`
	Complexity    Complexity    `json:"complexity"`
	Urgency       Urgency       `json:"urgency"`
	SafetySignal  SafetySignal  `json:"safetySignal"`
	Confidence    float64       `json:"confidence"`
	ReasoningCode ReasoningCode `json:"reasoningCode"`
}

// Default returns the classification used when nothing else is known.
func Default() Classification {
	return Classification{
		Type:          DefaultType,
		PrimaryDomain: DefaultDomain,
		Domains:       []Domain{DefaultDomain},
		Complexity:    DefaultComplexity,
		Urgency:       DefaultUrgency,
		SafetySignal:  DefaultSafetySignal,
		Confidence:    DefaultConfidence,
		ReasoningCode: DefaultReasoningCode,
	}
}

// Clone returns a deep copy.
func (c Classification) Clone() Classification {
	c.Domains = slices.Clone(c.Domains)
	return c
}

// HasDomain reports whether d is among the classification's domains.
func (c Classification) HasDomain(d Domain) bool {
	return slices.Contains(c.Domains, d)
}

// HighStakes reports whether any domain is high-stakes.
func (c Classification) HighStakes() bool {
	for _, d := range c.Domains {
		if d.HighStakes() {
			return true
		}
	}
	return c.PrimaryDomain.HighStakes()
}

// Telemetry describes how a classification was produced. It lives for one
// classification call and is only surfaced to logs and traces.
type Telemetry struct {
	ValidationRepairs []string `json:"validationRepairs"`
	FailedOpen        bool     `json:"failedOpen"`
	RawModelOutput    string   `json:"rawModelOutput,omitempty"`
}

// Outcome is the intent gate's output.
type Outcome struct {
	Classification Classification `json:"classification"`
	Telemetry      Telemetry      `json:"telemetry"`
}
