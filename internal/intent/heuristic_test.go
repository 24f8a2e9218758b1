package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrisisRules(t *testing.T) {
	matches := []string{
		"i want to kill myself",
		"i've been thinking about ending my life",
		"sometimes i feel suicidal",
		"i don't want to be alive",
		"i keep hurting myself",
	}
	for _, msg := range matches {
		t.Run(msg, func(t *testing.T) {
			c, ok := Match(CrisisRules, msg)
			assert.True(t, ok)
			assert.Equal(t, SafetyHigh, c.SafetySignal)
			assert.Equal(t, ReasonCrisisSignal, c.ReasoningCode)
		})
	}

	_, ok := Match(CrisisRules, "this traffic is killing me")
	assert.False(t, ok)
}

func TestGreetingRules(t *testing.T) {
	tests := []struct {
		text  string
		match bool
	}{
		{"hey what's up", true},
		{"hi", true},
		{"hello there!", true},
		{"good morning", true},
		{"whats up", true},
		{"hey, how are you?", true},
		{"hey can you help me with my taxes", false},
		{"hi, i need to cancel my subscription", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, ok := Match(GreetingRules, tt.text)
			assert.Equal(t, tt.match, ok)
		})
	}
}

func TestDomainRules_CollectsInTableOrder(t *testing.T) {
	got := MatchAll(DomainRules, "my boss wants me to move money out of my 401k")
	assert.Equal(t, []Domain{DomainFinance, DomainCareer}, got)
}

func TestTypeRules_FirstMatchWins(t *testing.T) {
	tests := []struct {
		text string
		want Type
	}{
		{"what do you mean by that?", TypeClarification},
		{"what about the second option?", TypeFollowup},
		{"should i take the job?", TypeDecision},
		{"help me plan a trip to japan", TypePlanning},
		{"remind me to call mom", TypeAction},
		{"ugh i hate mondays", TypeVenting},
		{"how does compound interest work?", TypeQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Match(TypeRules, tt.text)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeuristicClassifier_Greeting(t *testing.T) {
	h := NewHeuristicClassifier()
	c, tel := h.Classify(context.Background(), "Hey what's up")

	assert.Equal(t, TypeGreeting, c.Type)
	assert.Equal(t, DomainGeneral, c.PrimaryDomain)
	assert.Equal(t, []Domain{DomainGeneral}, c.Domains)
	assert.Equal(t, ComplexitySimple, c.Complexity)
	assert.Equal(t, UrgencyLow, c.Urgency)
	assert.Equal(t, SafetyNone, c.SafetySignal)
	assert.False(t, tel.FailedOpen)
	assert.Empty(t, tel.ValidationRepairs)
}

func TestHeuristicClassifier_Crisis(t *testing.T) {
	h := NewHeuristicClassifier()
	c, _ := h.Classify(context.Background(), "I want to kill myself")

	assert.Equal(t, DomainMentalHealth, c.PrimaryDomain)
	assert.Equal(t, SafetyHigh, c.SafetySignal)
	assert.Equal(t, UrgencyHigh, c.Urgency)
	assert.Equal(t, ReasonCrisisSignal, c.ReasoningCode)
}

func TestHeuristicClassifier_MentalHealthWithDecision(t *testing.T) {
	h := NewHeuristicClassifier()
	c, tel := h.Classify(context.Background(), "I'm feeling anxious, should I quit my job?")

	assert.Equal(t, TypeDecision, c.Type)
	assert.Equal(t, DomainMentalHealth, c.PrimaryDomain)
	assert.Equal(t, []Domain{DomainMentalHealth, DomainCareer}, c.Domains)
	assert.Equal(t, SafetyWatch, c.SafetySignal)
	assert.Equal(t, UrgencyMedium, c.Urgency)
	assert.Contains(t, tel.ValidationRepairs, RepairWatchUrgency)
}

func TestHeuristicClassifier_MentalHealthWithoutTypeIsVenting(t *testing.T) {
	h := NewHeuristicClassifier()
	c, _ := h.Classify(context.Background(), "i feel so lonely lately")

	assert.Equal(t, TypeVenting, c.Type)
	assert.Equal(t, ReasonEmotionalExpress, c.ReasoningCode)
	assert.Equal(t, SafetyWatch, c.SafetySignal)
}

func TestHeuristicClassifier_MultiIntent(t *testing.T) {
	h := NewHeuristicClassifier()
	c, tel := h.Classify(context.Background(), "Should I buy a new laptop? Also, can you remind me to check prices")

	assert.Equal(t, TypeDecision, c.Type)
	assert.Equal(t, TypeAction, c.SecondaryType)
	assert.Equal(t, ReasonMultiIntent, c.ReasoningCode)
	assert.Contains(t, tel.ValidationRepairs, RepairMultiIntentReasoning)
}

func TestHeuristicClassifier_ImmediacyBumpsUrgency(t *testing.T) {
	h := NewHeuristicClassifier()
	c, _ := h.Classify(context.Background(), "Can you book a dentist appointment today")

	assert.Equal(t, TypeAction, c.Type)
	assert.Equal(t, UrgencyMedium, c.Urgency)
}

func TestHeuristicClassifier_NoSignals(t *testing.T) {
	h := NewHeuristicClassifier()
	c, _ := h.Classify(context.Background(), "purple elephants dance")

	assert.Equal(t, TypeQuestion, c.Type)
	assert.Equal(t, DomainGeneral, c.PrimaryDomain)
	assert.Equal(t, ReasonKeywordFallback, c.ReasoningCode)
	assert.Equal(t, 0.3, c.Confidence)
}

func TestComplexityFor(t *testing.T) {
	assert.Equal(t, ComplexitySimple, complexityFor("short message", 1))
	assert.Equal(t, ComplexityMedium, complexityFor("short message", 2))
	assert.Equal(t, ComplexityComplex, complexityFor("short", 3))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hey what's up", normalize("  Hey   What’s UP "))
}
