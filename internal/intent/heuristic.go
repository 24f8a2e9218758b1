package intent

import (
	"context"
	"regexp"
	"strings"
)

// Rule pairs a predicate with the outcome it selects. Tables of rules are
// evaluated in order and the first match wins.
type Rule[T any] struct {
	Name    string
	Pattern *regexp.Regexp
	Outcome T
}

// Match returns the outcome of the first rule whose pattern matches text.
func Match[T any](rules []Rule[T], text string) (T, bool) {
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			return r.Outcome, true
		}
	}
	var zero T
	return zero, false
}

// MatchAll returns the outcomes of every matching rule in table order.
func MatchAll[T any](rules []Rule[T], text string) []T {
	var out []T
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			out = append(out, r.Outcome)
		}
	}
	return out
}

// CrisisRules detect explicit self-harm or suicidal language. A match
// short-circuits every other rule.
var CrisisRules = []Rule[Classification]{
	{
		Name:    "suicidal_ideation",
		Pattern: regexp.MustCompile(`\b(kill(ing)? myself|end(ing)? (it all|my life)|suicid(e|al)|want(ed)? to die|wanna die|take my (own )?life|better off dead|no reason to live|don'?t want to (live|be alive|be here anymore))\b`),
		Outcome: Classification{
			Type:          TypeVenting,
			PrimaryDomain: DomainMentalHealth,
			Domains:       []Domain{DomainMentalHealth},
			Complexity:    ComplexityMedium,
			Urgency:       UrgencyHigh,
			SafetySignal:  SafetyHigh,
			Confidence:    0.9,
			ReasoningCode: ReasonCrisisSignal,
		},
	},
	{
		Name:    "self_harm",
		Pattern: regexp.MustCompile(`\b(self[- ]harm(ing)?|hurt(ing)? myself|cut(ting)? myself|overdos(e|ing))\b`),
		Outcome: Classification{
			Type:          TypeVenting,
			PrimaryDomain: DomainMentalHealth,
			Domains:       []Domain{DomainMentalHealth},
			Complexity:    ComplexityMedium,
			Urgency:       UrgencyHigh,
			SafetySignal:  SafetyHigh,
			Confidence:    0.85,
			ReasoningCode: ReasonCrisisSignal,
		},
	},
}

// GreetingRules match messages that are nothing but a social greeting.
var GreetingRules = []Rule[Classification]{
	{
		Name:    "greeting",
		Pattern: regexp.MustCompile(`^(hi|hey|hello|hiya|howdy|yo|sup|greetings|good (morning|afternoon|evening)|what'?s up|whats up)([\s,!.]+(there|everyone|all|friend|buddy|what'?s up|whats up|how are you( doing)?|how'?s it going))*[\s!.?]*$`),
		Outcome: Classification{
			Type:          TypeGreeting,
			PrimaryDomain: DomainGeneral,
			Domains:       []Domain{DomainGeneral},
			Complexity:    ComplexitySimple,
			Urgency:       UrgencyLow,
			SafetySignal:  SafetyNone,
			Confidence:    0.9,
			ReasoningCode: ReasonSocialGreeting,
		},
	},
}

// MentalHealthRules raise the safety signal to watch and put mental_health
// among the domains.
var MentalHealthRules = []Rule[Domain]{
	{
		Name:    "mental_health_keywords",
		Pattern: regexp.MustCompile(`\b(anxious|anxiety|depressed|depression|panic attacks?|lonely|loneliness|hopeless|worthless|overwhelmed|burn(ed|t)? ?out|therap(y|ist)|can'?t cope|grief|grieving|trauma|ptsd)\b`),
		Outcome: DomainMentalHealth,
	},
}

// DomainRules map keywords to domains. Every match is collected; the first
// match in table order becomes the primary domain.
var DomainRules = []Rule[Domain]{
	{Name: "health", Pattern: regexp.MustCompile(`\b(doctor|symptoms?|medication|medicine|diagnos(is|ed)|pain|sick|illness|diet|exercise|sleep|blood pressure|prescription|pregnan(t|cy)|injury)\b`), Outcome: DomainHealth},
	{Name: "finance", Pattern: regexp.MustCompile(`\b(money|invest(ing|ment)?|stocks?|shares|crypto(currency)?|bitcoin|savings|budget|debt|loan|mortgage|taxes?|retirement|401k|ira|portfolio|salary|rent|credit card)\b`), Outcome: DomainFinance},
	{Name: "legal", Pattern: regexp.MustCompile(`\b(lawyer|attorney|lawsuit|sue|contract|legal(ly)?|court|custody|divorce|visa|immigration|landlord|tenant rights|copyright)\b`), Outcome: DomainLegal},
	{Name: "career", Pattern: regexp.MustCompile(`\b(job|career|boss|manager|promotion|resume|cv|interview|coworkers?|quit|hired|fired|raise|workplace)\b`), Outcome: DomainCareer},
	{Name: "relationships", Pattern: regexp.MustCompile(`\b(partner|boyfriend|girlfriend|husband|wife|marriage|dating|friends?|family|parents?|breakup|broke up|relationship)\b`), Outcome: DomainRelationships},
	{Name: "education", Pattern: regexp.MustCompile(`\b(learn(ing)?|study(ing)?|course|class|exam|homework|school|university|college|degree|tutorial)\b`), Outcome: DomainEducation},
	{Name: "technology", Pattern: regexp.MustCompile(`\b(code|coding|programming|software|computer|laptop|phone|app|bug|server|database|python|golang|javascript|api)\b`), Outcome: DomainTechnology},
	{Name: "productivity", Pattern: regexp.MustCompile(`\b(remind(er)?|todo|to-do|schedule|calendar|habit|routine|focus|procrastinat(e|ing|ion)|deadline|goals?|organi[sz]e)\b`), Outcome: DomainProductivity},
	{Name: "creative", Pattern: regexp.MustCompile(`\b(write|writing|story|poem|novel|draw(ing)?|paint(ing)?|music|song|design|creative)\b`), Outcome: DomainCreative},
}

// TypeRules map phrasing to an intent type. Order matters: clarification and
// followup phrasing is checked before the generic question pattern.
var TypeRules = []Rule[Type]{
	{Name: "clarification", Pattern: regexp.MustCompile(`^(what do you mean|can you clarify|could you clarify|i don'?t (understand|get it)|huh|sorry\?)|\bwhat do you mean\b`), Outcome: TypeClarification},
	{Name: "followup", Pattern: regexp.MustCompile(`^(and |also |what about |how about |then what|tell me more|go on|more on that|ok(ay)?,? (so|and) )`), Outcome: TypeFollowup},
	{Name: "decision", Pattern: regexp.MustCompile(`\b(should i|which (one|option|is better)|(is it|would it be) (better|worth|smarter)|help me (decide|choose)|pros and cons|or should|worth it)\b`), Outcome: TypeDecision},
	{Name: "planning", Pattern: regexp.MustCompile(`\b(plan|planning|roadmap|step[- ]by[- ]step|timeline|strategy for|prepare for|organi[sz]e my)\b`), Outcome: TypePlanning},
	{Name: "action", Pattern: regexp.MustCompile(`^(please )?(remind|set|create|add|send|book|schedule|start|cancel|delete|order|email|draft|track|log)\b|\b(can you|could you|please) (remind|set|create|add|send|book|schedule|cancel|draft|track|log)\b`), Outcome: TypeAction},
	{Name: "venting", Pattern: regexp.MustCompile(`\b(i'?m so (tired|sick|done|fed up)|i hate|ugh+|so frustrat(ed|ing)|i can'?t stand|fed up|need to vent|just venting)\b`), Outcome: TypeVenting},
	{Name: "question", Pattern: regexp.MustCompile(`\?\s*$|^(what|why|how|when|where|who|which|is|are|can|could|does|do|will|would)\b`), Outcome: TypeQuestion},
}

// ImmediacyRules bump urgency by one level when matched.
var ImmediacyRules = []Rule[Urgency]{
	{Name: "immediacy", Pattern: regexp.MustCompile(`\b(urgent(ly)?|asap|right now|immediately|emergency|tonight|today|as soon as possible|deadline is)\b`), Outcome: UrgencyMedium},
}

var typeReasoning = map[Type]ReasoningCode{
	TypeQuestion:      ReasonDirectQuestion,
	TypeDecision:      ReasonDecisionRequest,
	TypeAction:        ReasonExplicitAction,
	TypePlanning:      ReasonPlanningRequest,
	TypeVenting:       ReasonEmotionalExpress,
	TypeFollowup:      ReasonFollowupContext,
	TypeClarification: ReasonClarification,
}

var whitespace = regexp.MustCompile(`\s+`)

// normalize lower-cases, folds typographic apostrophes and collapses whitespace.
func normalize(message string) string {
	s := strings.ToLower(strings.TrimSpace(message))
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	return whitespace.ReplaceAllString(s, " ")
}

// HeuristicClassifier classifies from the keyword tables alone.
type HeuristicClassifier struct{}

// NewHeuristicClassifier creates a keyword classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify implements Classifier. Heuristic results are deliberate, not a
// failure, so FailedOpen stays false.
func (h *HeuristicClassifier) Classify(_ context.Context, message string) (Classification, Telemetry) {
	c, repairs := ApplyInvariants(h.classify(message))
	return c, Telemetry{ValidationRepairs: repairs}
}

// classify runs the rule tables without enforcing invariants.
func (h *HeuristicClassifier) classify(message string) Classification {
	text := normalize(message)

	if c, ok := Match(CrisisRules, text); ok {
		return c.Clone()
	}
	if c, ok := Match(GreetingRules, text); ok {
		return c.Clone()
	}

	c := Default()
	c.Confidence = 0.4
	c.ReasoningCode = ReasonKeywordFallback

	var domains []Domain
	if _, ok := Match(MentalHealthRules, text); ok {
		domains = append(domains, DomainMentalHealth)
		c.SafetySignal = SafetyWatch
	}
	domains = append(domains, MatchAll(DomainRules, text)...)
	if len(domains) > 0 {
		c.PrimaryDomain = domains[0]
		c.Domains = domains
	} else {
		c.Confidence = 0.3
	}

	types := dedupeTypes(MatchAll(TypeRules, text))
	switch {
	case len(types) > 0:
		c.Type = types[0]
		c.ReasoningCode = typeReasoning[c.Type]
		if len(types) > 1 && types[1] != TypeQuestion {
			c.SecondaryType = types[1]
		}
	case c.SafetySignal == SafetyWatch:
		c.Type = TypeVenting
		c.ReasoningCode = ReasonEmotionalExpress
	}

	if _, ok := Match(ImmediacyRules, text); ok {
		c.Urgency = c.Urgency.bump()
	}

	c.Complexity = complexityFor(text, len(c.Domains))
	return c
}

func dedupeTypes(types []Type) []Type {
	out := types[:0:0]
	seen := make(map[Type]bool, len(types))
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// complexityFor estimates complexity from length and domain spread.
func complexityFor(text string, domainCount int) Complexity {
	words := len(strings.Fields(text))
	switch {
	case words > 60 || domainCount > 2:
		return ComplexityComplex
	case words > 12 || domainCount > 1:
		return ComplexityMedium
	default:
		return ComplexitySimple
	}
}
