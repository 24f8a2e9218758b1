package shield

import (
	"regexp"
	"strings"
)

// Rule maps a pattern to a risk category.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Category Category
}

// ControlRules are evaluated by the gate before any classifier runs. A match
// forces control mode regardless of what the classifier would say.
var ControlRules = []Rule{
	{
		Name:     "suicidal_ideation",
		Pattern:  regexp.MustCompile(`\b(kill(ing)? myself|end(ing)? (it all|my life)|suicid(e|al)|want(ed)? to die|wanna die|take my (own )?life|better off dead|no reason to live|don'?t want to (live|be alive|be here anymore))\b`),
		Category: CategoryDeathRisk,
	},
	{
		Name:     "self_harm",
		Pattern:  regexp.MustCompile(`\b(self[- ]harm(ing)?|hurt(ing)? myself|cut(ting)? myself|overdos(e|ing) on)\b`),
		Category: CategoryDeathRisk,
	},
}

// HeuristicRules back the heuristic classifier when no oracle is used.
// First match wins.
var HeuristicRules = []Rule{
	{
		Name:     "harm_to_others",
		Pattern:  regexp.MustCompile(`\b(kill|hurt|poison|stab|shoot|attack) (him|her|them|my (boss|wife|husband|neighbor|partner)|someone|people)\b|\b(make|build) (a )?(bomb|weapon)\b`),
		Category: CategoryHarmRisk,
	},
	{
		Name:     "reckless_finance",
		Pattern:  regexp.MustCompile(`\b(all|entire|whole) (of )?my (savings|retirement|401k|paycheck|life savings)\b|\b(take out|max out) (a )?(loan|credit cards?) (to|for) (gamble|bet|buy crypto)\b|\bremortgage .* (crypto|bet)\b`),
		Category: CategoryRecklessDecision,
	},
	{
		Name:     "reckless_conduct",
		Pattern:  regexp.MustCompile(`\b(drive|driving) (home )?(drunk|high)\b|\bquit my job (today|tomorrow) with no (savings|plan)\b|\bstop taking my (meds|medication)\b`),
		Category: CategoryRecklessDecision,
	},
}

// Match returns the first rule in rules whose pattern matches message.
func Match(rules []Rule, message string) (Rule, bool) {
	text := strings.ToLower(strings.NewReplacer("’", "'").Replace(message))
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			return r, true
		}
	}
	return Rule{}, false
}
