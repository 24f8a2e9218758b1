package personality

import "regexp"

// weighted is one signal in the action-recommendation score.
type weighted struct {
	name   string
	re     *regexp.Regexp
	weight float64
}

var (
	selfReference = regexp.MustCompile(`(?i)\b(we|us|our|ours|ourselves)\b`)

	manipulationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\byou have no (other )?choice\b`),
		regexp.MustCompile(`(?i)\bonly i can\b`),
		regexp.MustCompile(`(?i)\bdon'?t tell anyone\b`),
		regexp.MustCompile(`(?i)\byou'?ll regret (it|this)\b`),
		regexp.MustCompile(`(?i)\bif you (really|truly) cared\b`),
		regexp.MustCompile(`(?i)\bact now before it'?s too late\b`),
	}

	dependencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\byou need me\b`),
		regexp.MustCompile(`(?i)\byou can'?t do (this|it) without me\b`),
		regexp.MustCompile(`(?i)\bi'?m the only one who\b`),
		regexp.MustCompile(`(?i)\balways come (back )?to me\b`),
		regexp.MustCompile(`(?i)\byou don'?t need anyone else\b`),
	}

	// sycophanticOpener matches a flattering prefix, including trailing
	// punctuation and whitespace, so it can be stripped in place.
	sycophanticOpener = regexp.MustCompile(`(?i)^\s*((what an? |such an? )?(great|excellent|fantastic|wonderful|amazing|brilliant|good) (question|idea|point)|i love (this|that) question|absolutely|of course)[!.,]*\s+`)

	actionSignals = []weighted{
		{
			name:   "imperative",
			re:     regexp.MustCompile(`(?i)(^|[.!?]\s+)(buy|sell|short|invest in)\b|\byou should (buy|sell|short|invest)\b|\b(go all[- ]in|load up on|dump (your|all))\b|\bput(ting)? (all )?(of )?(your|my) (money|savings|cash)\b|\bmov(e|ing) (all )?(your|my) (money|savings)\b`),
			weight: 0.5,
		},
		{
			name:   "financial_collocation",
			re:     regexp.MustCompile(`(?i)\b(savings|portfolio|retirement|401k|ira|capital|position|shares|nest egg)\b.{0,30}?\b(into|in|on|toward)\b`),
			weight: 0.3,
		},
		{
			// Case-sensitive: tickers are upper case.
			name:   "ticker_adjacency",
			re:     regexp.MustCompile(`\b([Bb]uy|[Ss]ell|[Ss]hort|into|in|on)\s+\$?[A-Z]{2,5}\b`),
			weight: 0.4,
		},
	}

	disclaimerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bnot (financial|investment|legal|medical) advice\b`),
		regexp.MustCompile(`(?i)\b(can'?t|cannot|couldn'?t|unable to) verify\b`),
		regexp.MustCompile(`(?i)\bconsult (a|an|your) (licensed |qualified )?(financial advisor|professional|attorney|lawyer|doctor)\b`),
		regexp.MustCompile(`(?i)\bcheck a current source\b`),
		regexp.MustCompile(`(?i)\bdo your own research\b`),
	}

	preciseNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[$€£¥]\s?\d[\d,]*(\.\d+)?`),
		regexp.MustCompile(`\b\d+\.\d+\s?%`),
		regexp.MustCompile(`(?i)\btrading at\s+\$?\d+(\.\d+)?`),
	}
)
