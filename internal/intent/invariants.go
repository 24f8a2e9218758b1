package intent

import (
	"slices"
	"sort"
)

// Invariant repair tags.
const (
	RepairGreetingNormalized   = "invariant_greeting_normalized"
	RepairDomainsNormalized    = "invariant_domains_normalized"
	RepairSafetyUrgency        = "invariant_safety_high_urgency"
	RepairSafetyComplexity     = "invariant_safety_high_complexity_floor"
	RepairWatchUrgency         = "invariant_watch_mental_health_urgency_floor"
	RepairPlanningComplexity   = "invariant_planning_complexity_floor"
	RepairDecisionComplexity   = "invariant_high_stakes_decision_complexity_floor"
	RepairActionComplexity     = "invariant_multi_domain_action_complexity_floor"
	RepairClarificationCap     = "invariant_clarification_complexity_cap"
	RepairMultiIntentReasoning = "invariant_multi_intent_reasoning"
)

// ApplyInvariants enforces the rules the oracle cannot be trusted to follow.
// It returns a new classification and one repair tag per rule that changed
// something. Applying it to its own output yields no further repairs.
//
// Domain normalization runs before the complexity rules so that the domain
// count they see is final.
func ApplyInvariants(in Classification) (Classification, []string) {
	c := in.Clone()
	var repairs []string

	if c.Type == TypeGreeting {
		before := c.Clone()
		c.Complexity = ComplexitySimple
		c.Urgency = UrgencyLow
		c.PrimaryDomain = DomainGeneral
		c.Domains = []Domain{DomainGeneral}
		c.SafetySignal = SafetyNone
		c.SecondaryType = ""
		c.ReasoningCode = ReasonSocialGreeting
		if !equal(before, c) {
			repairs = append(repairs, RepairGreetingNormalized)
		}
	}

	if !c.PrimaryDomain.Valid() {
		c.PrimaryDomain = DefaultDomain
	}
	if domains := normalizeDomains(c.PrimaryDomain, c.Domains); !slices.Equal(domains, c.Domains) {
		c.Domains = domains
		repairs = append(repairs, RepairDomainsNormalized)
	}

	if c.SafetySignal == SafetyHigh {
		if c.Urgency != UrgencyHigh {
			c.Urgency = UrgencyHigh
			repairs = append(repairs, RepairSafetyUrgency)
		}
		if c.Complexity == ComplexitySimple {
			c.Complexity = ComplexityMedium
			repairs = append(repairs, RepairSafetyComplexity)
		}
	}

	if c.SafetySignal == SafetyWatch && c.HasDomain(DomainMentalHealth) && c.Urgency == UrgencyLow {
		switch c.Type {
		case TypeAction, TypeVenting, TypeDecision, TypeQuestion:
			c.Urgency = UrgencyMedium
			repairs = append(repairs, RepairWatchUrgency)
		}
	}

	if c.Type == TypePlanning && c.Complexity == ComplexitySimple {
		c.Complexity = ComplexityMedium
		repairs = append(repairs, RepairPlanningComplexity)
	}

	if c.Type == TypeDecision && c.Complexity == ComplexitySimple && c.HighStakes() {
		c.Complexity = ComplexityMedium
		repairs = append(repairs, RepairDecisionComplexity)
	}

	if c.Type == TypeAction && len(c.Domains) > 1 && c.Complexity == ComplexitySimple {
		c.Complexity = ComplexityMedium
		repairs = append(repairs, RepairActionComplexity)
	}

	if c.Type == TypeClarification && c.Complexity == ComplexityComplex {
		c.Complexity = ComplexityMedium
		repairs = append(repairs, RepairClarificationCap)
	}

	if c.SecondaryType != "" && c.ReasoningCode != ReasonMultiIntent {
		c.ReasoningCode = ReasonMultiIntent
		repairs = append(repairs, RepairMultiIntentReasoning)
	}

	return c, repairs
}

// normalizeDomains inserts primary if missing, drops duplicates and invalid
// entries, and sorts primary first then by DomainPriority.
func normalizeDomains(primary Domain, domains []Domain) []Domain {
	seen := map[Domain]bool{primary: true}
	out := []Domain{primary}
	for _, d := range domains {
		if !d.Valid() || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	rest := out[1:]
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].priority() < rest[j].priority()
	})
	return out
}

func equal(a, b Classification) bool {
	return a.Type == b.Type &&
		a.SecondaryType == b.SecondaryType &&
		a.PrimaryDomain == b.PrimaryDomain &&
		slices.Equal(a.Domains, b.Domains) &&
		a.Complexity == b.Complexity &&
		a.Urgency == b.Urgency &&
		a.SafetySignal == b.SafetySignal &&
		a.Confidence == b.Confidence &&
		a.ReasoningCode == b.ReasoningCode
}
