package intent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/normanking/stancegate/internal/llm"
)

// Repair tags that are not tied to a single field.
const (
	RepairParseErrorFallback = "parse_error_fallback"
	RepairOracleUnavailable  = "oracle_unavailable"
	RepairOracleError        = "oracle_error"
)

// repairTag formats the tag recorded when a field value is replaced.
func repairTag(field string, raw any, def any) string {
	return fmt.Sprintf("invalid_%s(%s)->%v", field, rawString(raw), def)
}

func rawString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// normalizeEnum lower-cases s and rewrites spaces and hyphens to sep.
func normalizeEnum(s string, sep string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", sep, "-", sep, "_", sep).Replace(s)
	return s
}

// lookup returns the first present key among names.
func lookup(raw map[string]any, names ...string) (any, bool) {
	for _, n := range names {
		if v, ok := raw[n]; ok {
			return v, true
		}
	}
	return nil, false
}

// ParseOracleOutput decodes an oracle answer into a validated classification.
// ok is false when no JSON object could be decoded; the caller falls back to
// the heuristics in that case. Field-level problems never fail the parse.
func ParseOracleOutput(text string) (c Classification, repairs []string, ok bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(llm.ExtractJSON(text)), &raw); err != nil || raw == nil {
		return Classification{}, nil, false
	}
	c, repairs = validateFields(raw)
	return c, repairs, true
}

// validateFields coerces every field of raw into the closed vocabulary.
// A missing field counts as invalid and is repaired the same way.
func validateFields(raw map[string]any) (Classification, []string) {
	var repairs []string
	c := Default()

	c.Type = pickEnum(raw, "type", DefaultType, "_", &repairs, "type")

	if v, present := lookup(raw, "secondaryType", "secondary_type"); present && rawString(v) != "" {
		t := Type(enumString(v, "_"))
		if t.Valid() && t != c.Type {
			c.SecondaryType = t
		} else {
			repairs = append(repairs, repairTag("secondaryType", v, "none"))
		}
	}

	c.PrimaryDomain = pickEnum(raw, "primaryDomain", DefaultDomain, "_", &repairs, "primaryDomain", "primary_domain")
	c.Domains = validateDomains(raw, c.PrimaryDomain, &repairs)
	c.Complexity = pickEnum(raw, "complexity", DefaultComplexity, "_", &repairs, "complexity")
	c.Urgency = pickEnum(raw, "urgency", DefaultUrgency, "_", &repairs, "urgency")
	c.SafetySignal = pickEnum(raw, "safetySignal", DefaultSafetySignal, "_", &repairs, "safetySignal", "safety_signal")
	c.Confidence = pickConfidence(raw, &repairs)
	c.ReasoningCode = pickEnum(raw, "reasoningCode", DefaultReasoningCode, "-", &repairs, "reasoningCode", "reasoning_code")

	return c, repairs
}

type enum interface {
	~string
	Valid() bool
}

// pickEnum reads the first present key, normalizes it and checks it against
// the vocabulary. Invalid or missing values yield def and a repair tag.
func pickEnum[T enum](raw map[string]any, field string, def T, sep string, repairs *[]string, keys ...string) T {
	v, present := lookup(raw, keys...)
	if val := T(enumString(v, sep)); val.Valid() {
		return val
	}
	*repairs = append(*repairs, repairTag(field, missingOr(v, present), def))
	return def
}

func pickConfidence(raw map[string]any, repairs *[]string) float64 {
	v, present := lookup(raw, "confidence")
	f, ok := v.(float64)
	switch {
	case !ok:
		*repairs = append(*repairs, repairTag("confidence", missingOr(v, present), DefaultConfidence))
		return DefaultConfidence
	case f < 0:
		*repairs = append(*repairs, repairTag("confidence", v, 0))
		return 0
	case f > 1:
		*repairs = append(*repairs, repairTag("confidence", v, 1))
		return 1
	}
	return f
}

// validateDomains keeps valid, unique domains in input order. An absent or
// non-list value falls back to the primary domain alone.
func validateDomains(raw map[string]any, primary Domain, repairs *[]string) []Domain {
	v, present := lookup(raw, "domains")
	list, isList := v.([]any)
	if !isList {
		*repairs = append(*repairs, repairTag("domains", missingOr(v, present), "["+string(primary)+"]"))
		return []Domain{primary}
	}

	seen := make(map[Domain]bool, len(list))
	domains := make([]Domain, 0, len(list))
	for _, item := range list {
		d := Domain(enumString(item, "_"))
		if !d.Valid() {
			*repairs = append(*repairs, repairTag("domains", item, "dropped"))
			continue
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		domains = append(domains, d)
	}
	return domains
}

func enumString(v any, sep string) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return normalizeEnum(s, sep)
}

// missingOr renders absent fields as "missing" in repair tags.
func missingOr(v any, present bool) any {
	if !present {
		return "missing"
	}
	return v
}
