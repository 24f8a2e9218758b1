package shield

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/config"
	"github.com/normanking/stancegate/internal/llm"
)

// Classifier produces a safety classification. Implementations never fail;
// they fall back to Safe with FailedOpen set.
type Classifier interface {
	Classify(ctx context.Context, message string) SafetyClassification
}

// New selects the classifier implementation for cfg.Mode.
func New(cfg config.ShieldConfig, oracle llm.Oracle) Classifier {
	if cfg.Mode == config.ModeHeuristic {
		return HeuristicClassifier{}
	}
	return NewOracleClassifier(oracle, cfg.Timeout)
}

const systemPrompt = `You are a safety classifier for a personal assistant. Read the user's message and respond with ONLY a JSON object:
{"category": "safe|death_risk|harm_risk|reckless_decision", "riskLevel": "none|low|medium|high|critical", "confidence": <0.0-1.0>, "reasoning": "<one short sentence>"}
death_risk: suicide, self-harm or risk to the user's life.
harm_risk: intent to harm other people.
reckless_decision: a high-consequence, hard-to-reverse decision made impulsively (e.g. gambling savings, driving impaired).
safe: everything else.`

// OracleClassifier asks the classification oracle. Any failure fails open
// to Safe; the deterministic control rules in the gate catch crisis language.
type OracleClassifier struct {
	oracle  llm.Oracle
	timeout time.Duration
}

// NewOracleClassifier creates an oracle-backed safety classifier. A nil
// oracle always fails open.
func NewOracleClassifier(oracle llm.Oracle, timeout time.Duration) *OracleClassifier {
	return &OracleClassifier{oracle: oracle, timeout: timeout}
}

// Classify implements Classifier.
func (c *OracleClassifier) Classify(ctx context.Context, message string) SafetyClassification {
	if c.oracle == nil {
		log.Warn().Str("gate", "shield").Msg("no safety oracle configured, failing open to safe")
		return failOpen("oracle not configured")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.oracle.Call(ctx, systemPrompt, message)
	if err != nil {
		reason := "oracle error"
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
			reason = "oracle not configured"
		case errors.Is(err, context.DeadlineExceeded):
			reason = "oracle timeout"
		}
		log.Warn().Err(err).Str("gate", "shield").Str("reason", reason).Msg("safety oracle call failed, failing open to safe")
		return failOpen(reason)
	}

	sc, ok := parse(raw)
	if !ok {
		log.Warn().Str("gate", "shield").Str("raw", raw).Msg("safety oracle output not parseable, failing open to safe")
		return failOpen("unparseable oracle output")
	}
	return sc
}

// parse decodes oracle output. The level is overwritten from the category
// without being reported.
func parse(raw string) (SafetyClassification, bool) {
	var resp struct {
		Category   string   `json:"category"`
		RiskLevel  string   `json:"riskLevel"`
		Confidence *float64 `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &resp); err != nil {
		return SafetyClassification{}, false
	}

	category := Category(normalize(resp.Category))
	if !category.Valid() {
		return SafetyClassification{}, false
	}

	sc := SafetyClassification{
		Category:   category,
		RiskLevel:  RiskLevel(normalize(resp.RiskLevel)),
		Confidence: 0.5,
		Reasoning:  resp.Reasoning,
	}
	if resp.Confidence != nil {
		sc.Confidence = min(max(*resp.Confidence, 0), 1)
	}

	consistent := Consistent(sc)
	if consistent.RiskLevel != sc.RiskLevel {
		log.Debug().
			Str("gate", "shield").
			Str("category", string(category)).
			Str("oracle_level", string(sc.RiskLevel)).
			Str("level", string(consistent.RiskLevel)).
			Msg("risk level overwritten from category")
	}
	return consistent, true
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// HeuristicClassifier classifies with the keyword rules only.
type HeuristicClassifier struct{}

// Classify implements Classifier.
func (HeuristicClassifier) Classify(_ context.Context, message string) SafetyClassification {
	for _, rules := range [][]Rule{ControlRules, HeuristicRules} {
		if r, ok := Match(rules, message); ok {
			return Consistent(SafetyClassification{
				Category:   r.Category,
				Confidence: 0.7,
				Reasoning:  "matched " + r.Name,
			})
		}
	}
	return Safe()
}
