// Package lens flags time-sensitive topics and decides whether a request can
// proceed as-is, must degrade, or needs outside verification.
package lens

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/stancegate/internal/gate"
)

// Stakes grades the cost of stale information.
type Stakes string

const (
	StakesLow    Stakes = "low"
	StakesMedium Stakes = "medium"
	StakesHigh   Stakes = "high"
)

// Verification statuses.
const (
	StatusNotRequired = "not_required"
	StatusPending     = "pending"
	StatusVerified    = "verified"
	StatusFailed      = "failed"
)

// Entry is one row of the freshness table.
type Entry struct {
	Name       string
	Pattern    *regexp.Regexp
	Domain     string
	Window     time.Duration
	HighStakes bool
}

// Table is evaluated in order; the first matching entry wins.
var Table = []Entry{
	{Name: "stock_quote", Pattern: regexp.MustCompile(`\b(stock|share) price\b|\bprice of [a-z]+ stock\b|\btrading at\b|\bmarket cap\b|\b(nasdaq|nyse|s&p ?500|dow jones)\b|\bhow (much|is) [a-z]+ stock\b`), Domain: "financial_quote", Window: 15 * time.Minute, HighStakes: true},
	{Name: "crypto", Pattern: regexp.MustCompile(`\b(bitcoin|btc|ethereum|eth|crypto(currency)?|solana|dogecoin)\b.*\b(price|worth|value|trading)\b|\b(price|worth|value) of (bitcoin|btc|ethereum|eth|solana|dogecoin)\b`), Domain: "crypto", Window: 5 * time.Minute, HighStakes: true},
	{Name: "legal", Pattern: regexp.MustCompile(`\b(is it (legal|illegal)|current (law|regulation)s?|new law|statute of limitations|tax (law|rate|bracket)s?|minimum wage|filing deadline)\b`), Domain: "legal", Window: 30 * 24 * time.Hour, HighStakes: true},
	{Name: "news", Pattern: regexp.MustCompile(`\b(latest|breaking|today'?s|current) (news|headlines|events)\b|\bwhat happened (today|yesterday|this week)\b|\b(election|poll) results\b`), Domain: "news", Window: time.Hour},
	{Name: "weather", Pattern: regexp.MustCompile(`\b(weather|forecast|temperature|rain|snow)\b.*\b(today|tomorrow|tonight|this week(end)?)\b`), Domain: "weather", Window: 3 * time.Hour},
	{Name: "sports", Pattern: regexp.MustCompile(`\b(score|standings|who won|game result|match result|playoffs?)\b`), Domain: "sports", Window: time.Hour},
	{Name: "product", Pattern: regexp.MustCompile(`\b(latest|newest|current) (version|release|model|iphone|update)\b|\bwhen (does|is) .* (release|come out|launch)\b`), Domain: "product", Window: 7 * 24 * time.Hour},
}

// Assessment is the lens gate's output.
type Assessment struct {
	Matched            bool          `json:"matched"`
	Rule               string        `json:"rule,omitempty"`
	Domain             string        `json:"domain,omitempty"`
	FreshnessWindow    time.Duration `json:"freshnessWindow,omitempty"`
	Stakes             Stakes        `json:"stakes"`
	NeedsVerification  bool          `json:"needsVerification"`
	Verified           bool          `json:"verified"`
	VerificationStatus string        `json:"verificationStatus"`
}

// Unresolved reports whether verification is needed but has not happened.
func (a Assessment) Unresolved() bool {
	return a.NeedsVerification && !a.Verified
}

// Assess matches message against the table.
func Assess(message string) Assessment {
	text := strings.ToLower(message)
	for _, e := range Table {
		if !e.Pattern.MatchString(text) {
			continue
		}
		a := Assessment{
			Matched:         true,
			Rule:            e.Name,
			Domain:          e.Domain,
			FreshnessWindow: e.Window,
		}
		if e.HighStakes {
			a.Stakes = StakesHigh
			a.NeedsVerification = true
			a.VerificationStatus = StatusPending
		} else {
			a.Stakes = StakesMedium
			a.Verified = true
			a.VerificationStatus = StatusNotRequired
		}
		return a
	}
	return Assessment{Stakes: StakesLow, Verified: true, VerificationStatus: StatusNotRequired}
}

// Verifier checks a time-sensitive claim against a live source.
type Verifier interface {
	Verify(ctx context.Context, message string, a Assessment) (bool, error)
}

// Gate runs Assess and, when configured, a Verifier for high-stakes matches.
type Gate struct {
	verifier Verifier
}

// NewGate creates the lens gate. verifier may be nil.
func NewGate(verifier Verifier) *Gate {
	return &Gate{verifier: verifier}
}

// Run assesses message. Unverified high-stakes content degrades.
func (g *Gate) Run(ctx context.Context, message string) gate.Result[Assessment] {
	timer := gate.Start(gate.IDLens)
	a := Assess(message)

	if a.NeedsVerification && g.verifier != nil {
		ok, err := g.verifier.Verify(ctx, message, a)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("gate", string(gate.IDLens)).Str("rule", a.Rule).Msg("verification failed")
			a.VerificationStatus = StatusFailed
		case ok:
			a.Verified = true
			a.VerificationStatus = StatusVerified
		}
	}

	log.Info().
		Str("gate", string(gate.IDLens)).
		Str("rule", a.Rule).
		Str("stakes", string(a.Stakes)).
		Bool("needs_verification", a.NeedsVerification).
		Bool("verified", a.Verified).
		Msg("freshness assessed")

	if a.Unresolved() {
		return gate.Finish(timer, gate.StatusSoftFail, gate.ActionDegrade, a, "unverified "+a.Domain+" content")
	}
	return gate.Pass(timer, a)
}
