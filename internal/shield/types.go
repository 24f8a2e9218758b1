// Package shield makes the binding safety decision for a message: crisis
// control mode, a hard veto, a soft veto awaiting acknowledgment, or pass.
package shield

import (
	"github.com/google/uuid"
)

// RiskLevel grades how dangerous a message is.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Category is the kind of risk. It determines the level.
type Category string

const (
	CategorySafe             Category = "safe"
	CategoryDeathRisk        Category = "death_risk"
	CategoryHarmRisk         Category = "harm_risk"
	CategoryRecklessDecision Category = "reckless_decision"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategorySafe, CategoryDeathRisk, CategoryHarmRisk, CategoryRecklessDecision:
		return true
	}
	return false
}

// SafetyClassification is the validated safety read of a message.
type SafetyClassification struct {
	RiskLevel  RiskLevel `json:"riskLevel"`
	Category   Category  `json:"category"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	// FailedOpen is set when no verdict could be obtained and Safe was assumed.
	FailedOpen bool   `json:"failedOpen,omitempty"`
	FailReason string `json:"failReason,omitempty"`
}

// Safe is the fail-open classification.
func Safe() SafetyClassification {
	return SafetyClassification{
		RiskLevel:  RiskNone,
		Category:   CategorySafe,
		Confidence: 0.5,
	}
}

// failOpen is Safe marked with the reason no verdict was obtained.
func failOpen(reason string) SafetyClassification {
	sc := Safe()
	sc.FailedOpen = true
	sc.FailReason = reason
	return sc
}

// Consistent overwrites the risk level from the category. Safe allows none
// or low and anything else becomes low. An unknown category is treated as safe.
func Consistent(sc SafetyClassification) SafetyClassification {
	switch sc.Category {
	case CategoryDeathRisk:
		sc.RiskLevel = RiskCritical
	case CategoryHarmRisk:
		sc.RiskLevel = RiskHigh
	case CategoryRecklessDecision:
		sc.RiskLevel = RiskMedium
	default:
		sc.Category = CategorySafe
		if sc.RiskLevel != RiskNone && sc.RiskLevel != RiskLow {
			sc.RiskLevel = RiskLow
		}
	}
	return sc
}

// VetoType distinguishes blocking vetoes from ones the user can acknowledge.
type VetoType string

const (
	VetoHard VetoType = "hard"
	VetoSoft VetoType = "soft"
)

// Decision is the shield gate's output.
type Decision struct {
	Classification SafetyClassification `json:"classification"`
	ControlMode    bool                 `json:"controlMode"`
	VetoType       VetoType             `json:"vetoType,omitempty"`
	AckToken       string               `json:"ackToken,omitempty"`
	// ControlRule names the deterministic pattern that forced control mode.
	ControlRule string `json:"controlRule,omitempty"`
	// RequiredPrependResources is set whenever crisis resources must lead the reply.
	RequiredPrependResources bool `json:"requiredPrependResources"`
}

// Vetoed reports whether a hard or soft veto is active.
func (d Decision) Vetoed() bool {
	return d.VetoType != ""
}

// AckTokenPrefix marks acknowledgment tokens.
const AckTokenPrefix = "ack_"

// MintAckToken returns a fresh opaque acknowledgment token.
func MintAckToken() string {
	return AckTokenPrefix + uuid.NewString()
}

// Decide maps a classification onto the shield decision. The classification
// is made consistent first so level and category always agree.
func Decide(sc SafetyClassification) Decision {
	sc = Consistent(sc)
	d := Decision{Classification: sc}

	switch {
	case sc.Category == CategoryDeathRisk && sc.RiskLevel == RiskCritical:
		d.ControlMode = true
		d.RequiredPrependResources = true
	case sc.Category == CategoryHarmRisk && sc.RiskLevel == RiskHigh:
		d.VetoType = VetoHard
	case sc.Category == CategoryRecklessDecision && sc.RiskLevel == RiskMedium:
		d.VetoType = VetoSoft
		d.AckToken = MintAckToken()
	}
	return d
}
