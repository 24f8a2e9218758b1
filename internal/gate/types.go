// Package gate holds the envelope every pipeline stage returns to its orchestrator.
// A stage produces exactly one Result per invocation; results are never mutated
// after they are returned.
package gate

import (
	"time"
)

// ID identifies a pipeline stage.
type ID string

const (
	IDIntent       ID = "intent"
	IDShield       ID = "shield"
	IDLens         ID = "lens"
	IDStance       ID = "stance"
	IDCapability   ID = "capability"
	IDConstraint   ID = "constraint"
	IDPersonality  ID = "personality"
	IDSpark        ID = "spark"
	IDPrecondition ID = "precondition"
)

// String returns the string representation of an ID.
func (id ID) String() string {
	return string(id)
}

// Status is the outcome class of a stage.
type Status string

const (
	// StatusPass means the stage found nothing to report.
	StatusPass Status = "pass"
	// StatusSoftFail means the stage degraded or repaired something but the request may continue.
	StatusSoftFail Status = "soft_fail"
	// StatusHardFail means the stage blocked or rejected the request.
	StatusHardFail Status = "hard_fail"
)

// Failed reports whether the status is anything other than pass.
func (s Status) Failed() bool {
	return s != StatusPass
}

// Action tells the orchestrator what to do next.
type Action string

const (
	ActionContinue   Action = "continue"
	ActionStop       Action = "stop"
	ActionRegenerate Action = "regenerate"
	ActionDegrade    Action = "degrade"
	ActionAwaitAck   Action = "await_ack"
)

// Halts reports whether the action prevents content generation.
func (a Action) Halts() bool {
	return a == ActionStop || a == ActionAwaitAck
}

// Result is the uniform envelope returned by every stage.
type Result[T any] struct {
	GateID          ID     `json:"gateId"`
	Status          Status `json:"status"`
	Output          T      `json:"output"`
	Action          Action `json:"action"`
	FailureReason   string `json:"failureReason,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

// Halts reports whether this result prevents content generation.
func (r Result[T]) Halts() bool {
	return r.Action.Halts()
}

// Summary is the type-erased view of a Result used for traces and logs.
type Summary struct {
	GateID          ID     `json:"gateId"`
	Status          Status `json:"status"`
	Action          Action `json:"action"`
	FailureReason   string `json:"failureReason,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

// Summary drops the typed output.
func (r Result[T]) Summary() Summary {
	return Summary{
		GateID:          r.GateID,
		Status:          r.Status,
		Action:          r.Action,
		FailureReason:   r.FailureReason,
		ExecutionTimeMs: r.ExecutionTimeMs,
	}
}

// Timer measures a single stage invocation.
type Timer struct {
	id    ID
	start time.Time
}

// Start begins timing a stage.
func Start(id ID) Timer {
	return Timer{id: id, start: time.Now()}
}

// Finish builds the stage result with the elapsed execution time.
func Finish[T any](t Timer, status Status, action Action, output T, reason string) Result[T] {
	return Result[T]{
		GateID:          t.id,
		Status:          status,
		Output:          output,
		Action:          action,
		FailureReason:   reason,
		ExecutionTimeMs: time.Since(t.start).Milliseconds(),
	}
}

// Pass is shorthand for a passing, continuing result.
func Pass[T any](t Timer, output T) Result[T] {
	return Finish(t, StatusPass, ActionContinue, output, "")
}
