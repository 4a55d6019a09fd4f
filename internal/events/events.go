// Package events implements the Event Stream (spec.md §6.3): typed
// step:*/suite:* events delivered to one listener per run. Grounded on a
// trace-writer idiom seen elsewhere in the pack — a small Emit* method per
// event kind carrying a typed payload — but adapted from "append JSONL to
// a file" to "call a listener function", since this system's consumers
// are a live GUI/CLI, not an audit trail.
package events

import (
	"time"
)

// Type enumerates the step/suite event kinds a listener may observe.
type Type string

const (
	StepStart        Type = "step:start"
	StepPass         Type = "step:pass"
	StepFail         Type = "step:fail"
	SuiteStart       Type = "suite:start"
	SuiteTestStart   Type = "suite:test_start"
	SuiteTestComplete Type = "suite:test_complete"
	SuiteComplete    Type = "suite:complete"
)

// Event is the payload delivered to a listener. Only the fields relevant
// to Type are populated.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// step:* fields
	StepIndex  int    `json:"stepIndex,omitempty"`
	Label      string `json:"label,omitempty"`
	Nested     bool   `json:"nested,omitempty"`
	DurationMS int64  `json:"durationMs,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
	Console    any    `json:"console,omitempty"`
	Network    any    `json:"network,omitempty"`

	// suite:* fields
	Total      int    `json:"total,omitempty"`
	TestID     string `json:"testId,omitempty"`
	TestName   string `json:"testName,omitempty"`
	Index      int    `json:"index,omitempty"`
	Status     string `json:"status,omitempty"`
	Result     any    `json:"result,omitempty"`
}

// Listener receives events for one run. Exactly one listener is attached
// per run (spec.md §6.3); a listener that panics or otherwise misbehaves
// must never affect the run, so Emitter isolates and discards the error.
type Listener func(Event)

// Emitter delivers events to at most one Listener, with listener errors
// (panics) caught and discarded per spec.md §7's ListenerError kind.
type Emitter struct {
	listener Listener
}

// New creates an Emitter. listener may be nil, in which case events are
// simply dropped.
func New(listener Listener) *Emitter {
	return &Emitter{listener: listener}
}

// Emit delivers evt to the attached listener, isolating any panic so a
// misbehaving listener never aborts the run.
func (e *Emitter) Emit(evt Event) {
	if e == nil || e.listener == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	defer func() { recover() }() //nolint:errcheck // ListenerError: caught and discarded, spec.md §7
	e.listener(evt)
}

// BeforeHookIndex computes the negative step index for before-hook i,
// per spec.md §4.3: before-hook i -> -(i+1).
func BeforeHookIndex(i int) int { return -(i + 1) }

// AfterHookIndex computes the negative step index for after-hook i.
func AfterHookIndex(i int) int { return -(100 + i) }

func (e *Emitter) EmitStepStart(stepIndex int, label string, nested bool) {
	e.Emit(Event{Type: StepStart, StepIndex: stepIndex, Label: label, Nested: nested})
}

func (e *Emitter) EmitStepPass(stepIndex int, label string, durationMS int64, skipped bool) {
	e.Emit(Event{Type: StepPass, StepIndex: stepIndex, Label: label, DurationMS: durationMS, Skipped: skipped})
}

func (e *Emitter) EmitStepFail(stepIndex int, label string, durationMS int64, err string) {
	e.Emit(Event{Type: StepFail, StepIndex: stepIndex, Label: label, DurationMS: durationMS, Error: err})
}

func (e *Emitter) EmitSuiteStart(total int) {
	e.Emit(Event{Type: SuiteStart, Total: total})
}

func (e *Emitter) EmitSuiteTestStart(testID, testName string, index int) {
	e.Emit(Event{Type: SuiteTestStart, TestID: testID, TestName: testName, Index: index})
}

func (e *Emitter) EmitSuiteTestComplete(testID string, index int, status string, durationMS int64, err string) {
	e.Emit(Event{Type: SuiteTestComplete, TestID: testID, Index: index, Status: status, DurationMS: durationMS, Error: err})
}

func (e *Emitter) EmitSuiteComplete(result any) {
	e.Emit(Event{Type: SuiteComplete, Result: result})
}
