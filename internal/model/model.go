// Package model defines the runtime state and result types shared by the
// step runner, suite runner, and storage layer: RunState, TestResult,
// SuiteResult, TestRun, and SessionEntry (spec §3).
package model

import (
	"time"

	"github.com/ormasoftchile/chromedir/internal/schema"
)

// LoopFrame is one entry in a Failed result's loopContext, describing where
// in a nested loop a failure occurred. Frames are ordered outermost first.
type LoopFrame struct {
	Iteration int    `json:"iteration"`
	Step      int    `json:"step"`
	Label     string `json:"label,omitempty"`
}

// ConsoleEntry is one captured browser console message.
type ConsoleEntry struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NetworkEntry is one captured network response.
type NetworkEntry struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// RunState is the per-execution, short-lived state threaded through one
// test run (and shared, by reference, with any run_test it nests into).
type RunState struct {
	Vars         map[string]any
	Env          map[string]any
	Fixtures     map[string]any
	VisitedTests map[string]bool
	StartedAt    time.Time
	Deadline     time.Time
	DomSnapshots map[int]string
	ConsoleLog   []ConsoleEntry
	NetworkLog   []NetworkEntry
}

// NewRunState creates an empty RunState seeded with env (immutable) and an
// empty vars map, ready for inputs to be applied.
func NewRunState(env map[string]any, timeout time.Duration) *RunState {
	now := time.Now()
	return &RunState{
		Vars:         make(map[string]any),
		Env:          env,
		Fixtures:     make(map[string]any),
		VisitedTests: make(map[string]bool),
		StartedAt:    now,
		Deadline:     now.Add(timeout),
		DomSnapshots: make(map[int]string),
	}
}

// TestResultStatus enumerates the two terminal statuses of a TestResult.
type TestResultStatus string

const (
	StatusPassed TestResultStatus = "passed"
	StatusFailed TestResultStatus = "failed"
)

// TestResult is the outcome of one test execution: exactly one of the
// Passed-only or Failed-only fields is meaningful, selected by Status.
type TestResult struct {
	Status TestResultStatus `json:"status"`

	// Passed fields.
	StepsCompleted int `json:"stepsCompleted,omitempty"`

	// Failed fields.
	FailedStep     int          `json:"failedStep,omitempty"`
	FailedLabel    string       `json:"failedLabel,omitempty"`
	StepDefinition *schema.Step `json:"stepDefinition,omitempty"`
	Error          string       `json:"error,omitempty"`
	Screenshot     string       `json:"screenshot,omitempty"`
	LoopContext    []LoopFrame  `json:"loopContext,omitempty"`

	// Common to both.
	DurationMS  int64               `json:"durationMs"`
	ConsoleLog  []ConsoleEntry      `json:"consoleLog,omitempty"`
	NetworkLog  []NetworkEntry      `json:"networkLog,omitempty"`
	DomSnapshots map[int]string     `json:"domSnapshots,omitempty"`
	DomSnapshot string              `json:"domSnapshot,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// TestRun is the persisted record of one test execution.
type TestRun struct {
	ID          string      `json:"id"`
	TestID      string      `json:"testId"`
	Status      string      `json:"status"`
	Result      *TestResult `json:"result"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	DurationMS  *int64      `json:"durationMs,omitempty"`
}

// SuiteStatus enumerates a SuiteResult's aggregate outcome.
type SuiteStatus string

const (
	SuiteStatusPassed SuiteStatus = "passed"
	SuiteStatusFailed SuiteStatus = "failed"
)

// SuiteTestResult is one row of a SuiteResult, indexed to match the input
// test id order regardless of completion order.
type SuiteTestResult struct {
	TestID     string      `json:"testId"`
	TestName   string      `json:"testName,omitempty"`
	Status     string      `json:"status"` // passed, failed, skipped
	DurationMS int64       `json:"durationMs"`
	Error      string      `json:"error,omitempty"`
	RunID      string      `json:"runId,omitempty"`
	Result     *TestResult `json:"result,omitempty"`
}

// SuiteResult is the aggregate outcome of a suite run.
type SuiteResult struct {
	Status     SuiteStatus       `json:"status"`
	Total      int               `json:"total"`
	Passed     int               `json:"passed"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	DurationMS int64             `json:"durationMs"`
	Results    []SuiteTestResult `json:"results"`
}

// SessionEntry maps one logical session id to a browser tab target.
type SessionEntry struct {
	TargetID  string    `json:"targetId"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
}
