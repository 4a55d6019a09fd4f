// Package schema defines the Go struct types for the test definition
// YAML/JSON schema and provides strict parsing and validation.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// DefaultTimeoutMS is the wall-clock budget for a test when Timeout is unset.
const DefaultTimeoutMS = 30000

// TestDefinition is the top-level document describing one browser test.
type TestDefinition struct {
	ID         string            `yaml:"id,omitempty"         json:"id,omitempty"`
	Name       string            `yaml:"name,omitempty"       json:"name,omitempty"`
	Tags       []string          `yaml:"tags,omitempty"       json:"tags,omitempty"`
	URL        string            `yaml:"url"                  json:"url"                  jsonschema:"required"`
	Env        map[string]any    `yaml:"env,omitempty"        json:"env,omitempty"`
	Inputs     []InputSpec       `yaml:"inputs,omitempty"     json:"inputs,omitempty"`
	Fixtures   []FixtureRef      `yaml:"fixtures,omitempty"   json:"fixtures,omitempty"`
	Before     []Step            `yaml:"before,omitempty"     json:"before,omitempty"`
	Steps      []Step            `yaml:"steps,omitempty"      json:"steps,omitempty"`
	After      []Step            `yaml:"after,omitempty"      json:"after,omitempty"`
	TimeoutMS  int               `yaml:"timeout,omitempty"    json:"timeout,omitempty"`
	ResumeFrom *int              `yaml:"resumeFrom,omitempty" json:"resumeFrom,omitempty"`
	VerifyPage *VerifyPage       `yaml:"verifyPage,omitempty" json:"verifyPage,omitempty"`
}

// Timeout returns the effective test-wide timeout.
func (t *TestDefinition) Timeout() time.Duration {
	if t.TimeoutMS <= 0 {
		return DefaultTimeoutMS * time.Millisecond
	}
	return time.Duration(t.TimeoutMS) * time.Millisecond
}

// FixtureRef names a fixture document to load under $fixtures.<name>.
type FixtureRef struct {
	Name string `yaml:"name" json:"name" jsonschema:"required"`
	Path string `yaml:"path" json:"path" jsonschema:"required"`
}

// InputType enumerates the supported InputSpec value types.
type InputType string

const (
	InputText    InputType = "text"
	InputNumber  InputType = "number"
	InputBoolean InputType = "boolean"
)

// InputSpec describes one runtime parameter seeded into vars before step 0.
type InputSpec struct {
	Name     string    `yaml:"name"               json:"name"               jsonschema:"required"`
	Label    string    `yaml:"label,omitempty"    json:"label,omitempty"`
	Type     InputType `yaml:"type"               json:"type"               jsonschema:"required,enum=text,enum=number,enum=boolean"`
	Default  any       `yaml:"default,omitempty"  json:"default,omitempty"`
	Required bool      `yaml:"required,omitempty" json:"required,omitempty"`
}

// VerifyPage is a post-navigation precondition polled until satisfied or timed out.
type VerifyPage struct {
	Selector    string `yaml:"selector,omitempty"    json:"selector,omitempty"`
	Title       string `yaml:"title,omitempty"       json:"title,omitempty"`
	URLContains string `yaml:"urlContains,omitempty" json:"urlContains,omitempty"`
	TimeoutMS   int    `yaml:"timeout,omitempty"     json:"timeout,omitempty"`
}

// Timeout returns the effective verify-page polling budget.
func (v *VerifyPage) Timeout() time.Duration {
	if v == nil || v.TimeoutMS <= 0 {
		return 5000 * time.Millisecond
	}
	return time.Duration(v.TimeoutMS) * time.Millisecond
}

// RetryPolicy is the shared {interval, timeout} shape used by assert and the
// wait-family handlers.
type RetryPolicy struct {
	IntervalMS int `yaml:"interval,omitempty" json:"interval,omitempty"`
	TimeoutMS  int `yaml:"timeout,omitempty"  json:"timeout,omitempty"`
}

func (r *RetryPolicy) interval(def time.Duration) time.Duration {
	if r == nil || r.IntervalMS <= 0 {
		return def
	}
	return time.Duration(r.IntervalMS) * time.Millisecond
}

func (r *RetryPolicy) timeout(def time.Duration) time.Duration {
	if r == nil || r.TimeoutMS <= 0 {
		return def
	}
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// Interval returns the polling interval for assert steps (default 100ms).
func (r *RetryPolicy) Interval() time.Duration { return r.interval(100 * time.Millisecond) }

// Timeout returns the polling budget for assert steps (default 5000ms).
func (r *RetryPolicy) Timeout() time.Duration { return r.timeout(5000 * time.Millisecond) }

// Step is a tagged variant: exactly one of its operation fields is expected
// to be non-nil; the dispatcher (internal/steps) inspects which one is set.
// Every variant shares the four common fields below.
type Step struct {
	Label      string `yaml:"label,omitempty"      json:"label,omitempty"`
	If         string `yaml:"if,omitempty"         json:"if,omitempty"`
	As         string `yaml:"as,omitempty"         json:"as,omitempty"`
	CaptureDom bool   `yaml:"captureDom,omitempty" json:"captureDom,omitempty"`

	Eval            *string          `yaml:"eval,omitempty"            json:"eval,omitempty"`
	Fill            *FillSpec        `yaml:"fill,omitempty"            json:"fill,omitempty"`
	Click           *string          `yaml:"click,omitempty"           json:"click,omitempty"`
	Assert          *AssertSpec      `yaml:"assert,omitempty"          json:"assert,omitempty"`
	Wait            *int             `yaml:"wait,omitempty"            json:"wait,omitempty"`
	WaitFor         *WaitForSpec     `yaml:"wait_for,omitempty"        json:"wait_for,omitempty"`
	WaitForText     *WaitForTextSpec `yaml:"wait_for_text,omitempty"      json:"wait_for_text,omitempty"`
	WaitForTextGone *WaitForTextSpec `yaml:"wait_for_text_gone,omitempty" json:"wait_for_text_gone,omitempty"`
	AssertText      *AssertTextSpec  `yaml:"assert_text,omitempty"     json:"assert_text,omitempty"`
	ClickText       *ClickTextSpec   `yaml:"click_text,omitempty"      json:"click_text,omitempty"`
	ClickNth        *ClickNthSpec    `yaml:"click_nth,omitempty"       json:"click_nth,omitempty"`
	Type            *TypeSpec        `yaml:"type,omitempty"            json:"type,omitempty"`
	Select          *SelectSpec      `yaml:"select,omitempty"          json:"select,omitempty"`
	PressKey        *PressKeySpec    `yaml:"press_key,omitempty"       json:"press_key,omitempty"`
	Hover           *string          `yaml:"hover,omitempty"           json:"hover,omitempty"`
	ScrollTo        *string          `yaml:"scroll_to,omitempty"       json:"scroll_to,omitempty"`
	ClearInput      *string          `yaml:"clear_input,omitempty"     json:"clear_input,omitempty"`
	ScanInput       *ScanInputSpec   `yaml:"scan_input,omitempty"      json:"scan_input,omitempty"`
	FillForm        map[string]string `yaml:"fill_form,omitempty"     json:"fill_form,omitempty"`
	ConsoleCheck    *ConsoleCheckSpec `yaml:"console_check,omitempty" json:"console_check,omitempty"`
	NetworkCheck    *NetworkCheckSpec `yaml:"network_check,omitempty" json:"network_check,omitempty"`
	MockNetwork     *MockNetworkSpec  `yaml:"mock_network,omitempty"  json:"mock_network,omitempty"`
	HTTPRequest     *HTTPRequestSpec  `yaml:"http_request,omitempty"  json:"http_request,omitempty"`
	Screenshot      *ScreenshotSpec   `yaml:"screenshot,omitempty"     json:"screenshot,omitempty"`
	SwitchFrame     *SwitchFrameSpec  `yaml:"switch_frame,omitempty"   json:"switch_frame,omitempty"`
	HandleDialog    *HandleDialogSpec `yaml:"handle_dialog,omitempty"  json:"handle_dialog,omitempty"`
	CloseModal      *string           `yaml:"close_modal,omitempty"    json:"close_modal,omitempty"`
	ChooseDropdown  *ChooseDropdownSpec `yaml:"choose_dropdown,omitempty" json:"choose_dropdown,omitempty"`
	ExpandMenu      *string           `yaml:"expand_menu,omitempty"    json:"expand_menu,omitempty"`
	Toggle          *string           `yaml:"toggle,omitempty"         json:"toggle,omitempty"`
	Loop            *LoopSpec         `yaml:"loop,omitempty"           json:"loop,omitempty"`
	RunTest         *string           `yaml:"run_test,omitempty"       json:"run_test,omitempty"`
}

// Clone returns a deep copy of the step, used when persisting a failed
// step's definition so later mutation of the live test cannot alter it.
func (s Step) Clone() Step {
	out := s
	b, err := json.Marshal(s)
	if err != nil {
		return out
	}
	var c Step
	if err := json.Unmarshal(b, &c); err != nil {
		return out
	}
	return c
}

// FillSpec fills an input with a value.
type FillSpec struct {
	Selector string `yaml:"selector" json:"selector" jsonschema:"required"`
	Value    string `yaml:"value"    json:"value"    jsonschema:"required"`
}

// AssertSpec evaluates a JS expression until it is truthy or the retry window elapses.
type AssertSpec struct {
	Expr  string       `yaml:"expr" json:"expr" jsonschema:"required"`
	Retry *RetryPolicy `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// WaitForSpec waits for a CSS selector to appear.
type WaitForSpec struct {
	Selector  string `yaml:"selector" json:"selector" jsonschema:"required"`
	TimeoutMS int    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

func (w *WaitForSpec) Timeout() time.Duration {
	if w == nil || w.TimeoutMS <= 0 {
		return 5000 * time.Millisecond
	}
	return time.Duration(w.TimeoutMS) * time.Millisecond
}

// MatchMode enumerates wait_for_text/wait_for_text_gone comparison strategies.
type MatchMode string

const (
	MatchContains MatchMode = "contains"
	MatchExact    MatchMode = "exact"
	MatchRegex    MatchMode = "regex"
)

// WaitForTextSpec waits for (or for the absence of) matching text in the
// page. Scope is accepted but not applied: matching covers the whole page.
type WaitForTextSpec struct {
	Text      string    `yaml:"text"              json:"text" jsonschema:"required"`
	Scope     string    `yaml:"scope,omitempty"   json:"scope,omitempty"`
	Mode      MatchMode `yaml:"mode,omitempty"    json:"mode,omitempty" jsonschema:"enum=contains,enum=exact,enum=regex"`
	TimeoutMS int       `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

func (w *WaitForTextSpec) Timeout() time.Duration {
	if w == nil || w.TimeoutMS <= 0 {
		return 5000 * time.Millisecond
	}
	return time.Duration(w.TimeoutMS) * time.Millisecond
}

func (w *WaitForTextSpec) MatchMode() MatchMode {
	if w == nil || w.Mode == "" {
		return MatchContains
	}
	return w.Mode
}

// AssertTextSpec asserts text in the page once (no retry). Scope is accepted
// but not applied: the check covers the whole page.
type AssertTextSpec struct {
	Text  string    `yaml:"text"            json:"text" jsonschema:"required"`
	Scope string    `yaml:"scope,omitempty" json:"scope,omitempty"`
	Mode  MatchMode `yaml:"mode,omitempty"  json:"mode,omitempty"`
}

// ClickTextSpec clicks the first element whose text matches.
type ClickTextSpec struct {
	Text  string `yaml:"text"            json:"text" jsonschema:"required"`
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// ClickNthSpec clicks the Nth (0-based) match of a selector.
type ClickNthSpec struct {
	Selector string `yaml:"selector" json:"selector" jsonschema:"required"`
	Index    int    `yaml:"index"    json:"index"`
}

// TypeSpec sends keystrokes to a focused/selected element.
type TypeSpec struct {
	Selector string `yaml:"selector" json:"selector" jsonschema:"required"`
	Text     string `yaml:"text"     json:"text"     jsonschema:"required"`
}

// SelectSpec chooses an <option> by value.
type SelectSpec struct {
	Selector string `yaml:"selector" json:"selector" jsonschema:"required"`
	Value    string `yaml:"value"    json:"value"    jsonschema:"required"`
}

// PressKeySpec sends a keyboard event, optionally with modifiers.
type PressKeySpec struct {
	Key       string   `yaml:"key"                 json:"key" jsonschema:"required"`
	Modifiers []string `yaml:"modifiers,omitempty" json:"modifiers,omitempty"`
}

// ScanInputSpec reads back the current value of an input.
type ScanInputSpec struct {
	Selector string `yaml:"selector" json:"selector" jsonschema:"required"`
}

// ConsoleCheckSpec fails the step if disallowed console levels were logged.
type ConsoleCheckSpec struct {
	DisallowLevels []string `yaml:"disallowLevels,omitempty" json:"disallowLevels,omitempty"`
}

// NetworkCheckSpec fails the step if any captured response matches a 4xx/5xx filter.
type NetworkCheckSpec struct {
	URLContains string `yaml:"urlContains,omitempty" json:"urlContains,omitempty"`
}

// MockNetworkSpec installs a glob-matched interception rule.
type MockNetworkSpec struct {
	Pattern  string `yaml:"pattern"          json:"pattern" jsonschema:"required"`
	Status   int    `yaml:"status,omitempty" json:"status,omitempty"`
	Body     any    `yaml:"body,omitempty"   json:"body,omitempty"`
	DelayMS  int    `yaml:"delay,omitempty"  json:"delay,omitempty"`
}

// HTTPRequestSpec performs a server-side HTTP call (not through the browser).
type HTTPRequestSpec struct {
	Method  string            `yaml:"method,omitempty"  json:"method,omitempty"`
	URL     string            `yaml:"url"               json:"url" jsonschema:"required"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"    json:"body,omitempty"`
}

// ScreenshotSpec captures a PNG; Path is where the caller wants it echoed (informational).
type ScreenshotSpec struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// SwitchFrameSpec switches the evaluation context to an iframe, or back to the
// top frame when Selector is empty.
type SwitchFrameSpec struct {
	Selector string `yaml:"selector,omitempty" json:"selector,omitempty"`
}

// DialogAction enumerates the handle_dialog responses.
type DialogAction string

const (
	DialogAccept  DialogAction = "accept"
	DialogDismiss DialogAction = "dismiss"
)

// HandleDialogSpec arms the next native dialog's response.
type HandleDialogSpec struct {
	Action DialogAction `yaml:"action"         json:"action" jsonschema:"required,enum=accept,enum=dismiss"`
	Text   string       `yaml:"text,omitempty" json:"text,omitempty"`
}

// ChooseDropdownSpec picks a labeled option from a non-native dropdown widget.
type ChooseDropdownSpec struct {
	Selector string `yaml:"selector" json:"selector" jsonschema:"required"`
	Label    string `yaml:"label"    json:"label"    jsonschema:"required"`
}

// LoopSpec drives a bounded or list-driven iteration over nested steps.
type LoopSpec struct {
	Over     string `yaml:"over,omitempty"     json:"over,omitempty"`
	While    string `yaml:"while,omitempty"    json:"while,omitempty"`
	Max      *int   `yaml:"max,omitempty"      json:"max,omitempty"`
	As       string `yaml:"as,omitempty"       json:"as,omitempty"`
	IndexAs  string `yaml:"indexAs,omitempty"  json:"indexAs,omitempty"`
	Steps    []Step `yaml:"steps"              json:"steps" jsonschema:"required,minItems=1"`
}

// ItemVar returns the configured (or default) loop item variable name.
func (l *LoopSpec) ItemVar() string {
	if l.As == "" {
		return "item"
	}
	return l.As
}

// IndexVar returns the configured (or default) loop index variable name.
func (l *LoopSpec) IndexVar() string {
	if l.IndexAs == "" {
		return "index"
	}
	return l.IndexAs
}

// ParseFile loads a TestDefinition from a YAML or JSON file by extension.
func ParseFile(path string) (*TestDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test definition: %w", err)
	}
	var t TestDefinition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("parse test definition %s: %w", path, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil && err != io.EOF {
			return nil, fmt.Errorf("parse test definition %s: %w", path, err)
		}
	}
	return &t, nil
}

// JSONSchema generates the JSON Schema for TestDefinition, used by the
// `chromedir validate` CLI command and the MCP `chromedir/validate` tool.
func JSONSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	return r.Reflect(&TestDefinition{})
}
