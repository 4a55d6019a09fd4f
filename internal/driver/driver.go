// Package driver defines the Browser Driver Port: the capability set the
// step runner depends on (spec.md §6.1). This package is a contract only —
// the CDP transport and its wire encoding are out of scope (spec.md §1) —
// plus a small in-memory fake used by this module's own tests, grounded in
// a Provider/CommandExecutor split between "the interface the engine
// consumes" and "the implementations behind it".
package driver

import (
	"context"
	"time"

	"github.com/ormasoftchile/chromedir/internal/model"
)

// ConnectOptions configures Connect when a suite run wants tab isolation.
type ConnectOptions struct {
	CreateTab bool
	SessionID string
}

// ConsoleMessage is one captured browser console entry.
type ConsoleMessage struct {
	Type      string
	Text      string
	Timestamp time.Time
}

// NetworkResponse is one captured network response.
type NetworkResponse struct {
	URL       string
	Method    string
	Status    int
	Timestamp time.Time
}

// Driver is the capability set a step runner needs from a browser
// automation backend. One Driver instance is connected per test execution.
type Driver interface {
	Connect(ctx context.Context, url string, opts ConnectOptions) error
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expression string) (any, error)

	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Hover(ctx context.Context, selector string) error
	Select(ctx context.Context, selector, value string) error
	PressKey(ctx context.Context, key string, modifiers []string) error
	Type(ctx context.Context, selector, text string) error
	SwitchFrame(ctx context.Context, selector string) error
	HandleDialog(ctx context.Context, action string, text string) error
	CaptureScreenshot(ctx context.Context) (string, error) // base64 PNG

	ClickText(ctx context.Context, scope, text string) error
	ClickNth(ctx context.Context, selector string, index int) error
	ScrollTo(ctx context.Context, selector string) error
	ClearInput(ctx context.Context, selector string) error
	ScanInput(ctx context.Context, selector string) (string, error)
	ChooseDropdown(ctx context.Context, selector, label string) error
	ExpandMenu(ctx context.Context, selector string) error
	Toggle(ctx context.Context, selector string) error
	CloseModal(ctx context.Context, selector string) error

	GetConsoleMessages(ctx context.Context) ([]ConsoleMessage, error)
	GetNetworkResponses(ctx context.Context) ([]NetworkResponse, error)
	GetDomSnapshot(ctx context.Context) (string, error)

	AddMockRule(ctx context.Context, pattern string, status int, body any, delay time.Duration) error

	Close(ctx context.Context) error
}

// ToConsoleEntries adapts driver-native console messages to model entries.
func ToConsoleEntries(in []ConsoleMessage) []model.ConsoleEntry {
	out := make([]model.ConsoleEntry, len(in))
	for i, m := range in {
		out[i] = model.ConsoleEntry{Type: m.Type, Text: m.Text, Timestamp: m.Timestamp}
	}
	return out
}

// ToNetworkEntries adapts driver-native network responses to model entries.
func ToNetworkEntries(in []NetworkResponse) []model.NetworkEntry {
	out := make([]model.NetworkEntry, len(in))
	for i, r := range in {
		out[i] = model.NetworkEntry{URL: r.URL, Method: r.Method, Status: r.Status, Timestamp: r.Timestamp}
	}
	return out
}
