package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Driver used by this module's own tests (the real
// CDP-backed implementation is an external collaborator per spec.md §1/§6.1
// and is not built by this package). It tracks a tiny virtual DOM of
// selectors and lets tests script Evaluate/Click/etc. responses.
type Fake struct {
	mu sync.Mutex

	URL       string
	Connected bool
	Closed    bool

	Selectors map[string]bool // selectors considered "present"
	Texts     map[string]string
	Values    map[string]string

	EvalFunc func(expression string) (any, error)
	OnClick  func(selector string) error

	Console []ConsoleMessage
	Network []NetworkResponse
	Dom     string

	MockRules []MockRule
}

// MockRule is one registered interception, recorded for assertions.
type MockRule struct {
	Pattern string
	Status  int
	Body    any
	Delay   time.Duration
}

// NewFake returns a Fake with empty selector/value maps.
func NewFake() *Fake {
	return &Fake{
		Selectors: map[string]bool{},
		Texts:     map[string]string{},
		Values:    map[string]string{},
	}
}

func (f *Fake) Connect(ctx context.Context, url string, opts ConnectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = true
	return nil
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.URL = url
	return nil
}

func (f *Fake) Evaluate(ctx context.Context, expression string) (any, error) {
	f.mu.Lock()
	fn := f.EvalFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(expression)
	}
	return nil, nil
}

func (f *Fake) Fill(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Selectors[selector] {
		return fmt.Errorf("element not found: %s", selector)
	}
	f.Values[selector] = value
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	present := f.Selectors[selector]
	fn := f.OnClick
	f.mu.Unlock()
	if !present {
		return fmt.Errorf("element not found: %s", selector)
	}
	if fn != nil {
		return fn(selector)
	}
	return nil
}

func (f *Fake) Hover(ctx context.Context, selector string) error {
	return f.requirePresent(selector)
}

func (f *Fake) Select(ctx context.Context, selector, value string) error {
	if err := f.requirePresent(selector); err != nil {
		return err
	}
	f.mu.Lock()
	f.Values[selector] = value
	f.mu.Unlock()
	return nil
}

func (f *Fake) PressKey(ctx context.Context, key string, modifiers []string) error {
	return nil
}

func (f *Fake) Type(ctx context.Context, selector, text string) error {
	if err := f.requirePresent(selector); err != nil {
		return err
	}
	f.mu.Lock()
	f.Values[selector] += text
	f.mu.Unlock()
	return nil
}

func (f *Fake) SwitchFrame(ctx context.Context, selector string) error { return nil }

func (f *Fake) HandleDialog(ctx context.Context, action string, text string) error { return nil }

func (f *Fake) CaptureScreenshot(ctx context.Context) (string, error) {
	return "ZmFrZS1zY3JlZW5zaG90", nil
}

func (f *Fake) ClickText(ctx context.Context, scope, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sel, t := range f.Texts {
		if strings.Contains(t, text) {
			_ = sel
			return nil
		}
	}
	return fmt.Errorf("no element with text %q", text)
}

func (f *Fake) ClickNth(ctx context.Context, selector string, index int) error {
	return f.requirePresent(selector)
}

func (f *Fake) ScrollTo(ctx context.Context, selector string) error {
	return f.requirePresent(selector)
}

func (f *Fake) ClearInput(ctx context.Context, selector string) error {
	if err := f.requirePresent(selector); err != nil {
		return err
	}
	f.mu.Lock()
	f.Values[selector] = ""
	f.mu.Unlock()
	return nil
}

func (f *Fake) ScanInput(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Selectors[selector] {
		return "", fmt.Errorf("element not found: %s", selector)
	}
	return f.Values[selector], nil
}

func (f *Fake) ChooseDropdown(ctx context.Context, selector, label string) error {
	return f.requirePresent(selector)
}

func (f *Fake) ExpandMenu(ctx context.Context, selector string) error {
	return f.requirePresent(selector)
}

func (f *Fake) Toggle(ctx context.Context, selector string) error {
	return f.requirePresent(selector)
}

func (f *Fake) CloseModal(ctx context.Context, selector string) error { return nil }

func (f *Fake) GetConsoleMessages(ctx context.Context) ([]ConsoleMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ConsoleMessage(nil), f.Console...), nil
}

func (f *Fake) GetNetworkResponses(ctx context.Context) ([]NetworkResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NetworkResponse(nil), f.Network...), nil
}

func (f *Fake) GetDomSnapshot(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Dom, nil
}

func (f *Fake) AddMockRule(ctx context.Context, pattern string, status int, body any, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MockRules = append(f.MockRules, MockRule{Pattern: pattern, Status: status, Body: body, Delay: delay})
	return nil
}

func (f *Fake) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (f *Fake) requirePresent(selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Selectors[selector] {
		return fmt.Errorf("element not found: %s", selector)
	}
	return nil
}
