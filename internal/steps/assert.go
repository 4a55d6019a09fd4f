package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/ormasoftchile/chromedir/internal/schema"
)

// handleAssertText checks visible text once, with no retry (contrast with
// wait_for_text's polling form).
func handleAssertText(ctx context.Context, deps *Deps, spec *schema.AssertTextSpec) error {
	dom, err := deps.Driver.GetDomSnapshot(ctx)
	if err != nil {
		return err
	}
	text := deps.Scope.Interpolate(spec.Text)
	mode := spec.Mode
	if mode == "" {
		mode = schema.MatchContains
	}
	if !matchText(dom, text, mode) {
		return fmt.Errorf("assert_text: %q not found (mode=%s)", text, mode)
	}
	return nil
}

// handleConsoleCheck fails if any captured console message has a
// disallowed level.
func handleConsoleCheck(ctx context.Context, deps *Deps, spec *schema.ConsoleCheckSpec) error {
	messages, err := deps.Driver.GetConsoleMessages(ctx)
	if err != nil {
		return err
	}
	disallowed := map[string]bool{}
	for _, lvl := range spec.DisallowLevels {
		disallowed[strings.ToLower(lvl)] = true
	}
	if len(disallowed) == 0 {
		disallowed["error"] = true
	}
	for _, m := range messages {
		if disallowed[strings.ToLower(m.Type)] {
			return fmt.Errorf("console_check: disallowed %s message: %s", m.Type, m.Text)
		}
	}
	return nil
}

// handleNetworkCheck fails if any captured response matching the URL
// filter returned a 4xx/5xx status.
func handleNetworkCheck(ctx context.Context, deps *Deps, spec *schema.NetworkCheckSpec) error {
	responses, err := deps.Driver.GetNetworkResponses(ctx)
	if err != nil {
		return err
	}
	filter := deps.Scope.Interpolate(spec.URLContains)
	for _, r := range responses {
		if filter != "" && !strings.Contains(r.URL, filter) {
			continue
		}
		if r.Status >= 400 {
			return fmt.Errorf("network_check: %s %s returned %d", r.Method, r.URL, r.Status)
		}
	}
	return nil
}
