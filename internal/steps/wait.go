package steps

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ormasoftchile/chromedir/internal/eval"
	"github.com/ormasoftchile/chromedir/internal/schema"
)

// handleWaitFor polls for a CSS selector's presence at a fixed 100ms
// interval, per spec.md §4.3.5.
func handleWaitFor(ctx context.Context, deps *Deps, spec *schema.WaitForSpec) error {
	selector := deps.Scope.Interpolate(spec.Selector)
	deadline := time.Now().Add(spec.Timeout())
	for {
		present, err := deps.Driver.Evaluate(ctx, fmt.Sprintf("document.querySelector(%q) !== null", selector))
		if err == nil {
			if b, ok := present.(bool); ok && b {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("wait_for: selector %q not found after %s", selector, spec.Timeout())
		}
		if err := sleepOrDone(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
}

// handleWaitForText polls at 200ms for matching (or, when gone=true,
// disappearing) text in the page's DOM snapshot, per spec.md §4.3.5. The
// scope selector is interpolated but not applied: matching always runs
// against the whole snapshot.
func handleWaitForText(ctx context.Context, deps *Deps, spec *schema.WaitForTextSpec, gone bool) error {
	text := deps.Scope.Interpolate(spec.Text)
	scope := deps.Scope.Interpolate(spec.Scope)
	deadline := time.Now().Add(spec.Timeout())
	for {
		dom, err := deps.Driver.GetDomSnapshot(ctx)
		if err == nil {
			matched := matchText(dom, text, spec.MatchMode())
			if matched != gone {
				return nil
			}
		}
		_ = scope
		if time.Now().After(deadline) {
			verb := "appear"
			if gone {
				verb = "disappear"
			}
			return fmt.Errorf("wait_for_text: %q did not %s within %s", text, verb, spec.Timeout())
		}
		if err := sleepOrDone(ctx, 200*time.Millisecond); err != nil {
			return err
		}
	}
}

func matchText(haystack, needle string, mode schema.MatchMode) bool {
	switch mode {
	case schema.MatchExact:
		return strings.TrimSpace(haystack) == strings.TrimSpace(needle)
	case schema.MatchRegex:
		re, err := regexp.Compile(needle)
		if err != nil {
			return false
		}
		return re.MatchString(haystack)
	default:
		return strings.Contains(haystack, needle)
	}
}

// handleAssert polls exprStr at retry.interval until truthy or
// retry.timeout elapses; evaluation errors are swallowed during the
// window (spec.md §4.3.5). assert is always browser-facing — it has no
// http_request-local counterpart — so the expression runs as real JS
// through the driver, per evalCondition's documented asymmetry.
func handleAssert(ctx context.Context, deps *Deps, spec *schema.AssertSpec) error {
	interval := spec.Retry.Interval()
	timeout := spec.Retry.Timeout()
	deadline := time.Now().Add(timeout)
	exprStr := deps.Scope.Interpolate(spec.Expr)

	var lastErr error
	for {
		v, err := deps.Driver.Evaluate(ctx, exprStr)
		if err == nil && eval.Truthy(v) {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("assert %q is falsy", spec.Expr)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("assert %q timed out after %s: %w", spec.Expr, timeout, lastErr)
		}
		if err := sleepOrDone(ctx, interval); err != nil {
			return err
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
