// Package steps implements the Step Dispatcher and the ~30 step handlers
// (spec.md §4.2): given an interpolated step, it determines which operation
// field is set and routes to the matching handler, then applies the
// `as`/`skipped` writeback contract uniformly for every variant so no
// individual handler has to reimplement it.
//
// Handler style — small, self-contained functions each returning
// (value any, err error) — is grounded in an assertion-evaluator idiom
// seen elsewhere in the pack (EvalContains, EvalMatches, ...),
// generalized here from "comparison kinds" to "browser operations".
package steps

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/eval"
	"github.com/ormasoftchile/chromedir/internal/model"
	"github.com/ormasoftchile/chromedir/internal/schema"
	"github.com/ormasoftchile/chromedir/internal/vars"
)

// Result is a handler's outcome, translated by Dispatch into the
// vars[as]-writeback and skip bookkeeping spec.md §4.2 describes.
type Result struct {
	Success     bool
	Error       error
	Value       any
	Skipped     bool
	LoopContext []model.LoopFrame
}

// TestLoader is the narrow storage capability run_test needs: look up a
// test definition by id. Kept as an interface here (rather than importing
// internal/storage) to avoid a dependency cycle, since storage persists
// TestResults that embed schema.Step.
type TestLoader interface {
	GetTest(ctx context.Context, id string) (*schema.TestDefinition, error)
}

// Deps bundles everything a step handler needs beyond the step itself.
type Deps struct {
	Driver       driver.Driver
	Scope        *vars.Scope
	Loader       TestLoader
	VisitedTests map[string]bool
	HTTPClient   *http.Client

	// HTTPLimiter, when set, throttles http_request steps client-side so
	// a test (or a suite running many in parallel) can't hammer a target
	// faster than the caller intends. Nil means unthrottled.
	HTTPLimiter *rate.Limiter
}

func (d *Deps) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

// Dispatch evaluates the step's `if` guard, routes to the matching
// handler, and applies the as/skip writeback contract.
func Dispatch(ctx context.Context, step schema.Step, deps *Deps) Result {
	if step.If != "" {
		ok, err := evalCondition(ctx, deps, step.HTTPRequest != nil, step.If)
		if err != nil {
			return Result{Success: false, Error: fmt.Errorf("if %q: %w", step.If, err)}
		}
		if !ok {
			return Result{Success: true, Skipped: true}
		}
	}

	value, loopCtx, err := route(ctx, step, deps)
	if err != nil {
		return Result{Success: false, Error: err, LoopContext: loopCtx}
	}

	if step.As != "" && value != nil {
		deps.Scope.Set(step.As, value)
	}
	return Result{Success: true, Value: value}
}

// evalCondition evaluates a predicate expression, matching spec.md §4.2's
// documented asymmetry: http_request runs server-side with no page to
// evaluate against, so its own `if` field is a local expr-lang truthiness
// check on the interpolated text; every other (browser-facing) step
// routes the expression through the browser driver's Evaluate, so
// `if`/`assert`/`loop` predicates see real page state and accept real JS
// syntax rather than expr-lang's.
func evalCondition(ctx context.Context, deps *Deps, httpLocal bool, exprStr string) (bool, error) {
	interpolated := deps.Scope.Interpolate(exprStr)
	if httpLocal {
		v, err := eval.Run(deps.Scope, interpolated)
		if err != nil {
			return false, err
		}
		return eval.Truthy(v), nil
	}
	v, err := deps.Driver.Evaluate(ctx, interpolated)
	if err != nil {
		return false, err
	}
	return eval.Truthy(v), nil
}

// route is the discriminant switch from spec.md §4.2: the first populated
// operation field wins. Order matches the spec's enumeration.
func route(ctx context.Context, step schema.Step, deps *Deps) (any, []model.LoopFrame, error) {
	switch {
	case step.Eval != nil:
		v, err := handleEval(ctx, deps, *step.Eval)
		return v, nil, err
	case step.Fill != nil:
		return nil, nil, handleFill(ctx, deps, step.Fill)
	case step.Click != nil:
		return nil, nil, handleClick(ctx, deps, *step.Click)
	case step.Assert != nil:
		return nil, nil, handleAssert(ctx, deps, step.Assert)
	case step.Wait != nil:
		return nil, nil, handleWait(ctx, *step.Wait)
	case step.WaitFor != nil:
		return nil, nil, handleWaitFor(ctx, deps, step.WaitFor)
	case step.WaitForText != nil:
		return nil, nil, handleWaitForText(ctx, deps, step.WaitForText, false)
	case step.WaitForTextGone != nil:
		return nil, nil, handleWaitForText(ctx, deps, step.WaitForTextGone, true)
	case step.AssertText != nil:
		return nil, nil, handleAssertText(ctx, deps, step.AssertText)
	case step.ClickText != nil:
		return nil, nil, handleClickText(ctx, deps, step.ClickText)
	case step.ClickNth != nil:
		return nil, nil, handleClickNth(ctx, deps, step.ClickNth)
	case step.Type != nil:
		return nil, nil, handleType(ctx, deps, step.Type)
	case step.Select != nil:
		return nil, nil, handleSelect(ctx, deps, step.Select)
	case step.PressKey != nil:
		return nil, nil, handlePressKey(ctx, deps, step.PressKey)
	case step.Hover != nil:
		return nil, nil, deps.Driver.Hover(ctx, deps.Scope.Interpolate(*step.Hover))
	case step.ScrollTo != nil:
		return nil, nil, deps.Driver.ScrollTo(ctx, deps.Scope.Interpolate(*step.ScrollTo))
	case step.ClearInput != nil:
		return nil, nil, deps.Driver.ClearInput(ctx, deps.Scope.Interpolate(*step.ClearInput))
	case step.ScanInput != nil:
		v, err := handleScanInput(ctx, deps, step.ScanInput)
		return v, nil, err
	case step.FillForm != nil:
		return nil, nil, handleFillForm(ctx, deps, step.FillForm)
	case step.ConsoleCheck != nil:
		return nil, nil, handleConsoleCheck(ctx, deps, step.ConsoleCheck)
	case step.NetworkCheck != nil:
		return nil, nil, handleNetworkCheck(ctx, deps, step.NetworkCheck)
	case step.MockNetwork != nil:
		return nil, nil, handleMockNetwork(ctx, deps, step.MockNetwork)
	case step.HTTPRequest != nil:
		v, err := handleHTTPRequest(ctx, deps, step.HTTPRequest)
		return v, nil, err
	case step.Screenshot != nil:
		v, err := handleScreenshot(ctx, deps)
		return v, nil, err
	case step.SwitchFrame != nil:
		return nil, nil, deps.Driver.SwitchFrame(ctx, deps.Scope.Interpolate(step.SwitchFrame.Selector))
	case step.HandleDialog != nil:
		return nil, nil, deps.Driver.HandleDialog(ctx, string(step.HandleDialog.Action), deps.Scope.Interpolate(step.HandleDialog.Text))
	case step.CloseModal != nil:
		return nil, nil, deps.Driver.CloseModal(ctx, deps.Scope.Interpolate(*step.CloseModal))
	case step.ChooseDropdown != nil:
		return nil, nil, deps.Driver.ChooseDropdown(ctx, deps.Scope.Interpolate(step.ChooseDropdown.Selector), deps.Scope.Interpolate(step.ChooseDropdown.Label))
	case step.ExpandMenu != nil:
		return nil, nil, deps.Driver.ExpandMenu(ctx, deps.Scope.Interpolate(*step.ExpandMenu))
	case step.Toggle != nil:
		return nil, nil, deps.Driver.Toggle(ctx, deps.Scope.Interpolate(*step.Toggle))
	case step.Loop != nil:
		return handleLoop(ctx, deps, step.Loop)
	case step.RunTest != nil:
		return nil, nil, handleRunTest(ctx, deps, *step.RunTest)
	default:
		return nil, nil, fmt.Errorf("unknown step type")
	}
}

// handleEval is browser-facing (eval is never http_request-local), so it
// runs the interpolated expression as real JS through the driver rather
// than through expr-lang — see evalCondition's doc comment for the
// asymmetry this follows.
func handleEval(ctx context.Context, deps *Deps, expr string) (any, error) {
	return deps.Driver.Evaluate(ctx, deps.Scope.Interpolate(expr))
}

func handleFill(ctx context.Context, deps *Deps, spec *schema.FillSpec) error {
	return deps.Driver.Fill(ctx, deps.Scope.Interpolate(spec.Selector), deps.Scope.Interpolate(spec.Value))
}

func handleClick(ctx context.Context, deps *Deps, selector string) error {
	return deps.Driver.Click(ctx, deps.Scope.Interpolate(selector))
}

func handleWait(ctx context.Context, ms int) error {
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func handleType(ctx context.Context, deps *Deps, spec *schema.TypeSpec) error {
	return deps.Driver.Type(ctx, deps.Scope.Interpolate(spec.Selector), deps.Scope.Interpolate(spec.Text))
}

func handleSelect(ctx context.Context, deps *Deps, spec *schema.SelectSpec) error {
	return deps.Driver.Select(ctx, deps.Scope.Interpolate(spec.Selector), deps.Scope.Interpolate(spec.Value))
}

func handlePressKey(ctx context.Context, deps *Deps, spec *schema.PressKeySpec) error {
	return deps.Driver.PressKey(ctx, deps.Scope.Interpolate(spec.Key), spec.Modifiers)
}

func handleScanInput(ctx context.Context, deps *Deps, spec *schema.ScanInputSpec) (string, error) {
	return deps.Driver.ScanInput(ctx, deps.Scope.Interpolate(spec.Selector))
}

func handleFillForm(ctx context.Context, deps *Deps, fields map[string]string) error {
	for selector, value := range fields {
		if err := deps.Driver.Fill(ctx, deps.Scope.Interpolate(selector), deps.Scope.Interpolate(value)); err != nil {
			return err
		}
	}
	return nil
}

func handleClickText(ctx context.Context, deps *Deps, spec *schema.ClickTextSpec) error {
	return deps.Driver.ClickText(ctx, deps.Scope.Interpolate(spec.Scope), deps.Scope.Interpolate(spec.Text))
}

func handleClickNth(ctx context.Context, deps *Deps, spec *schema.ClickNthSpec) error {
	return deps.Driver.ClickNth(ctx, deps.Scope.Interpolate(spec.Selector), spec.Index)
}

func handleScreenshot(ctx context.Context, deps *Deps) (string, error) {
	return deps.Driver.CaptureScreenshot(ctx)
}
