// Package engine implements the Step Runner lifecycle (spec.md §4.3):
// connect, the three-phase before-hook ordering, navigate, verify-page,
// the main step loop (gated by the debug controller), always-run
// after-hooks, and the test-wide timeout race. It unifies two lifecycle
// shapes seen elsewhere in the pack — a cleaner separation of "build a
// RunConfig, drive a single RunResult" on one side, and a richer
// step-kind vocabulary with evalCondition/resolveTemplate naming on the
// other — into the one lifecycle this module needs.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ormasoftchile/chromedir/internal/debugctl"
	"github.com/ormasoftchile/chromedir/internal/diagnostics"
	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/events"
	"github.com/ormasoftchile/chromedir/internal/fixtures"
	"github.com/ormasoftchile/chromedir/internal/logging"
	"github.com/ormasoftchile/chromedir/internal/model"
	"github.com/ormasoftchile/chromedir/internal/schema"
	"github.com/ormasoftchile/chromedir/internal/steps"
	"github.com/ormasoftchile/chromedir/internal/vars"
)

// Config bundles everything one test execution needs beyond the test
// definition itself.
type Config struct {
	Driver      driver.Driver
	Loader      steps.TestLoader
	Debug       *debugctl.Controller // nil disables the pause/step gate
	Events      *events.Emitter      // nil discards events
	HTTPClient  *http.Client
	HTTPLimiter *rate.Limiter // nil disables client-side throttling of http_request steps
	SessionID   string
	CreateTab   bool
	BaseDir     string // resolves relative fixture paths
	InputValues map[string]any
}

func (c Config) events() *events.Emitter {
	if c.Events == nil {
		return events.New(nil)
	}
	return c.Events
}

// Run executes one TestDefinition end to end and returns its result.
func Run(ctx context.Context, def *schema.TestDefinition, cfg Config) *model.TestResult {
	start := time.Now()

	fixtureDocs, err := fixtures.Load(cfg.BaseDir, def.Fixtures)
	if err != nil {
		return &model.TestResult{
			Status:     model.StatusFailed,
			FailedStep: -1,
			Error:      err.Error(),
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	scope := vars.NewScope(def.Env, fixtureDocs)
	seedInputs(scope, def.Inputs, cfg.InputValues)

	deps := &steps.Deps{
		Driver:       cfg.Driver,
		Scope:        scope,
		Loader:       cfg.Loader,
		VisitedTests: map[string]bool{},
		HTTPClient:   cfg.HTTPClient,
		HTTPLimiter:  cfg.HTTPLimiter,
	}

	timeout := def.Timeout()
	mainCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	doneCh := make(chan *model.TestResult, 1)
	go func() {
		doneCh <- runMain(mainCtx, def, deps, cfg, start)
	}()

	var result *model.TestResult
	select {
	case result = <-doneCh:
	case <-mainCtx.Done():
		result = &model.TestResult{
			Status:     model.StatusFailed,
			FailedStep: -1,
			Error:      fmt.Sprintf("Test timed out after %dms", timeout.Milliseconds()),
		}
	}

	runAfterHooks(context.Background(), def, deps, cfg)
	result.DurationMS = time.Since(start).Milliseconds()
	return result
}

func seedInputs(scope *vars.Scope, inputs []schema.InputSpec, overrides map[string]any) {
	for _, in := range inputs {
		if in.Default != nil {
			scope.Set(in.Name, in.Default)
		}
	}
	for name, v := range overrides {
		scope.Set(name, v)
	}
}

// runMain performs connect through the end of the main step loop. It does
// not run after-hooks or disconnect — those always happen exactly once in
// Run, regardless of whether this function returned normally or the
// test-wide timeout fired first.
func runMain(ctx context.Context, def *schema.TestDefinition, deps *steps.Deps, cfg Config, start time.Time) *model.TestResult {
	if err := cfg.Driver.Connect(ctx, def.URL, driver.ConnectOptions{CreateTab: cfg.CreateTab, SessionID: cfg.SessionID}); err != nil {
		return buildFailed(ctx, deps, cfg, -1, "", schema.Step{}, fmt.Errorf("connect: %w", err), start, nil, nil)
	}

	phaseA, phaseB, phaseC := partitionBeforeHooks(def.Before)

	for _, idx := range phaseA {
		step := def.Before[idx]
		if res := runHookStep(ctx, deps, cfg, events.BeforeHookIndex(idx), step); !res.Success {
			return buildFailed(ctx, deps, cfg, events.BeforeHookIndex(idx), step.Label, step, res.Error, start, nil, nil)
		}
	}
	for _, idx := range phaseB {
		step := def.Before[idx]
		if res := runHookStep(ctx, deps, cfg, events.BeforeHookIndex(idx), step); !res.Success {
			return buildFailed(ctx, deps, cfg, events.BeforeHookIndex(idx), step.Label, step, res.Error, start, nil, nil)
		}
	}

	if err := cfg.Driver.Navigate(ctx, deps.Scope.Interpolate(def.URL)); err != nil {
		return buildFailed(ctx, deps, cfg, -1, "", schema.Step{}, fmt.Errorf("navigate: %w", err), start, nil, nil)
	}

	if def.VerifyPage != nil {
		if err := verifyPage(ctx, cfg.Driver, deps.Scope, def.VerifyPage); err != nil {
			return buildFailed(ctx, deps, cfg, -1, "", schema.Step{}, err, start, nil, nil)
		}
	}

	for _, idx := range phaseC {
		step := def.Before[idx]
		if res := runHookStep(ctx, deps, cfg, events.BeforeHookIndex(idx), step); !res.Success {
			return buildFailed(ctx, deps, cfg, events.BeforeHookIndex(idx), step.Label, step, res.Error, start, nil, nil)
		}
	}

	startIdx, warning, err := resolveResumeFrom(def)
	if err != nil {
		return buildFailed(ctx, deps, cfg, -1, "", schema.Step{}, err, start, nil, nil)
	}
	var warnings []string
	if warning != "" {
		logging.Warnf(ctx, "%s", warning)
		warnings = append(warnings, warning)
	}

	domSnapshots := map[int]string{}
	stepsCompleted := 0

	for i := startIdx; i < len(def.Steps); i++ {
		step := def.Steps[i]

		if cfg.Debug != nil {
			if err := cfg.Debug.Gate(ctx, i, len(def.Steps)); err != nil {
				return buildFailed(ctx, deps, cfg, i, step.Label, step, err, start, warnings, domSnapshots)
			}
		}

		cfg.events().EmitStepStart(i, step.Label, false)
		stepStart := time.Now()
		res := steps.Dispatch(ctx, step, deps)
		durMS := time.Since(stepStart).Milliseconds()

		if step.CaptureDom {
			if dom, err := cfg.Driver.GetDomSnapshot(ctx); err == nil {
				domSnapshots[i] = dom
			}
		}

		if !res.Success {
			cfg.events().EmitStepFail(i, step.Label, durMS, res.Error.Error())
			result := buildFailed(ctx, deps, cfg, i, step.Label, step, res.Error, start, warnings, domSnapshots)
			result.LoopContext = res.LoopContext
			return result
		}

		cfg.events().EmitStepPass(i, step.Label, durMS, res.Skipped)
		stepsCompleted++
	}

	return &model.TestResult{
		Status:         model.StatusPassed,
		StepsCompleted: stepsCompleted,
		DomSnapshots:   domSnapshots,
		Warnings:       warnings,
	}
}

func partitionBeforeHooks(before []schema.Step) (phaseA, phaseB, phaseC []int) {
	for i, s := range before {
		switch {
		case s.HTTPRequest != nil:
			phaseA = append(phaseA, i)
		case s.MockNetwork != nil:
			phaseB = append(phaseB, i)
		default:
			phaseC = append(phaseC, i)
		}
	}
	return
}

func runHookStep(ctx context.Context, deps *steps.Deps, cfg Config, eventIdx int, step schema.Step) steps.Result {
	cfg.events().EmitStepStart(eventIdx, step.Label, false)
	start := time.Now()
	res := steps.Dispatch(ctx, step, deps)
	dur := time.Since(start).Milliseconds()
	if !res.Success {
		cfg.events().EmitStepFail(eventIdx, step.Label, dur, res.Error.Error())
		return res
	}
	cfg.events().EmitStepPass(eventIdx, step.Label, dur, res.Skipped)
	return res
}

// resolveResumeFrom implements spec.md §4.3.1: bounds-check resumeFrom,
// and fall back to a full run (with a warning) if any step that would be
// skipped sets a variable.
func resolveResumeFrom(def *schema.TestDefinition) (start int, warning string, err error) {
	if def.ResumeFrom == nil {
		return 0, "", nil
	}
	n := *def.ResumeFrom
	if n < 0 || n > len(def.Steps) {
		return 0, "", fmt.Errorf("resumeFrom %d out of bounds [0,%d]", n, len(def.Steps))
	}
	for i := 0; i < n; i++ {
		if def.Steps[i].As != "" {
			return 0, "Skipped steps contain variable storage; re-running from start", nil
		}
	}
	return n, "", nil
}

// verifyPage polls selector/title/urlContains at 100ms until every
// configured check passes or the budget elapses (spec.md §4.3 step 5).
func verifyPage(ctx context.Context, drv driver.Driver, scope *vars.Scope, vp *schema.VerifyPage) error {
	deadline := time.Now().Add(vp.Timeout())
	for {
		failure := firstVerifyFailure(ctx, drv, scope, vp)
		if failure == "" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("verify_page: %s", failure)
		}
		if err := sleepOrDone(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
}

func firstVerifyFailure(ctx context.Context, drv driver.Driver, scope *vars.Scope, vp *schema.VerifyPage) string {
	if vp.Selector != "" {
		sel := scope.Interpolate(vp.Selector)
		v, err := drv.Evaluate(ctx, fmt.Sprintf("document.querySelector(%q) !== null", sel))
		if b, ok := v.(bool); err != nil || !ok || !b {
			return fmt.Sprintf("selector %q not found", vp.Selector)
		}
	}
	if vp.Title != "" {
		v, err := drv.Evaluate(ctx, "document.title")
		s, ok := v.(string)
		if err != nil || !ok || !strings.Contains(s, scope.Interpolate(vp.Title)) {
			return fmt.Sprintf("title does not contain %q", vp.Title)
		}
	}
	if vp.URLContains != "" {
		v, err := drv.Evaluate(ctx, "window.location.href")
		s, ok := v.(string)
		if err != nil || !ok || !strings.Contains(s, scope.Interpolate(vp.URLContains)) {
			return fmt.Sprintf("url does not contain %q", vp.URLContains)
		}
	}
	return ""
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

// buildFailed assembles a Failed TestResult, attaching best-effort
// diagnostics captured from drv. Diagnostic capture failures are silently
// absorbed by diagnostics.Capture itself and never alter err.
func buildFailed(ctx context.Context, deps *steps.Deps, cfg Config, failedStep int, label string, step schema.Step, err error, start time.Time, warnings []string, domSnapshots map[int]string) *model.TestResult {
	bundle := diagnostics.Capture(ctx, cfg.Driver)
	clone := step.Clone()
	return &model.TestResult{
		Status:         model.StatusFailed,
		FailedStep:     failedStep,
		FailedLabel:    label,
		StepDefinition: &clone,
		Error:          err.Error(),
		Screenshot:     bundle.Screenshot,
		ConsoleLog:     bundle.ConsoleLog,
		NetworkLog:     bundle.NetworkLog,
		DomSnapshot:    bundle.DomSnapshot,
		DomSnapshots:   domSnapshots,
		Warnings:       warnings,
	}
}

// runAfterHooks always executes, in declaration order, with every error
// absorbed (spec.md §4.3 step 8), then disconnects the driver (errors
// absorbed, step 9).
func runAfterHooks(ctx context.Context, def *schema.TestDefinition, deps *steps.Deps, cfg Config) {
	for i, step := range def.After {
		idx := events.AfterHookIndex(i)
		res := runHookStep(ctx, deps, cfg, idx, step)
		if !res.Success {
			logging.Errorf(ctx, "after-hook %d (%s) failed: %v", i, step.Label, res.Error)
		}
	}
	if err := cfg.Driver.Close(ctx); err != nil {
		logging.Errorf(ctx, "disconnect: %v", err)
	}
}
