// Package suite implements the Suite Runner (spec.md §4.5): resolves a set
// of tests, runs them with bounded concurrency over one shared browser
// driver (isolated by tab/session when concurrency>1), preserves input
// order in the result array regardless of completion order, and supports
// stop-on-failure.
//
// Bounded concurrency uses golang.org/x/sync/semaphore, the same x/sync
// family the pack's nya3jp-tast build pipeline uses (there via errgroup)
// for bounding parallel work — chosen over errgroup for admission control
// because a per-test failure is data (written into results[i]), not an
// error that should cancel sibling goroutines. errgroup is still used,
// but only as goroutine-lifecycle plumbing: it recovers a panicking
// test's goroutine and surfaces that one unexpected error from Run,
// without touching the semaphore's admission gate or results ordering.
package suite

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/engine"
	"github.com/ormasoftchile/chromedir/internal/events"
	"github.com/ormasoftchile/chromedir/internal/model"
	"github.com/ormasoftchile/chromedir/internal/schema"
	"github.com/ormasoftchile/chromedir/internal/steps"
	"github.com/ormasoftchile/chromedir/internal/storage"
)

// sharedSessionID is used when Concurrency == 1: every test reuses the
// same logical tab, matching spec.md §4.5 step 4.
const sharedSessionID = "suite-shared"

// Config describes one suite run. Exactly one of Tag/TestIDs must be set.
type Config struct {
	Tag           string
	TestIDs       []string
	StopOnFailure bool
	Concurrency   int

	Storage    *storage.Store
	Driver     driver.Driver
	Loader     steps.TestLoader
	Events     *events.Emitter
	BaseDir    string
}

func (c Config) events() *events.Emitter {
	if c.Events == nil {
		return events.New(nil)
	}
	return c.Events
}

// Run resolves the test set and executes it, returning the aggregate
// result with results ordered to match the resolved test list.
func Run(ctx context.Context, cfg Config) (*model.SuiteResult, error) {
	if (cfg.Tag == "") == (len(cfg.TestIDs) == 0) {
		return nil, fmt.Errorf("suite: exactly one of tag or testIds must be provided")
	}
	start := time.Now()

	tests, err := resolveTests(ctx, cfg)
	if err != nil {
		return nil, err
	}
	n := len(tests)
	results := make([]model.SuiteTestResult, n)

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var unexpected error

	if concurrency == 1 {
		// A single concurrent slot means one test runs at a time either
		// way; running it in this goroutine (no semaphore, no fan-out)
		// makes submission order and stop-on-failure deterministic,
		// rather than leaving it to however the scheduler races N
		// goroutines for a weight-1 semaphore.
		var stopped atomic.Bool
		cfg.events().EmitSuiteStart(n)
		for i, def := range tests {
			runOne(ctx, cfg, i, def, nil, &stopped, results, concurrency)
		}
	} else {
		sem := semaphore.NewWeighted(int64(concurrency))
		var stopped atomic.Bool
		var g errgroup.Group

		cfg.events().EmitSuiteStart(n)

		for i, def := range tests {
			i, def := i, def
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("suite: test %s panicked: %v", def.ID, r)
					}
				}()
				runOne(ctx, cfg, i, def, sem, &stopped, results, concurrency)
				return nil
			})
		}
		// g.Wait only ever surfaces a panic recovered above — a test's own
		// failure is data written into results[i], never an error here, so
		// one test's bug can't stop its siblings from finishing.
		unexpected = g.Wait()
	}

	agg := aggregate(results, time.Since(start).Milliseconds())
	cfg.events().EmitSuiteComplete(agg)
	return agg, unexpected
}

func runOne(ctx context.Context, cfg Config, i int, def *schema.TestDefinition, sem *semaphore.Weighted, stopped *atomic.Bool, results []model.SuiteTestResult, concurrency int) {
	if stopped.Load() {
		results[i] = model.SuiteTestResult{TestID: def.ID, TestName: def.Name, Status: "skipped"}
		return
	}
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = model.SuiteTestResult{TestID: def.ID, TestName: def.Name, Status: "skipped"}
			return
		}
		defer sem.Release(1)
	}

	if stopped.Load() {
		results[i] = model.SuiteTestResult{TestID: def.ID, TestName: def.Name, Status: "skipped"}
		return
	}

	cfg.events().EmitSuiteTestStart(def.ID, def.Name, i)

	createTab := concurrency > 1
	sessionID := sharedSessionID
	if createTab {
		sessionID = fmt.Sprintf("suite-%s-%d", def.ID, time.Now().UnixNano())
	}

	result := engine.Run(ctx, def, engine.Config{
		Driver:    cfg.Driver,
		Loader:    cfg.Loader,
		Events:    cfg.Events,
		SessionID: sessionID,
		CreateTab: createTab,
		BaseDir:   cfg.BaseDir,
	})

	runID := ""
	if cfg.Storage != nil {
		if run, err := cfg.Storage.SaveRun(ctx, def.ID, result); err == nil {
			runID = run.ID
		}
	}

	status := string(result.Status)
	cfg.events().EmitSuiteTestComplete(def.ID, i, status, result.DurationMS, result.Error)

	results[i] = model.SuiteTestResult{
		TestID:     def.ID,
		TestName:   def.Name,
		Status:     status,
		DurationMS: result.DurationMS,
		Error:      result.Error,
		RunID:      runID,
		Result:     result,
	}

	if result.Status == model.StatusFailed && cfg.StopOnFailure {
		stopped.Store(true)
	}
}

func resolveTests(ctx context.Context, cfg Config) ([]*schema.TestDefinition, error) {
	if len(cfg.TestIDs) > 0 {
		var out []*schema.TestDefinition
		for _, id := range cfg.TestIDs {
			def, err := cfg.Storage.GetTest(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("suite: resolve test %s: %w", id, err)
			}
			if def == nil {
				continue // silently dropped per spec.md §4.5
			}
			out = append(out, def)
		}
		return out, nil
	}
	return cfg.Storage.ListTests(ctx, cfg.Tag)
}

func aggregate(results []model.SuiteTestResult, durationMS int64) *model.SuiteResult {
	agg := &model.SuiteResult{
		Total:      len(results),
		DurationMS: durationMS,
		Results:    results,
	}
	for _, r := range results {
		switch r.Status {
		case string(model.StatusPassed):
			agg.Passed++
		case string(model.StatusFailed):
			agg.Failed++
		default:
			agg.Skipped++
		}
	}
	if agg.Failed > 0 {
		agg.Status = model.SuiteStatusFailed
	} else {
		agg.Status = model.SuiteStatusPassed
	}
	return agg
}
