package steps

import (
	"context"
	"fmt"
)

// handleRunTest executes another test's `steps` inline, sharing the
// caller's vars and driver, per spec.md §4.3.3. `before`/`after`/`env` of
// the nested test are not used; the parent's env still applies to
// interpolation of the nested steps.
func handleRunTest(ctx context.Context, deps *Deps, id string) error {
	if id == "" {
		return fmt.Errorf("run_test: empty test id")
	}
	if deps.VisitedTests[id] {
		return fmt.Errorf("Cycle detected: %s is already running", id)
	}
	deps.VisitedTests[id] = true
	defer delete(deps.VisitedTests, id)

	def, err := deps.Loader.GetTest(ctx, id)
	if err != nil {
		return fmt.Errorf("run_test %s: %w", id, err)
	}

	if err := deps.Driver.Navigate(ctx, def.URL); err != nil {
		return fmt.Errorf("run_test %s: navigate: %w", id, err)
	}

	for k, sub := range def.Steps {
		res := Dispatch(ctx, sub, deps)
		if !res.Success {
			return fmt.Errorf("Sub-test %s failed at step %d (%s): %v", id, k, sub.Label, res.Error)
		}
	}
	return nil
}
