package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/chromedir/internal/debugctl"
	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/engine"
	"github.com/ormasoftchile/chromedir/internal/events"
	"github.com/ormasoftchile/chromedir/internal/logging"
	"github.com/ormasoftchile/chromedir/internal/storage"
)

var (
	runResumeFrom int
	runDebug      bool
	runStepDelay  int
	runJSON       bool
	runInputs     []string
)

var runCmd = &cobra.Command{
	Use:   "run <testId>",
	Short: "Run one test by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&runResumeFrom, "resume-from", -1, "Override resumeFrom (step index to start at)")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Arm the debug controller, pausing before every step")
	runCmd.Flags().IntVar(&runStepDelay, "step-delay", 0, "Milliseconds to pause between steps")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the TestResult as JSON")
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "Set an input value (key=value), repeatable")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := logging.Default(context.Background())
	testID := args[0]

	store, err := storage.New(storeDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	def, err := store.GetTest(ctx, testID)
	if err != nil {
		return fmt.Errorf("load test: %w", err)
	}
	if def == nil {
		return fmt.Errorf("test %q not found in %s", testID, storeDir)
	}
	if runResumeFrom >= 0 {
		rf := runResumeFrom
		def.ResumeFrom = &rf
	}

	inputs, err := parseKeyValues(runInputs)
	if err != nil {
		return err
	}

	emitter := events.New(printEvent(runJSON))

	var debug *debugctl.Controller
	if runDebug || runStepDelay > 0 {
		debug = debugctl.New(debugctl.Config{
			Debug:     runDebug,
			StepDelay: time.Duration(runStepDelay) * time.Millisecond,
		})
	}

	result := engine.Run(ctx, def, engine.Config{
		Driver:      driver.NewFake(),
		Loader:      store,
		Debug:       debug,
		Events:      emitter,
		BaseDir:     filepath.Join(storeDir, "tests"),
		InputValues: inputs,
	})

	if _, err := store.SaveRun(ctx, testID, result); err != nil {
		logging.Errorf(ctx, "save run record: %v", err)
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Status == "passed" {
		fmt.Printf("passed (%d steps, %dms)\n", result.StepsCompleted, result.DurationMS)
		return nil
	}
	fmt.Printf("failed at step %d (%s): %s\n", result.FailedStep, result.FailedLabel, result.Error)
	return fmt.Errorf("test failed")
}

func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --input %q: expected key=value", p)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

// printEvent returns a listener that writes one line per event to stdout;
// in --json mode it writes the raw event as a JSON line instead, so a
// caller can stream progress into another tool.
func printEvent(asJSON bool) events.Listener {
	return func(evt events.Event) {
		if asJSON {
			b, err := json.Marshal(evt)
			if err != nil {
				return
			}
			fmt.Println(string(b))
			return
		}
		switch evt.Type {
		case events.StepStart:
			fmt.Printf("  → [%d] %s\n", evt.StepIndex, evt.Label)
		case events.StepPass:
			if evt.Skipped {
				fmt.Printf("  ○ [%d] %s (skipped)\n", evt.StepIndex, evt.Label)
			} else {
				fmt.Printf("  ✓ [%d] %s (%dms)\n", evt.StepIndex, evt.Label, evt.DurationMS)
			}
		case events.StepFail:
			fmt.Printf("  ✗ [%d] %s: %s\n", evt.StepIndex, evt.Label, evt.Error)
		}
	}
}
