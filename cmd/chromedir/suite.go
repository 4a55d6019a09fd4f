package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/events"
	"github.com/ormasoftchile/chromedir/internal/logging"
	"github.com/ormasoftchile/chromedir/internal/storage"
	"github.com/ormasoftchile/chromedir/internal/suite"
)

var (
	suiteTag           string
	suiteIDs           []string
	suiteConcurrency   int
	suiteStopOnFailure bool
	suiteJSON          bool
)

var suiteCmd = &cobra.Command{
	Use:   "suite (--tag T | --ids a,b,c)",
	Short: "Run a set of tests, optionally in parallel",
	Args:  cobra.NoArgs,
	RunE:  runSuite,
}

func init() {
	suiteCmd.Flags().StringVar(&suiteTag, "tag", "", "Run every test carrying this tag")
	suiteCmd.Flags().StringSliceVar(&suiteIDs, "ids", nil, "Run exactly these test ids, comma-separated")
	suiteCmd.Flags().IntVar(&suiteConcurrency, "concurrency", 1, "Maximum tests running at once")
	suiteCmd.Flags().BoolVar(&suiteStopOnFailure, "stop-on-failure", false, "Stop admitting new tests after the first failure")
	suiteCmd.Flags().BoolVar(&suiteJSON, "json", false, "Print the SuiteResult as JSON")
}

func runSuite(cmd *cobra.Command, args []string) error {
	ctx := logging.Default(context.Background())

	store, err := storage.New(storeDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	emitter := events.New(func(evt events.Event) {
		if suiteJSON {
			return
		}
		switch evt.Type {
		case events.SuiteStart:
			fmt.Printf("suite: %d test(s)\n", evt.Total)
		case events.SuiteTestStart:
			fmt.Printf("  → %s\n", evt.TestID)
		case events.SuiteTestComplete:
			sym := "✓"
			if evt.Status != "passed" {
				sym = "✗"
			}
			fmt.Printf("  %s %s (%s, %dms)\n", sym, evt.TestID, evt.Status, evt.DurationMS)
		}
	})

	result, err := suite.Run(ctx, suite.Config{
		Tag:           suiteTag,
		TestIDs:       suiteIDs,
		StopOnFailure: suiteStopOnFailure,
		Concurrency:   suiteConcurrency,
		Storage:       store,
		Driver:        driver.NewFake(),
		Loader:        store,
		Events:        emitter,
		BaseDir:       filepath.Join(storeDir, "tests"),
	})
	if err != nil {
		return err
	}

	if suiteJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("%s: %d passed, %d failed, %d skipped (%dms)\n",
		strings.ToUpper(string(result.Status)), result.Passed, result.Failed, result.Skipped, result.DurationMS)
	if result.Status != "passed" {
		return fmt.Errorf("suite failed")
	}
	return nil
}
