package main

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/chromedir/internal/schema"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the test store for changes and validate tests as they're edited",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := filepath.Join(storeDir, "tests")

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	fmt.Printf("watching %s for changes (ctrl-c to stop)\n", dir)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(ev.Name) != ".yaml" && filepath.Ext(ev.Name) != ".yml" && filepath.Ext(ev.Name) != ".json" {
				continue
			}
			def, errs := schema.ValidateFile(ev.Name)
			if hasFailures(errs) {
				fmt.Printf("✗ %s: %d error(s)\n", ev.Name, len(errs))
				for _, e := range errs {
					fmt.Printf("    [%s] %s\n", e.Phase, e.Message)
				}
				continue
			}
			fmt.Printf("✓ %s (%d steps)\n", def.ID, len(def.Steps))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Printf("watch error: %v\n", err)
		}
	}
}

func hasFailures(errs []*schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}
