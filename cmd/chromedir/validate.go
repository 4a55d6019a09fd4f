package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/chromedir/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [test.yaml]",
	Short: "Validate a test definition file against the schema and domain rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	def, errs := schema.ValidateFile(path)

	var warnings, failures []*schema.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			warnings = append(warnings, e)
		} else {
			failures = append(failures, e)
		}
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  warning [%s] %s\n", w.Phase, w.Message)
	}
	if len(failures) > 0 {
		fmt.Fprintf(os.Stderr, "validation failed: %d error(s)\n", len(failures))
		for i, e := range failures {
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s: %s\n", i+1, e.Phase, e.Path, e.Message)
			} else {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(failures))
	}

	name := def.ID
	if name == "" {
		name = path
	}
	fmt.Printf("%s is valid (%d steps)\n", name, len(def.Steps))
	return nil
}
