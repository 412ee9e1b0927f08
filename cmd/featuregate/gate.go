package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var markPassing bool

var precheckCmd = &cobra.Command{
	Use:   "precheck ID",
	Short: "Decide whether work on a feature may start",
	Long: `Decide whether work on a feature may start.

Generates the compatibility report and runs the smoke checks. Any missing
dependency, dependency cycle or failed smoke check blocks the feature.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrecheck,
}

var postcheckCmd = &cobra.Command{
	Use:   "postcheck ID",
	Short: "Decide whether a finished feature is verified",
	Long: `Decide whether a finished feature is verified.

Runs the integration tests of the feature and the regression tests of the
feature and its direct dependents. With --mark, a passing feature is
flipped to passing in the feature ledger.`,
	Args: cobra.ExactArgs(1),
	RunE: runPostcheck,
}

func init() {
	postcheckCmd.Flags().BoolVar(&markPassing, "mark", false, "Mark the feature passing if every test passes")
}

func runPrecheck(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	id := args[0]
	d, _, err := s.engine.PreCheck(cmd.Context(), id)
	if err != nil {
		return err
	}

	if jsonFlag {
		if err := printJSON(d); err != nil {
			return err
		}
	} else {
		if d.CanProceed {
			printStatus("✓", fmt.Sprintf("%s may proceed", id), color.FgGreen)
		} else {
			printStatus("✗", fmt.Sprintf("%s is blocked", id), color.FgRed)
		}
		printList("Blockers:", d.Blockers, color.FgRed)
		printList("Warnings:", d.Warnings, color.FgYellow)
	}

	if !d.CanProceed {
		return &exitError{code: exitBlocked}
	}
	return nil
}

func runPostcheck(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	id := args[0]
	d, err := s.engine.PostCheck(cmd.Context(), id)
	if err != nil {
		return err
	}

	if jsonFlag {
		if err := printJSON(d); err != nil {
			return err
		}
	} else {
		if d.AllPassed {
			printStatus("✓", fmt.Sprintf("%s verified", id), color.FgGreen)
		} else {
			printStatus("✗", fmt.Sprintf("%s has %d failing tests", id, len(d.Failures)), color.FgRed)
		}
		failures := make([]string, 0, len(d.Failures))
		for _, f := range d.Failures {
			failures = append(failures, fmt.Sprintf("%s %s: %s", f.TestID, f.TestName, firstLine(f.ErrorMessage)))
		}
		printList("Failures:", failures, color.FgRed)
		printList("Skipped:", d.Skipped, color.FgYellow)
	}

	if !d.AllPassed {
		return &exitError{code: exitBlocked}
	}

	if markPassing {
		if err := s.engine.MarkPassing(id, d); err != nil {
			return err
		}
		if !jsonFlag {
			printStatus("✓", fmt.Sprintf("%s marked passing", id), color.FgGreen)
		}
	}
	return nil
}
