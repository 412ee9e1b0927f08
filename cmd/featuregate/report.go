package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/featuregate/internal/tui"
)

var reportCmd = &cobra.Command{
	Use:   "report ID",
	Short: "Show the compatibility report of a feature",
	Long: `Show the compatibility report of a feature: dependency validation,
transitive dependencies, dependents, interface obligations, integration
tests and recommendations.

The report is informational; use can-implement or precheck for a verdict.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

var canImplementCmd = &cobra.Command{
	Use:   "can-implement ID",
	Short: "Check whether a feature's hard dependencies all pass",
	Args:  cobra.ExactArgs(1),
	RunE:  runCanImplement,
}

func runReport(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.engine.GenerateCompatibilityReport(args[0])
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(r)
	}
	fmt.Print(tui.RenderReport(r))
	return nil
}

func runCanImplement(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	id := args[0]
	v, err := s.engine.CanImplement(id)
	if err != nil {
		return err
	}

	if jsonFlag {
		if err := printJSON(v); err != nil {
			return err
		}
	} else {
		switch {
		case v.NotFound:
			printStatus("✗", v.Error, color.FgRed)
		case v.CanImplement:
			printStatus("✓", fmt.Sprintf("%s can be implemented", id), color.FgGreen)
		default:
			printStatus("✗", fmt.Sprintf("%s is blocked", id), color.FgRed)
			printList("Missing dependencies:", v.MissingDependencies, color.FgRed)
		}
		printList("Unknown dependencies:", v.UnknownDependencies, color.FgYellow)
	}

	if !v.CanImplement {
		return &exitError{code: exitBlocked}
	}
	return nil
}
