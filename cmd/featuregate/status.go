package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/featuregate/internal/graph"
	"github.com/ShayCichocki/featuregate/internal/tui"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the most urgent implementable feature",
	Args:  cobra.NoArgs,
	RunE:  runNext,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every feature with its status",
	Long: `Show every feature of the ledger in build order with its status:

  PASS     the feature passes
  READY    all hard dependencies pass
  BLOCKED  at least one hard dependency does not pass`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the ledgers for consistency problems",
	Long: `Check the ledgers for unknown dependencies, dependency cycles, contracts
that are referenced but not defined, and contracts without an implementer.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runNext(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.engine.Next()
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(n)
	}

	p := n.Progress
	fmt.Printf("%d/%d features passing, %d remaining\n\n", p.Passing, p.Total, p.Remaining())
	switch {
	case n.Feature != nil:
		f := n.Feature
		printStatus("→", fmt.Sprintf("%s (priority %d) %s", f.ID, f.Priority, f.Description), color.FgCyan)
		for i, step := range f.Steps {
			fmt.Printf("    %d. %s\n", i+1, step)
		}
	case n.Blocked != nil:
		printStatus("✗", n.Blocked.Message, color.FgRed)
	default:
		printStatus("✓", "All features pass", color.FgGreen)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	features, err := s.engine.Manager().BuildOrder()
	if errors.Is(err, graph.ErrCycleDetected) {
		s.logger.Warn("dependency cycle, listing features in ledger order", zap.Error(err))
		features, err = s.engine.Store().Features()
	}
	if err != nil {
		return fmt.Errorf("load features: %w", err)
	}
	progress, err := s.engine.Manager().Progress()
	if err != nil {
		return err
	}

	type row struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	rows := make([]row, 0, len(features))
	for _, f := range features {
		status := tui.StatusPassing
		if !f.Passes {
			v, err := s.engine.CanImplement(f.ID)
			if err != nil {
				return err
			}
			status = tui.StatusBlocked
			if v.CanImplement {
				status = tui.StatusReady
			}
		}
		rows = append(rows, row{ID: f.ID, Status: status})
	}

	if jsonFlag {
		return printJSON(map[string]any{"progress": progress, "features": rows})
	}

	fmt.Printf("%d/%d passing • %d ready • %d blocked\n\n",
		progress.Passing, progress.Total, progress.Implementable, progress.Blocked)
	for i, f := range features {
		var c *color.Color
		switch rows[i].Status {
		case tui.StatusPassing:
			c = color.New(color.FgGreen)
		case tui.StatusReady:
			c = color.New(color.FgYellow)
		default:
			c = color.New(color.FgRed)
		}
		deps := f.DependencyIDs()
		line := fmt.Sprintf("%-10s %s %3d  %s", f.ID, c.Sprintf("%-8s", rows[i].Status), f.Priority, f.Description)
		if len(deps) > 0 {
			line += color.New(color.Faint).Sprintf("  (needs %s)", strings.Join(deps, ", "))
		}
		fmt.Println(line)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	problems, err := s.engine.Validate()
	if err != nil {
		return err
	}
	if jsonFlag {
		if err := printJSON(problems); err != nil {
			return err
		}
	} else if len(problems) == 0 {
		printStatus("✓", "Ledgers are consistent", color.FgGreen)
	} else {
		for _, p := range problems {
			printStatus("✗", fmt.Sprintf("[%s] %s", p.Kind, p.Message), color.FgRed)
		}
	}

	if len(problems) > 0 {
		return blocked("%d problems found", len(problems))
	}
	return nil
}
