package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const historyTimeFormat = "2006-01-02 15:04:05"

var (
	historyLimit int
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [ID]",
	Short: "Show journaled gate decisions and status changes",
	Long: `Show journaled gate decisions and status changes for one feature, or for
the whole project together with recent test runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum decisions and runs to show")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete history older than this age (e.g. 720h) instead of showing it")
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	if historyPurge > 0 {
		n, err := s.engine.PurgeHistory(historyPurge)
		if err != nil {
			return fmt.Errorf("purge history: %w", err)
		}
		printStatus("✓", fmt.Sprintf("Removed %d journal entries older than %s", n, historyPurge), color.FgGreen)
		return nil
	}

	var id string
	if len(args) == 1 {
		id = args[0]
	}
	h, err := s.engine.History(id, historyLimit)
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(h)
	}

	if len(h.Decisions) == 0 && len(h.Events) == 0 && len(h.Runs) == 0 {
		fmt.Println("No history recorded.")
		return nil
	}

	if len(h.Decisions) > 0 {
		fmt.Println(color.New(color.Bold).Sprint("Decisions"))
		for _, d := range h.Decisions {
			verdict := color.GreenString("passed")
			if !d.Passed {
				verdict = color.RedString("blocked")
			}
			line := fmt.Sprintf("  %s  %-5s %-10s %s", d.CreatedAt.Local().Format(historyTimeFormat), d.Kind, d.FeatureID, verdict)
			if reasons := append(append([]string{}, d.Blockers...), d.Failures...); len(reasons) > 0 {
				line += ": " + strings.Join(reasons, "; ")
			}
			fmt.Println(line)
		}
	}

	if len(h.Events) > 0 {
		fmt.Println(color.New(color.Bold).Sprint("\nEvents"))
		for _, e := range h.Events {
			line := fmt.Sprintf("  %s  %-10s %s", e.CreatedAt.Local().Format(historyTimeFormat), e.FeatureID, e.Event)
			if e.Detail != "" {
				line += ": " + e.Detail
			}
			fmt.Println(line)
		}
	}

	if len(h.Runs) > 0 {
		fmt.Println(color.New(color.Bold).Sprint("\nTest runs"))
		for _, r := range h.Runs {
			line := fmt.Sprintf("  %s  %-11s %d/%d passed", r.StartedAt.Local().Format(historyTimeFormat), r.Tier, r.Passed, r.Total)
			if r.Skipped != "" {
				line = fmt.Sprintf("  %s  %-11s skipped: %s", r.StartedAt.Local().Format(historyTimeFormat), r.Tier, r.Skipped)
			}
			fmt.Println(line)
		}
	}
	return nil
}
