package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/featuregate/internal/testrunner"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

var testReportLast int

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Run the smoke checks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTier(cmd, func(s *session) (*models.TestBatch, error) {
			return s.engine.RunSmokeTests(cmd.Context())
		})
	},
}

var integrationCmd = &cobra.Command{
	Use:   "integration [ID...]",
	Short: "Run integration tests, optionally only those of the given features",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTier(cmd, func(s *session) (*models.TestBatch, error) {
			return s.engine.RunIntegrationTests(cmd.Context(), args...)
		})
	},
}

var regressionCmd = &cobra.Command{
	Use:   "regression ID",
	Short: "Run regression tests for a feature and its direct dependents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTier(cmd, func(s *session) (*models.TestBatch, error) {
			return s.engine.RunRegressionTests(cmd.Context(), args[0])
		})
	},
}

var testReportCmd = &cobra.Command{
	Use:   "test-report",
	Short: "Summarize the persisted test results",
	Args:  cobra.NoArgs,
	RunE:  runTestReport,
}

func init() {
	testReportCmd.Flags().IntVar(&testReportLast, "last", 10, "Batches per tier to include (0 for all)")
}

// runTier runs one tier and exits with exitBlocked if any test failed.
func runTier(cmd *cobra.Command, run func(*session) (*models.TestBatch, error)) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	batch, err := run(s)
	if err != nil {
		return err
	}

	var failed bool
	if jsonFlag {
		failed = !batch.AllPassed()
		if err := printJSON(batch); err != nil {
			return err
		}
	} else {
		failed = printBatch(batch)
	}
	if failed {
		return blocked("%d of %d %s tests failed", len(batch.Failed()), len(batch.Results), batch.Tier)
	}
	return nil
}

func runTestReport(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.engine.TestReport(testReportLast)
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(r)
	}

	if dir := s.engine.ResultsDir(); dir != "" {
		fmt.Println(color.New(color.Faint).Sprint("Results in " + dir))
	}
	printSummary("All tiers", r.Summary)
	for _, tier := range []models.TestTier{models.TierSmoke, models.TierIntegration, models.TierRegression} {
		if sum, ok := r.Tiers[tier]; ok {
			printSummary(strings.ToUpper(string(tier[:1]))+string(tier[1:]), sum)
		}
	}
	return nil
}

func printSummary(title string, sum testrunner.Summary) {
	fmt.Printf("\n%s\n", color.New(color.Bold).Sprint(title))
	fmt.Printf("  batches:   %d\n", sum.Batches)
	fmt.Printf("  tests:     %d\n", sum.TotalTests)
	fmt.Printf("  passed:    %s\n", color.GreenString("%d", sum.Passed))
	fmt.Printf("  failed:    %s\n", color.RedString("%d", sum.Failed))
	fmt.Printf("  pass rate: %s\n", sum.PassRate)
	if len(sum.RecentFailures) > 0 {
		fmt.Println("  recent failures:")
		for _, f := range sum.RecentFailures {
			fmt.Printf("    %s %s: %s\n", f.TestID, f.TestName, firstLine(f.ErrorMessage))
		}
	}
}
