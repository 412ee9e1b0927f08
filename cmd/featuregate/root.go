package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitFailure = 1
	exitBlocked = 2
)

var (
	projectFlag  string
	configFlag   string
	logLevelFlag string
	jsonFlag     bool
)

// exitError ends the process with code after printing msg, if any.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// blocked reports a blocked or failed decision.
func blocked(format string, args ...any) error {
	return &exitError{code: exitBlocked, msg: fmt.Sprintf(format, args...)}
}

var rootCmd = &cobra.Command{
	Use:   "featuregate",
	Short: "Feature compatibility and test orchestration",
	Long: `featuregate guards incremental feature work against a feature ledger.

It answers whether a feature may be started, which features a change can
break, and whether a finished feature may be marked passing:

- Compatibility reports from the dependency graph and interface contracts
- Smoke, integration and regression test tiers with a persistent result log
- Pre- and post-implementation gates with a decision journal

Commands exit with 2 when a gate blocks or tests fail and with 1 on errors.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.msg != "" {
			fmt.Fprintln(os.Stderr, exit.msg)
		}
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitFailure)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "C", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Settings file (default: .featuregate.yaml and user config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print machine-readable JSON")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(canImplementCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(contractCmd)
	rootCmd.AddCommand(smokeCmd)
	rootCmd.AddCommand(integrationCmd)
	rootCmd.AddCommand(regressionCmd)
	rootCmd.AddCommand(precheckCmd)
	rootCmd.AddCommand(postcheckCmd)
	rootCmd.AddCommand(testReportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(scaffoldCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(versionCmd)
}
