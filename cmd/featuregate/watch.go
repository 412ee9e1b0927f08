package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/featuregate/internal/ledger"
	"github.com/ShayCichocki/featuregate/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-validate the ledgers whenever they change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the interactive feature board",
	Long: `Open the interactive feature board: every feature with its status and
the compatibility report of the selected one. The board reloads when the
ledgers change on disk.`,
	Args: cobra.NoArgs,
	RunE: runBoard,
}

// newWatcher watches the session's ledger files.
func newWatcher(s *session) (*ledger.Watcher, error) {
	store, ok := s.engine.Store().(*ledger.FileStore)
	if !ok {
		return nil, errors.New("ledger is not file-backed")
	}
	w, err := ledger.NewWatcher(store, s.logger.Named("watch"))
	if err != nil {
		return nil, err
	}
	if s.settings.Watch.Debounce > 0 {
		w.SetDebounce(s.settings.Watch.Debounce)
	}
	return w, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	w, err := newWatcher(s)
	if err != nil {
		return err
	}
	defer w.Close()

	check := func(path string) {
		stamp := color.New(color.Faint).Sprint(time.Now().Format("15:04:05"))
		progress, err := s.engine.Manager().Progress()
		if err != nil {
			fmt.Printf("%s %s\n", stamp, color.RedString(err.Error()))
			return
		}
		problems, err := s.engine.Validate()
		if err != nil {
			fmt.Printf("%s %s\n", stamp, color.RedString(err.Error()))
			return
		}
		line := fmt.Sprintf("%s %d/%d passing • %d ready • %d blocked", stamp,
			progress.Passing, progress.Total, progress.Implementable, progress.Blocked)
		if path != "" {
			line += color.New(color.Faint).Sprintf("  (%s)", path)
		}
		fmt.Println(line)
		for _, p := range problems {
			printStatus("✗", fmt.Sprintf("[%s] %s", p.Kind, p.Message), color.FgRed)
		}
	}

	fmt.Println("Watching ledgers. Press Ctrl+C to stop.")
	check("")
	if err := w.Run(cmd.Context(), check); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runBoard(cmd *cobra.Command, args []string) error {
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()

	w, err := newWatcher(s)
	if err != nil {
		return err
	}
	defer w.Close()

	board := tui.NewBoard(s.engine.Store(), s.engine.Manager(), s.settings.TUI.RefreshRate)
	program := tui.NewProgram(board)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go w.Run(ctx, func(path string) {
		program.Send(tui.LedgerChangedMsg{Path: path})
	})

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run board: %w", err)
	}
	return nil
}
