// Package tui provides the terminal board for featuregate.
//
// The board lists every feature of the ledger with its status (PASS, READY
// or BLOCKED) and shows the compatibility report of the selected feature.
// It reloads on a timer and whenever a LedgerChangedMsg arrives.
//
// Usage:
//
//	board := tui.NewBoard(store, manager, refresh)
//	program := tui.NewProgram(board)
//	go watcher.Run(ctx, func(path string) {
//	    program.Send(tui.LedgerChangedMsg{Path: path})
//	})
//	_, err := program.Run()
package tui
