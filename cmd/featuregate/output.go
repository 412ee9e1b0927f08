package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printList prints items indented under a heading.
func printList(heading string, items []string, colorAttr color.Attribute) {
	if len(items) == 0 {
		return
	}
	fmt.Println(color.New(colorAttr, color.Bold).Sprint(heading))
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}

// printBatch prints one test batch and returns whether any test failed.
func printBatch(b *models.TestBatch) bool {
	title := strings.ToUpper(string(b.Tier[:1])) + string(b.Tier[1:])
	header := fmt.Sprintf("%s tests", title)
	if len(b.Features) > 0 {
		header += " for " + strings.Join(b.Features, ", ")
	}
	fmt.Println(color.New(color.Bold).Sprint(header))

	if b.Skipped != "" {
		printStatus("-", "skipped: "+b.Skipped, color.FgYellow)
		return false
	}

	failed := b.Failed()
	for _, r := range b.Results {
		line := fmt.Sprintf("%s %s (%dms)", r.TestID, r.TestName, r.DurationMS)
		if r.Passed {
			printStatus("✓", line, color.FgGreen)
			continue
		}
		printStatus("✗", line, color.FgRed)
		if r.ErrorMessage != "" {
			fmt.Printf("    %s\n", firstLine(r.ErrorMessage))
		}
	}

	summary := fmt.Sprintf("%d/%d passed", len(b.Results)-len(failed), len(b.Results))
	if b.File != "" {
		summary += " • " + b.File
	}
	fmt.Println(color.New(color.Faint).Sprint(summary))
	return len(failed) > 0
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
