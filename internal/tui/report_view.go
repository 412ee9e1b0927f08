package tui

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/featuregate/internal/compat"
)

// RenderReport renders a compatibility report for the terminal.
func RenderReport(r *compat.Report) string {
	var b strings.Builder

	v := r.DependencyValidation
	status := StatusReady
	if !v.CanImplement {
		status = StatusBlocked
	}
	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(r.FeatureID), statusStyle(status).Render(status))
	if v.Error != "" {
		b.WriteString(errorStyle.Render(v.Error) + "\n")
	}

	section(&b, "Dependencies", r.Dependencies)
	if len(v.MissingDependencies) > 0 {
		section(&b, "Missing", v.MissingDependencies)
	}
	if len(v.UnknownDependencies) > 0 {
		section(&b, "Unknown", v.UnknownDependencies)
	}
	section(&b, "Dependents", r.Dependents)

	tests := make([]string, 0, len(r.IntegrationTests))
	for _, t := range r.IntegrationTests {
		if t.Name != "" {
			tests = append(tests, fmt.Sprintf("%s (%s)", t.ID, t.Name))
		} else {
			tests = append(tests, t.ID)
		}
	}
	section(&b, "Integration tests", tests)

	if len(r.InterfaceCompatibility.Obligations) > 0 {
		var lines []string
		for _, o := range r.InterfaceCompatibility.Obligations {
			line := o.Contract
			if len(o.RequiredMethods) > 0 {
				line += ": " + strings.Join(o.RequiredMethods, ", ")
			}
			lines = append(lines, line)
		}
		section(&b, "Implements", lines)
	}

	b.WriteString("\n" + sectionStyle.Render("Recommendations") + "\n")
	for _, rec := range r.Recommendations {
		b.WriteString("  " + styleRecommendation(rec) + "\n")
	}
	return b.String()
}

func section(b *strings.Builder, title string, items []string) {
	b.WriteString("\n" + sectionStyle.Render(title) + "\n")
	if len(items) == 0 {
		b.WriteString(subtleStyle.Render("  none") + "\n")
		return
	}
	for _, item := range items {
		b.WriteString("  " + item + "\n")
	}
}

func styleRecommendation(rec string) string {
	switch {
	case strings.HasPrefix(rec, "BLOCKED:"):
		return blockedStyle.Render(rec)
	case strings.HasPrefix(rec, "CAUTION:"):
		return cautionStyle.Render(rec)
	default:
		return rec
	}
}
