// Package report renders lint results for humans and for CI.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/postlint/postlint/internal/lint"
)

// Writer renders diagnostics and a closing summary.
type Writer interface {
	Write(w io.Writer, diags []lint.Diagnostic, summary lint.Summary) error
}

// New returns the Writer for a format name: "json" for machine output,
// styled text for anything else.
func New(format string) Writer {
	if format == "json" {
		return jsonWriter{}
	}
	return textWriter{}
}

var (
	pathStyle    = lipgloss.NewStyle().Bold(true)
	lineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cleanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// textWriter prints diagnostics grouped by file, one line per finding.
type textWriter struct{}

func (textWriter) Write(w io.Writer, diags []lint.Diagnostic, summary lint.Summary) error {
	lastPath := ""
	for _, d := range diags {
		if d.Path != lastPath {
			if lastPath != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, pathStyle.Render(d.Path))
			lastPath = d.Path
		}

		severity := warningStyle.Render(string(d.Severity))
		if d.Severity == lint.SeverityError {
			severity = errorStyle.Render(string(d.Severity))
		}
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			lineStyle.Render(fmt.Sprintf("%4d", d.Line)),
			severity,
			d.Message,
			ruleStyle.Render(d.Rule),
		)
	}

	if len(diags) > 0 {
		fmt.Fprintln(w)
	}
	if summary.Errors == 0 && summary.Warnings == 0 {
		fmt.Fprintln(w, cleanStyle.Render("no problems found"))
		return nil
	}
	fmt.Fprintf(w, "%s, %s\n", plural(summary.Errors, "error"), plural(summary.Warnings, "warning"))
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// jsonWriter emits one indented JSON document for CI consumers.
type jsonWriter struct{}

func (jsonWriter) Write(w io.Writer, diags []lint.Diagnostic, summary lint.Summary) error {
	if diags == nil {
		diags = []lint.Diagnostic{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Diagnostics []lint.Diagnostic `json:"diagnostics"`
		Summary     lint.Summary      `json:"summary"`
	}{diags, summary})
}
