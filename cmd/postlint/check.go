package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/postlint/postlint/internal/lint"
	"github.com/postlint/postlint/internal/report"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Lint every post in the corpus",
		Long: `check parses every post and runs the rule set: front-matter syntax and
required keys, permalink uniqueness and format, closed code fences,
internal link and asset resolution.

With path arguments, only diagnostics for those posts are reported.
Corpus-wide rules still see every post, so a duplicate permalink is
found even when only one of its claimants is named.`,
		Example: `postlint check
postlint check posts/2024-01-02-release.md
postlint check --format json --fail-on warning`,
		RunE: runCheck,
	}

	cmd.Flags().String("fail-on", "", "exit nonzero threshold: error, warning, or never")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	_, corp, err := loadCorpus(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	opts, err := cfg.LintOptions()
	if err != nil {
		return err
	}

	diags := lint.NewRunner(opts).Run(cmd.Context(), corp)
	if err := cmd.Context().Err(); err != nil {
		return err
	}
	if len(args) > 0 {
		diags = filterDiagnostics(diags, args)
	}
	summary := lint.Summarize(diags)

	if err := report.New(cfg.Format).Write(os.Stdout, diags, summary); err != nil {
		return err
	}

	if cfg.FailsOn(summary) {
		return fmt.Errorf("%d problems found", summary.Errors+summary.Warnings)
	}
	return nil
}

// filterDiagnostics keeps diagnostics for the named posts only. Paths are
// matched after slash normalization so Windows-style arguments work.
func filterDiagnostics(diags []lint.Diagnostic, paths []string) []lint.Diagnostic {
	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[filepath.ToSlash(p)] = true
	}

	var kept []lint.Diagnostic
	for _, d := range diags {
		if wanted[d.Path] {
			kept = append(kept, d)
		}
	}
	return kept
}
