// Package main implements the postlint CLI and MCP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/postlint/postlint/internal/catalog"
	"github.com/postlint/postlint/internal/config"
	"github.com/postlint/postlint/internal/corpus"
	"github.com/postlint/postlint/internal/frontmatter"
	"github.com/postlint/postlint/internal/logging"
	"github.com/postlint/postlint/internal/pathfilter"
)

var configFile string

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postlint",
		Short: "Content integrity toolkit for Markdown blog posts",
		Long: `postlint reads a directory tree of Markdown posts with YAML front
matter and checks the properties a publishing pipeline depends on:
parseable front matter, required keys, unique permalinks, closed code
fences, and internal links that resolve to real posts.

It also answers questions about the corpus (list, stats, tags, search)
and serves the same read-only operations to MCP clients over stdio.
It never writes inside the content root.`,
		Example: `postlint check --root ./content/posts`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default postlint.yaml in the content root)")
	cmd.PersistentFlags().String("root", ".", "content root to scan")
	cmd.PersistentFlags().String("format", "text", "output format: text or json")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	cmd.AddCommand(
		newCheckCmd(),
		newListCmd(),
		newStatsCmd(),
		newTagsCmd(),
		newSearchCmd(),
		newIndexCmd(),
		newMCPCmd(),
	)

	return cmd
}

// loadConfig resolves settings for the invoked command, applies the logging
// level, and pins the content root to an absolute path so the catalog
// location does not depend on the working directory.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cmd, configFile)
	if err != nil {
		return config.Config{}, err
	}
	logging.SetVerbose(cfg.Verbose)

	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to resolve content root: %w", err)
	}
	cfg.Root = abs

	return cfg, nil
}

// newService wires the corpus reader for a resolved config.
func newService(cfg config.Config) *corpus.Service {
	return corpus.New(cfg.Root, pathfilter.New(cfg.FilterConfig()), frontmatter.New())
}

func loadCorpus(ctx context.Context, cfg config.Config) (*corpus.Service, *corpus.Corpus, error) {
	svc := newService(cfg)
	corp, err := svc.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	logging.Debugf("loaded %d posts from %s", corp.Len(), cfg.Root)
	return svc, corp, nil
}

// openCatalog opens the catalog database for the configured root and brings
// it up to date with the corpus on disk. The catalog is a cache; reads must
// never serve answers the filesystem would contradict.
func openCatalog(ctx context.Context, cfg config.Config) (*catalog.Catalog, error) {
	path := cfg.CatalogPath(cfg.Root)
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}

	_, corp, err := loadCorpus(ctx, cfg)
	if err != nil {
		cat.Close()
		return nil, err
	}
	res, err := cat.Refresh(ctx, corp)
	if err != nil {
		cat.Close()
		return nil, err
	}
	logging.Debugf("catalog %s: %d indexed, %d removed, %d unchanged", path, res.Indexed, res.Removed, res.Unchanged)

	return cat, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
