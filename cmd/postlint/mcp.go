package main

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/postlint/postlint/internal/catalog"
	"github.com/postlint/postlint/internal/corpus"
	"github.com/postlint/postlint/internal/lint"
	"github.com/postlint/postlint/internal/search"
)

var (
	corpusService *corpus.Service
	searchService *search.Service
	corpusCatalog *catalog.Catalog
	runnerOptions lint.Options
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the read-only MCP toolset over stdio",
		Long: `mcp runs a Model Context Protocol server exposing the corpus to
MCP-compatible AI harnesses: reading posts, listing and searching,
term tallies, lint results, stats, and related-post lookups. The
toolset is read-only; nothing can modify the corpus through it.`,
		Example: `postlint mcp --root ./content/posts`,
		RunE:    runServer,
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	corpusService = newService(cfg)
	searchService = search.New(corpusService)

	runnerOptions, err = cfg.LintOptions()
	if err != nil {
		return err
	}

	corpusCatalog, err = catalog.Open(cfg.CatalogPath(cfg.Root))
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer corpusCatalog.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "postlint",
		Version: version,
	}, nil)

	registerTools(server)

	if err := server.Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("error running server: %w", err)
	}

	return nil
}
