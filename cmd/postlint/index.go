package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postlint/postlint/internal/catalog"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Refresh the catalog database",
		Long: `index reconciles the catalog database with the posts on disk: new and
changed posts are reindexed, vanished ones removed. Query commands
refresh automatically; index exists to warm the catalog ahead of time
and to report what changed.`,
		RunE: runIndex,
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := cfg.CatalogPath(cfg.Root)
	cat, err := catalog.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer cat.Close()

	_, corp, err := loadCorpus(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	res, err := cat.Refresh(cmd.Context(), corp)
	if err != nil {
		return err
	}

	if cfg.Format == "json" {
		return printJSON(struct {
			Catalog string `json:"catalog"`
			catalog.RefreshResult
		}{path, res})
	}

	fmt.Printf("catalog %s\n", path)
	fmt.Printf("%d indexed, %d removed, %d unchanged\n", res.Indexed, res.Removed, res.Unchanged)
	return nil
}
