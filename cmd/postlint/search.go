package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/postlint/postlint/internal/search"
	"github.com/postlint/postlint/internal/types"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across posts",
		Long: `search scans every post on disk for the query and prints matching lines
with context. Multiple arguments are joined into one query.`,
		Example: `postlint search kubernetes
postlint search --regex 'CVE-[0-9-]+'
postlint search --frontmatter-only draft`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().Bool("regex", false, "treat the query as a regular expression")
	cmd.Flags().Bool("case-sensitive", false, "match case exactly")
	cmd.Flags().Bool("frontmatter-only", false, "search front-matter blocks only")
	cmd.Flags().Int("context", 2, "context lines around each match")
	cmd.Flags().Int("limit", 15, "maximum matching posts")
	cmd.Flags().Int("offset", 0, "skip the first N matching posts")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	useRegex, _ := cmd.Flags().GetBool("regex")
	caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")
	frontMatterOnly, _ := cmd.Flags().GetBool("frontmatter-only")
	contextLines, _ := cmd.Flags().GetInt("context")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	results, total, err := search.New(newService(cfg)).Search(cmd.Context(), types.SearchParams{
		Query:           strings.Join(args, " "),
		UseRegex:        useRegex,
		CaseSensitive:   caseSensitive,
		FrontMatterOnly: frontMatterOnly,
		ContextLines:    contextLines,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return err
	}

	if cfg.Format == "json" {
		return printJSON(struct {
			Results    []types.SearchResult `json:"results"`
			TotalPosts int                  `json:"totalPosts"`
		}{results, total})
	}

	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}

	for i, r := range results {
		if i > 0 {
			fmt.Println()
		}
		if r.Title != "" {
			fmt.Printf("%s (%s)\n", r.Path, r.Title)
		} else {
			fmt.Println(r.Path)
		}
		for _, m := range r.Matches {
			fmt.Printf("  line %d:\n", m.Line)
			for _, line := range strings.Split(m.Context, "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
	}

	if total > offset+len(results) {
		fmt.Printf("\n%d matching posts, showing %d\n", total, len(results))
	}
	return nil
}
