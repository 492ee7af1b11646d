package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/postlint/postlint/internal/catalog"
	"github.com/postlint/postlint/internal/permalink"
	"github.com/postlint/postlint/internal/types"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		Long: `list prints the catalog's view of the corpus ordered by date descending.
Filters narrow the listing by front-matter terms or publication year.`,
		Example: `postlint list --tag golang
postlint list --year 2024 --limit 10`,
		RunE: runList,
	}

	cmd.Flags().String("tag", "", "only posts carrying this tag")
	cmd.Flags().String("category", "", "only posts in this category")
	cmd.Flags().Int("year", 0, "only posts published in this year")
	cmd.Flags().Int("limit", 0, "maximum posts to print (0 means all)")
	cmd.Flags().Int("offset", 0, "skip the first N posts")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cat, err := openCatalog(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	tag, _ := cmd.Flags().GetString("tag")
	category, _ := cmd.Flags().GetString("category")
	year, _ := cmd.Flags().GetInt("year")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	rows, err := cat.List(cmd.Context(), catalog.ListOptions{
		Tag:      tag,
		Category: category,
		Year:     year,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}

	if cfg.Format == "json" {
		return printJSON(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			shortDate(row.Date), row.Path, permalink.Join(cfg.BaseURL, row.Permalink), row.Title)
	}
	return w.Flush()
}

// shortDate trims a front-matter date to its day for column display.
func shortDate(date string) string {
	if len(date) > 10 {
		return date[:10]
	}
	if date == "" {
		return "-"
	}
	return date
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Corpus aggregates",
		Long: `stats prints inventory numbers for the corpus: post and word counts,
link and code block totals, term tallies, and posts per year.`,
		RunE: runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cat, err := openCatalog(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	st, err := cat.Stats(cmd.Context())
	if err != nil {
		return err
	}

	if cfg.Format == "json" {
		return printJSON(st)
	}

	languages := make([]types.TermCount, len(st.FenceLanguages))
	for i, l := range st.FenceLanguages {
		languages[i] = types.TermCount{Term: l.Language, Count: l.Count}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "posts\t%d\n", st.Posts)
	fmt.Fprintf(w, "words\t%d\n", st.Words)
	fmt.Fprintf(w, "code blocks\t%d\n", st.CodeBlocks)
	fmt.Fprintf(w, "internal links\t%d\n", st.InternalLinks)
	fmt.Fprintf(w, "external links\t%d\n", st.ExternalLinks)
	fmt.Fprintf(w, "tags\t%s\n", summarizeTerms(st.Tags))
	fmt.Fprintf(w, "categories\t%s\n", summarizeTerms(st.Categories))
	fmt.Fprintf(w, "fence languages\t%s\n", summarizeTerms(languages))
	if err := w.Flush(); err != nil {
		return err
	}

	if len(st.PostsPerYear) > 0 {
		fmt.Println()
		fmt.Println("posts per year")
		for _, y := range st.PostsPerYear {
			fmt.Printf("  %d  %d\n", y.Year, y.Count)
		}
	}
	return nil
}

// summarizeTerms renders the top entries of a tally on one line.
func summarizeTerms(terms []types.TermCount) string {
	if len(terms) == 0 {
		return "none"
	}
	shown := terms
	if len(shown) > 5 {
		shown = shown[:5]
	}
	parts := make([]string, len(shown))
	for i, t := range shown {
		parts[i] = fmt.Sprintf("%s (%d)", t.Term, t.Count)
	}
	line := strings.Join(parts, ", ")
	if rest := len(terms) - len(shown); rest > 0 {
		line += fmt.Sprintf(" and %d more", rest)
	}
	return line
}

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Term tallies across the corpus",
		Long: `tags prints every term of a kind with its post count, most used first.
Kinds follow the front-matter lists: tag, category, keyword. The
language kind tallies fenced-code-block language hints instead.`,
		Example: `postlint tags
postlint tags --kind category`,
		RunE: runTags,
	}

	cmd.Flags().String("kind", "tag", "term kind: tag, category, keyword, or language")

	return cmd
}

func runTags(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	kindFlag, _ := cmd.Flags().GetString("kind")
	kind, err := termKind(kindFlag)
	if err != nil {
		return err
	}

	cat, err := openCatalog(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	terms, err := cat.Terms(cmd.Context(), kind)
	if err != nil {
		return err
	}

	if cfg.Format == "json" {
		return printJSON(terms)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, t := range terms {
		fmt.Fprintf(w, "%d\t%s\n", t.Count, t.Term)
	}
	return w.Flush()
}

// termKind maps a user-facing kind name, singular or plural, onto the
// catalog's term kinds.
func termKind(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tag", "tags":
		return types.TermTag, nil
	case "category", "categories":
		return types.TermCategory, nil
	case "keyword", "keywords":
		return types.TermKeyword, nil
	case "language", "languages":
		return catalog.KindLanguage, nil
	}
	return "", fmt.Errorf("unknown term kind %q", s)
}
