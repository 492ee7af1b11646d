package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/postlint/postlint/internal/catalog"
	"github.com/postlint/postlint/internal/lint"
	"github.com/postlint/postlint/internal/types"
)

type (
	// ReadPostInput contains parameters for reading a post.
	ReadPostInput struct {
		Path   string `json:"path" jsonschema:"Path to the post relative to the content root"`
		Offset int    `json:"offset,omitempty" jsonschema:"Body line offset to start reading from (default: 0)"`
		Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of body lines to return (default: all)"`
	}

	// ReadPostOutput contains the result of reading a post.
	ReadPostOutput struct {
		Frontmatter map[string]any `json:"fm,omitempty"`
		Body        string         `json:"body"`
		Permalink   string         `json:"permalink"`
		TotalLines  int            `json:"totalLines"`
		Truncated   bool           `json:"truncated,omitempty"`
	}

	// ListPostsInput contains filters for listing posts.
	ListPostsInput struct {
		Tag      string `json:"tag,omitempty" jsonschema:"Only posts carrying this tag"`
		Category string `json:"category,omitempty" jsonschema:"Only posts in this category"`
		Year     int    `json:"year,omitempty" jsonschema:"Only posts published in this year"`
		Limit    int    `json:"limit,omitempty" jsonschema:"Maximum posts to return (default: all)"`
		Offset   int    `json:"offset,omitempty" jsonschema:"Skip first N posts for pagination (default: 0)"`
	}

	// PostSummary is one row in a post listing.
	PostSummary struct {
		Path      string `json:"path"`
		Title     string `json:"title,omitempty"`
		Date      string `json:"date,omitempty"`
		Permalink string `json:"permalink"`
		Words     int    `json:"words"`
	}

	// ListPostsOutput contains the posts matching the filters, newest first.
	ListPostsOutput struct {
		Posts []PostSummary `json:"posts"`
		Count int           `json:"count"`
	}

	// SearchPostsInput contains parameters for searching posts.
	SearchPostsInput struct {
		Query           string `json:"query" jsonschema:"Search query (plain text or regex if useRegex=true)"`
		UseRegex        bool   `json:"useRegex,omitempty" jsonschema:"Treat query as regex pattern (default: false)"`
		CaseSensitive   bool   `json:"caseSensitive,omitempty" jsonschema:"Case sensitive search (default: false)"`
		FrontmatterOnly bool   `json:"frontmatterOnly,omitempty" jsonschema:"Search front-matter blocks only (default: false)"`
		ContextLines    int    `json:"contextLines,omitempty" jsonschema:"Lines of context before/after match (default: 2)"`
		Limit           int    `json:"limit,omitempty" jsonschema:"Maximum results (default: 15)"`
		Offset          int    `json:"offset,omitempty" jsonschema:"Skip first N results for pagination (default: 0)"`
	}

	// SearchMatch represents a single match within a post.
	SearchMatch struct {
		Line    int    `json:"line"`
		Context string `json:"context"`
		IsTerm  bool   `json:"isTerm,omitempty"`
	}

	// SearchResultItem represents search results for a single post.
	SearchResultItem struct {
		Path    string        `json:"path"`
		Title   string        `json:"title,omitempty"`
		Matches []SearchMatch `json:"matches"`
	}

	// SearchPostsOutput contains search results.
	SearchPostsOutput struct {
		Results    []SearchResultItem `json:"results"`
		TotalPosts int                `json:"totalPosts"`
		HasMore    bool               `json:"hasMore,omitempty"`
	}

	// ListTermsInput contains parameters for listing terms.
	ListTermsInput struct {
		Kind string `json:"kind,omitempty" jsonschema:"Term kind: tag (default), category, keyword, or language"`
	}

	// ListTermsOutput contains term tallies, most used first.
	ListTermsOutput struct {
		Kind       string            `json:"kind"`
		Terms      []types.TermCount `json:"terms"`
		TotalTerms int               `json:"totalTerms"`
	}

	// CheckPostsInput contains parameters for linting the corpus.
	CheckPostsInput struct {
		Paths []string `json:"paths,omitempty" jsonschema:"Report findings for these posts only (default: all posts)"`
	}

	// CheckPostsOutput contains lint findings and their tallies.
	CheckPostsOutput struct {
		Diagnostics []lint.Diagnostic `json:"diagnostics"`
		Errors      int               `json:"errors"`
		Warnings    int               `json:"warnings"`
	}

	// CorpusStatsInput contains parameters for corpus statistics.
	CorpusStatsInput struct{}

	// CorpusStatsOutput aggregates inventory numbers across the corpus.
	CorpusStatsOutput = types.CorpusStats

	// RelatedPostsInput contains parameters for finding related posts.
	RelatedPostsInput struct {
		Path  string `json:"path" jsonschema:"Path to the post relative to the content root"`
		Limit int    `json:"limit,omitempty" jsonschema:"Maximum related posts to return (default: 10)"`
	}

	// RelatedPostsOutput contains posts related by shared terms or links.
	RelatedPostsOutput struct {
		Path    string                `json:"path"`
		Related []catalog.RelatedPost `json:"related"`
	}
)

func registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_post",
		Description: "Read a post from the corpus. Returns front matter, body, and the resolved permalink. Supports pagination with offset/limit for long posts.",
	}, handleReadPost)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_posts",
		Description: "List posts newest first. Filter by tag, category, or publication year; paginate with limit/offset.",
	}, handleListPosts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_posts",
		Description: "Full-text search across all posts. Supports regex, case-insensitive search, and a front-matter-only scope. Results sorted by term matches first, then path. Returns matching lines with context.",
	}, handleSearchPosts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_terms",
		Description: "List every term of a kind with its post count: tags, categories, keywords, or fenced-code-block languages.",
	}, handleListTerms)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_posts",
		Description: "Lint the corpus: front-matter syntax and required keys, permalink uniqueness, closed code fences, internal link and asset resolution. Returns findings with path, line, rule, and severity.",
	}, handleCheckPosts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "corpus_stats",
		Description: "Aggregate corpus statistics: post and word counts, link and code block totals, term tallies, posts per year.",
	}, handleCorpusStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "related_posts",
		Description: "Find posts related to a given post by shared tags, categories, or keywords, or by internal links in either direction.",
	}, handleRelatedPosts)
}
