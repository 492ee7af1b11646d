package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/postlint/postlint/internal/catalog"
	"github.com/postlint/postlint/internal/corpus"
	"github.com/postlint/postlint/internal/lint"
	"github.com/postlint/postlint/internal/types"
)

// refreshCatalog reconciles the catalog with the filesystem before a query
// tool reads it, so a long-running session never serves stale rows.
// Unchanged posts are skipped by checksum.
func refreshCatalog(ctx context.Context) (*corpus.Corpus, error) {
	corp, err := corpusService.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := corpusCatalog.Refresh(ctx, corp); err != nil {
		return nil, err
	}
	return corp, nil
}

func handleReadPost(ctx context.Context, req *mcp.CallToolRequest, input ReadPostInput) (*mcp.CallToolResult, ReadPostOutput, error) {
	path := strings.TrimSpace(input.Path)
	post, err := corpusService.ReadPost(path)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, ReadPostOutput{}, err
	}

	lines := strings.Split(post.Body, "\n")
	totalLines := len(lines)

	offset := max(input.Offset, 0)
	if offset >= totalLines {
		return nil, ReadPostOutput{
			Frontmatter: post.FrontMatter.Raw,
			Permalink:   post.Permalink,
			Body:        "",
			TotalLines:  totalLines,
			Truncated:   true,
		}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = totalLines
	}

	endIdx := offset + limit
	truncated := false
	if endIdx >= totalLines {
		endIdx = totalLines
	} else {
		truncated = true
	}

	return nil, ReadPostOutput{
		Frontmatter: post.FrontMatter.Raw,
		Permalink:   post.Permalink,
		Body:        strings.Join(lines[offset:endIdx], "\n"),
		TotalLines:  totalLines,
		Truncated:   truncated,
	}, nil
}

func handleListPosts(ctx context.Context, req *mcp.CallToolRequest, input ListPostsInput) (*mcp.CallToolResult, ListPostsOutput, error) {
	if _, err := refreshCatalog(ctx); err != nil {
		return &mcp.CallToolResult{IsError: true}, ListPostsOutput{}, err
	}

	rows, err := corpusCatalog.List(ctx, catalog.ListOptions{
		Tag:      input.Tag,
		Category: input.Category,
		Year:     input.Year,
		Limit:    input.Limit,
		Offset:   max(input.Offset, 0),
	})
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, ListPostsOutput{}, err
	}

	posts := make([]PostSummary, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, PostSummary{
			Path:      row.Path,
			Title:     row.Title,
			Date:      row.Date,
			Permalink: row.Permalink,
			Words:     row.Words,
		})
	}

	return nil, ListPostsOutput{Posts: posts, Count: len(posts)}, nil
}

func handleSearchPosts(ctx context.Context, req *mcp.CallToolRequest, input SearchPostsInput) (*mcp.CallToolResult, SearchPostsOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return &mcp.CallToolResult{IsError: true}, SearchPostsOutput{}, fmt.Errorf("query cannot be empty")
	}

	contextLines := input.ContextLines
	if contextLines <= 0 {
		contextLines = 2
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 15
	}

	offset := max(input.Offset, 0)

	results, totalPosts, err := searchService.Search(ctx, types.SearchParams{
		Query:           query,
		UseRegex:        input.UseRegex,
		CaseSensitive:   input.CaseSensitive,
		FrontMatterOnly: input.FrontmatterOnly,
		ContextLines:    contextLines,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, SearchPostsOutput{}, err
	}

	items := []SearchResultItem{}
	for _, r := range results {
		var matches []SearchMatch
		for _, m := range r.Matches {
			matches = append(matches, SearchMatch{
				Line:    m.Line,
				Context: m.Context,
				IsTerm:  m.IsTerm,
			})
		}
		items = append(items, SearchResultItem{
			Path:    r.Path,
			Title:   r.Title,
			Matches: matches,
		})
	}

	// Sort: posts matched through their front-matter terms first
	sort.SliceStable(items, func(i, j int) bool {
		hasTermI := false
		for _, m := range items[i].Matches {
			if m.IsTerm {
				hasTermI = true
				break
			}
		}
		hasTermJ := false
		for _, m := range items[j].Matches {
			if m.IsTerm {
				hasTermJ = true
				break
			}
		}
		if hasTermI != hasTermJ {
			return hasTermI
		}
		return items[i].Path < items[j].Path
	})

	hasMore := totalPosts > offset+len(items)

	return nil, SearchPostsOutput{
		Results:    items,
		TotalPosts: totalPosts,
		HasMore:    hasMore,
	}, nil
}

func handleListTerms(ctx context.Context, req *mcp.CallToolRequest, input ListTermsInput) (*mcp.CallToolResult, ListTermsOutput, error) {
	kind := types.TermTag
	if strings.TrimSpace(input.Kind) != "" {
		var err error
		kind, err = termKind(input.Kind)
		if err != nil {
			return &mcp.CallToolResult{IsError: true}, ListTermsOutput{}, err
		}
	}

	if _, err := refreshCatalog(ctx); err != nil {
		return &mcp.CallToolResult{IsError: true}, ListTermsOutput{}, err
	}

	terms, err := corpusCatalog.Terms(ctx, kind)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, ListTermsOutput{}, err
	}
	if terms == nil {
		terms = []types.TermCount{}
	}

	return nil, ListTermsOutput{
		Kind:       kind,
		Terms:      terms,
		TotalTerms: len(terms),
	}, nil
}

func handleCheckPosts(ctx context.Context, req *mcp.CallToolRequest, input CheckPostsInput) (*mcp.CallToolResult, CheckPostsOutput, error) {
	corp, err := corpusService.Load(ctx)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, CheckPostsOutput{}, err
	}

	diags := lint.NewRunner(runnerOptions).Run(ctx, corp)
	if err := ctx.Err(); err != nil {
		return &mcp.CallToolResult{IsError: true}, CheckPostsOutput{}, err
	}
	if len(input.Paths) > 0 {
		diags = filterDiagnostics(diags, input.Paths)
	}
	if diags == nil {
		diags = []lint.Diagnostic{}
	}

	summary := lint.Summarize(diags)

	return nil, CheckPostsOutput{
		Diagnostics: diags,
		Errors:      summary.Errors,
		Warnings:    summary.Warnings,
	}, nil
}

func handleCorpusStats(ctx context.Context, req *mcp.CallToolRequest, input CorpusStatsInput) (*mcp.CallToolResult, CorpusStatsOutput, error) {
	if _, err := refreshCatalog(ctx); err != nil {
		return &mcp.CallToolResult{IsError: true}, CorpusStatsOutput{}, err
	}

	stats, err := corpusCatalog.Stats(ctx)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, CorpusStatsOutput{}, err
	}

	return nil, stats, nil
}

func handleRelatedPosts(ctx context.Context, req *mcp.CallToolRequest, input RelatedPostsInput) (*mcp.CallToolResult, RelatedPostsOutput, error) {
	path := strings.TrimSpace(input.Path)

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	corp, err := refreshCatalog(ctx)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, RelatedPostsOutput{}, err
	}
	if _, ok := corp.Post(path); !ok {
		return &mcp.CallToolResult{IsError: true}, RelatedPostsOutput{},
			fmt.Errorf("post not found: %s", path)
	}

	related, err := corpusCatalog.Related(ctx, path, limit)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, RelatedPostsOutput{}, err
	}
	if related == nil {
		related = []catalog.RelatedPost{}
	}

	return nil, RelatedPostsOutput{Path: path, Related: related}, nil
}
