// Package search provides full-text search over the post corpus.
package search

import (
	"context"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/postlint/postlint/internal/corpus"
	"github.com/postlint/postlint/internal/types"
)

// Service searches post files for a query.
type Service struct {
	corpus *corpus.Service
}

// New creates a search service reading through the given corpus service.
// Every search scans the live filesystem; the catalog is never consulted.
func New(c *corpus.Service) *Service {
	return &Service{corpus: c}
}

// Search scans every post for the query and returns matching posts with
// line-level context, ordered by path. The second return value is the total
// number of matching posts before offset and limit are applied.
func (s *Service) Search(ctx context.Context, params types.SearchParams) ([]types.SearchResult, int, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, 0, &SearchError{Message: "search query cannot be empty"}
	}

	contextLines := params.ContextLines
	if contextLines <= 0 {
		contextLines = 2
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 15
	}
	offset := max(params.Offset, 0)

	pattern, err := compilePattern(params)
	if err != nil {
		return nil, 0, err
	}

	files, err := s.corpus.Files()
	if err != nil {
		return nil, 0, err
	}

	// Process files in parallel, keyed by index for stable ordering.
	numWorkers := max(min(runtime.NumCPU(), len(files)), 1)

	type indexedResult struct {
		idx    int
		result *types.SearchResult
	}

	resultsCh := make(chan indexedResult, len(files))
	fileCh := make(chan struct {
		idx  int
		path string
	}, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Go(func() {
			for file := range fileCh {
				if ctx.Err() != nil {
					continue
				}
				post, err := s.corpus.ReadPost(file.path)
				if err != nil {
					continue
				}
				if result := matchPost(post, pattern, params.FrontMatterOnly, contextLines); result != nil {
					resultsCh <- indexedResult{idx: file.idx, result: result}
				}
			}
		})
	}

	for i, path := range files {
		fileCh <- struct {
			idx  int
			path string
		}{i, path}
	}
	close(fileCh)

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var indexed []indexedResult
	for r := range resultsCh {
		indexed = append(indexed, r)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	sort.Slice(indexed, func(i, j int) bool {
		return indexed[i].idx < indexed[j].idx
	})

	allResults := make([]types.SearchResult, 0, len(indexed))
	for _, ir := range indexed {
		allResults = append(allResults, *ir.result)
	}

	total := len(allResults)
	if offset >= len(allResults) {
		return []types.SearchResult{}, total, nil
	}
	end := min(offset+limit, len(allResults))
	return allResults[offset:end], total, nil
}

func compilePattern(params types.SearchParams) (*regexp.Regexp, error) {
	query := params.Query
	if !params.UseRegex {
		query = regexp.QuoteMeta(query)
	}
	if !params.CaseSensitive {
		query = "(?i)" + query
	}
	pattern, err := regexp.Compile(query)
	if err != nil {
		return nil, &SearchError{Message: "invalid regex pattern: " + err.Error()}
	}
	return pattern, nil
}

// matchPost scans one post and returns its matches, or nil when nothing
// matched. Line numbers are 1-based within the file.
func matchPost(post types.Post, pattern *regexp.Regexp, frontMatterOnly bool, contextLines int) *types.SearchResult {
	lines := strings.Split(post.Raw, "\n")
	fmStart, fmEnd := frontMatterRange(post, len(lines))

	start, end := 0, len(lines)
	if frontMatterOnly {
		if fmEnd <= fmStart {
			return nil
		}
		start, end = fmStart, fmEnd
	}

	// A hit inside the front matter is flagged as a term match when the
	// query also matches one of the post's declared terms, so clients can
	// rank tag hits higher.
	termHit := slices.ContainsFunc(postTerms(post), pattern.MatchString)

	var matches []types.SearchMatch
	for lineNum := start; lineNum < end; lineNum++ {
		if !pattern.MatchString(lines[lineNum]) {
			continue
		}

		ctxStart := max(lineNum-contextLines, 0)
		ctxEnd := min(lineNum+contextLines+1, len(lines))

		matches = append(matches, types.SearchMatch{
			Line:    lineNum + 1,
			Context: strings.Join(lines[ctxStart:ctxEnd], "\n"),
			IsTerm:  termHit && lineNum >= fmStart && lineNum < fmEnd,
		})
	}
	if len(matches) == 0 {
		return nil
	}

	title := post.FrontMatter.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(post.Path), filepath.Ext(post.Path))
	}
	return &types.SearchResult{
		Path:    post.Path,
		Title:   title,
		Matches: matches,
	}
}

// frontMatterRange returns the 0-based half-open line range of the
// front-matter block content, or an empty range when the block is absent or
// unterminated.
func frontMatterRange(post types.Post, lineCount int) (int, int) {
	if !post.HasFrontMatter || post.BodyLine < 3 {
		return 0, 0
	}
	return 1, min(post.BodyLine-2, lineCount)
}

// postTerms flattens every front-matter term of the post.
func postTerms(post types.Post) []string {
	var terms []string
	for _, kind := range []string{types.TermTag, types.TermCategory, types.TermKeyword} {
		for _, term := range post.Terms(kind) {
			term = strings.TrimSpace(term)
			if term != "" {
				terms = append(terms, term)
			}
		}
	}
	return terms
}

// SearchError represents a search error.
type SearchError struct {
	Message string
}

func (e *SearchError) Error() string {
	return e.Message
}
