// Package corpus provides read access to the post collection.
package corpus

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/postlint/postlint/internal/frontmatter"
	"github.com/postlint/postlint/internal/pathfilter"
	"github.com/postlint/postlint/internal/permalink"
	"github.com/postlint/postlint/internal/types"
)

// Service reads posts from the corpus root. It never writes inside it.
type Service struct {
	root   string
	filter *pathfilter.Filter
	fm     *frontmatter.Handler
}

// New creates a corpus Service rooted at root.
func New(root string, filter *pathfilter.Filter, fm *frontmatter.Handler) *Service {
	absPath, _ := filepath.Abs(root)
	if filter == nil {
		filter = pathfilter.New(nil)
	}
	if fm == nil {
		fm = frontmatter.New()
	}
	return &Service{
		root:   absPath,
		filter: filter,
		fm:     fm,
	}
}

// Root returns the absolute corpus root.
func (s *Service) Root() string {
	return s.root
}

// ResolvePath resolves a corpus-relative path and validates it.
func (s *Service) ResolvePath(relativePath string) (string, error) {
	relativePath = strings.TrimSpace(relativePath)
	relativePath = strings.TrimPrefix(relativePath, "/")

	fullPath := filepath.Join(s.root, relativePath)
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	// Security check: ensure the path stays inside the corpus.
	relPath, err := filepath.Rel(s.root, absPath)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(relPath, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", relativePath)
	}

	return absPath, nil
}

// ReadPost reads and parses a single post. Malformed front matter does not
// fail the read: the returned Post carries the raw content and the flags lint
// needs to report the problem precisely.
func (s *Service) ReadPost(path string) (types.Post, error) {
	fullPath, err := s.ResolvePath(path)
	if err != nil {
		return types.Post{}, err
	}

	if !s.filter.IsAllowed(path) {
		return types.Post{}, fmt.Errorf("not a post path: %s", path)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.Post{}, fmt.Errorf("post not found: %s - %w", path, err)
		}
		return types.Post{}, fmt.Errorf("failed to stat post: %s - %w", path, err)
	}
	if info.IsDir() {
		return types.Post{}, fmt.Errorf("cannot read directory as post: %s", path)
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return types.Post{}, fmt.Errorf("permission denied: %s", path)
		}
		return types.Post{}, fmt.Errorf("failed to read post: %s - %w", path, err)
	}

	return s.parse(path, content, info), nil
}

// parse builds a Post from raw file content.
func (s *Service) parse(path string, content []byte, info fs.FileInfo) types.Post {
	raw := string(content)
	sum := sha256.Sum256(content)

	post := types.Post{
		Path:     strings.ReplaceAll(path, "\\", "/"),
		Raw:      raw,
		Size:     info.Size(),
		Modified: info.ModTime(),
		Checksum: sum[:],
	}

	blk := frontmatter.Split(raw)
	post.HasFrontMatter = blk.Found
	post.BodyLine = blk.BodyLine

	switch {
	case blk.Found && blk.Terminated:
		fm, body, err := s.fm.Decode(raw)
		if err != nil {
			// The syntax lint rule re-decodes for the line-accurate message.
			post.Body = blk.Body
		} else {
			post.FrontMatter = fm
			post.Body = body
		}
	case blk.Found:
		// Opening delimiter without a closer: everything is front matter,
		// nothing is body.
	default:
		post.Body = raw
	}

	if pl, err := permalink.Resolve(post.FrontMatter.URL, post.Path); err == nil {
		post.Permalink = pl
	}

	return post
}

// Files lists every post path under the root, sorted for stable ordering.
func (s *Service) Files() ([]string, error) {
	var files []string

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if s.filter.SkipDir(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.filter.IsAllowed(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// Load reads every post into a Corpus snapshot. Posts are parsed in parallel
// but the result keeps path order. Files vanishing mid-scan are skipped.
func (s *Service) Load(ctx context.Context) (*Corpus, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	posts := make([]types.Post, len(files))
	errs := make([]error, len(files))

	numWorkers := max(min(runtime.NumCPU(), len(files)), 1)
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
				post, err := s.ReadPost(file.path)
				if err != nil {
					if !errors.Is(err, fs.ErrNotExist) {
						errs[file.idx] = err
					}
					continue
				}
				posts[file.idx] = post
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
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	loaded := make([]types.Post, 0, len(posts))
	for _, post := range posts {
		if post.Path != "" {
			loaded = append(loaded, post)
		}
	}
	return NewCorpus(loaded), nil
}

// Exists reports whether a corpus-relative path exists.
func (s *Service) Exists(path string) bool {
	fullPath, err := s.ResolvePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// Corpus is a point-in-time snapshot of every post, with the derived indexes
// the corpus-wide checks need.
type Corpus struct {
	// Posts in path order.
	Posts []types.Post

	byPath     map[string]int
	permalinks map[string][]int
}

// NewCorpus indexes a post list. Posts are expected in path order.
func NewCorpus(posts []types.Post) *Corpus {
	c := &Corpus{
		Posts:      posts,
		byPath:     make(map[string]int, len(posts)),
		permalinks: make(map[string][]int),
	}
	for i, p := range posts {
		c.byPath[p.Path] = i
		if p.Permalink != "" {
			key := permalink.Normalize(p.Permalink)
			c.permalinks[key] = append(c.permalinks[key], i)
		}
	}
	return c
}

// Len returns the number of posts.
func (c *Corpus) Len() int {
	return len(c.Posts)
}

// Post returns the post at a corpus-relative path.
func (c *Corpus) Post(path string) (types.Post, bool) {
	i, ok := c.byPath[path]
	if !ok {
		return types.Post{}, false
	}
	return c.Posts[i], true
}

// ResolveLink reports whether a root-relative target matches a post
// permalink, comparing normalized routes.
func (c *Corpus) ResolveLink(target string) bool {
	_, ok := c.permalinks[permalink.Normalize(target)]
	return ok
}

// Permalinks returns every normalized permalink with its claimant paths, for
// the uniqueness check.
func (c *Corpus) Permalinks() map[string][]string {
	out := make(map[string][]string, len(c.permalinks))
	for key, idxs := range c.permalinks {
		paths := make([]string, 0, len(idxs))
		for _, i := range idxs {
			paths = append(paths, c.Posts[i].Path)
		}
		out[key] = paths
	}
	return out
}

// TermCounts tallies the terms of a kind across the corpus, sorted by count
// descending then term ascending.
func (c *Corpus) TermCounts(kind string) []types.TermCount {
	tally := map[string]int{}
	for _, p := range c.Posts {
		for _, term := range p.Terms(kind) {
			if term = strings.TrimSpace(term); term != "" {
				tally[term]++
			}
		}
	}

	counts := make([]types.TermCount, 0, len(tally))
	for term, n := range tally {
		counts = append(counts, types.TermCount{Term: term, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Term < counts[j].Term
	})
	return counts
}
