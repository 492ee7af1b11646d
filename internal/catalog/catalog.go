// Package catalog maintains a SQLite inventory of the corpus so the browsing
// commands and query tools do not rescan every file on each call. The
// database is strictly a cache of the live corpus: Refresh reconciles it
// against a scan, and a schema change drops the old tables instead of
// migrating them.
package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/postlint/postlint/internal/corpus"
	"github.com/postlint/postlint/internal/markdown"
	"github.com/postlint/postlint/internal/permalink"
	"github.com/postlint/postlint/internal/types"
)

// schemaVersion is bumped whenever the table layout changes. An older
// database is rebuilt from scratch on open.
const schemaVersion = 1

// KindLanguage tallies fenced-code-block language hints. It shares the
// post_terms table with the front-matter term kinds so every tally goes
// through one query path.
const KindLanguage = "language"

// PostModel maps the posts table.
type PostModel struct {
	bun.BaseModel `bun:"table:posts"`

	Path        string    `bun:"path,pk" json:"path"`
	Permalink   string    `bun:"permalink" json:"permalink"`
	Title       string    `bun:"title" json:"title"`
	Description string    `bun:"description" json:"description,omitempty"`
	Layout      string    `bun:"layout" json:"layout,omitempty"`
	Date        string    `bun:"date" json:"date,omitempty"`
	Lastmod     string    `bun:"lastmod" json:"lastmod,omitempty"`
	Words       int       `bun:"words" json:"words"`
	Fences      int       `bun:"fences" json:"fences"`
	Size        int64     `bun:"size" json:"size"`
	Modified    time.Time `bun:"modified" json:"modified"`
	Checksum    string    `bun:"checksum" json:"-"`
}

// TermModel maps the post_terms table.
type TermModel struct {
	bun.BaseModel `bun:"table:post_terms"`

	Path string `bun:"path"`
	Kind string `bun:"kind"`
	Term string `bun:"term"`
}

// LinkModel maps the post_links table.
type LinkModel struct {
	bun.BaseModel `bun:"table:post_links"`

	Path     string `bun:"path"`
	Target   string `bun:"target"`
	Internal bool   `bun:"internal"`
	Line     int    `bun:"line"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS posts (
	path TEXT PRIMARY KEY,
	permalink TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	layout TEXT NOT NULL,
	date TEXT NOT NULL,
	lastmod TEXT NOT NULL,
	words INTEGER NOT NULL,
	fences INTEGER NOT NULL,
	size INTEGER NOT NULL,
	modified TIMESTAMP,
	checksum TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS post_terms (
	path TEXT NOT NULL,
	kind TEXT NOT NULL,
	term TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_post_terms_kind_term ON post_terms (kind, term);
CREATE INDEX IF NOT EXISTS idx_post_terms_path ON post_terms (path);
CREATE TABLE IF NOT EXISTS post_links (
	path TEXT NOT NULL,
	target TEXT NOT NULL,
	internal INTEGER NOT NULL,
	line INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_post_links_target ON post_links (target);
CREATE INDEX IF NOT EXISTS idx_post_links_path ON post_links (path);
`

// Catalog is an open inventory database.
type Catalog struct {
	db *bun.DB
}

// DefaultPath returns the per-user location for a corpus's catalog database.
// The file name carries a hash of the corpus root so distinct corpora never
// share state, and the database stays outside the corpus itself.
func DefaultPath(root string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	sum := sha256.Sum256([]byte(root))
	return filepath.Join(base, "postlint", hex.EncodeToString(sum[:8])+".db")
}

// Open opens or creates the catalog database at path and ensures its schema
// is current. Pass ":memory:" for an ephemeral catalog.
func Open(path string) (*Catalog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// WAL lets queries read while a refresh writes, and the busy timeout
	// makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := sqlDB.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to configure catalog: %w", err)
	}
	if path == ":memory:" {
		// An in-memory SQLite database exists per connection; keep a single
		// one so the schema stays visible across calls.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(4)
	}

	c := &Catalog{db: bun.NewDB(sqlDB, sqlitedialect.New())}
	if err := c.ensureSchema(); err != nil {
		_ = c.db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) ensureSchema() error {
	if _, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS catalog_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}

	var stored string
	err := c.db.QueryRow(`SELECT value FROM catalog_info WHERE key = 'schema_version'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		// Fresh database.
	case err != nil:
		return fmt.Errorf("failed to read catalog version: %w", err)
	case stored == strconv.Itoa(schemaVersion):
		return nil
	default:
		// The catalog is only a cache. Drop the old layout and start over.
		if _, err := c.db.Exec(`DROP TABLE IF EXISTS posts; DROP TABLE IF EXISTS post_terms; DROP TABLE IF EXISTS post_links;`); err != nil {
			return fmt.Errorf("failed to reset catalog: %w", err)
		}
	}

	if _, err := c.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}
	if _, err := c.db.Exec(`INSERT INTO catalog_info (key, value) VALUES ('schema_version', ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`, strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("failed to record catalog version: %w", err)
	}
	return nil
}

// RefreshResult summarizes what a Refresh changed.
type RefreshResult struct {
	Indexed   int `json:"indexed"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Refresh reconciles the catalog against a loaded corpus inside one
// transaction. Posts whose checksum is unchanged are skipped, changed or new
// posts are reindexed, and rows for vanished paths are deleted. Refreshing
// into an empty database is a full build.
func (c *Catalog) Refresh(ctx context.Context, corp *corpus.Corpus) (RefreshResult, error) {
	var result RefreshResult

	var known []PostModel
	if err := c.db.NewSelect().Model(&known).Column("path", "checksum").Scan(ctx); err != nil {
		return result, fmt.Errorf("failed to read catalog state: %w", err)
	}
	existing := make(map[string]string, len(known))
	for _, row := range known {
		existing[row.Path] = row.Checksum
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin catalog refresh: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seen := make(map[string]bool, len(corp.Posts))
	for _, post := range corp.Posts {
		seen[post.Path] = true
		sum := hex.EncodeToString(post.Checksum)
		if existing[post.Path] == sum {
			result.Unchanged++
			continue
		}
		if err := indexPost(ctx, tx, post, sum); err != nil {
			return result, err
		}
		result.Indexed++
	}

	var vanished []string
	for path := range existing {
		if !seen[path] {
			vanished = append(vanished, path)
		}
	}
	sort.Strings(vanished)
	for _, path := range vanished {
		if err := deletePost(ctx, tx, path); err != nil {
			return result, err
		}
		result.Removed++
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit catalog refresh: %w", err)
	}
	return result, nil
}

func indexPost(ctx context.Context, tx bun.Tx, post types.Post, sum string) error {
	if err := deletePost(ctx, tx, post.Path); err != nil {
		return err
	}

	doc := markdown.Scan([]byte(post.Body))
	fences := markdown.Fences([]byte(post.Body))

	row := &PostModel{
		Path:        post.Path,
		Permalink:   post.Permalink,
		Title:       post.FrontMatter.Title,
		Description: post.FrontMatter.Description,
		Layout:      post.FrontMatter.Layout,
		Date:        post.FrontMatter.Date,
		Lastmod:     post.FrontMatter.Lastmod,
		Words:       doc.Words,
		Fences:      len(fences),
		Size:        post.Size,
		Modified:    post.Modified,
		Checksum:    sum,
	}
	if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to index post %s: %w", post.Path, err)
	}

	var terms []TermModel
	for _, kind := range []string{types.TermTag, types.TermCategory, types.TermKeyword} {
		for _, term := range post.Terms(kind) {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			terms = append(terms, TermModel{Path: post.Path, Kind: kind, Term: term})
		}
	}
	for _, fence := range fences {
		if fence.Info == "" {
			continue
		}
		terms = append(terms, TermModel{Path: post.Path, Kind: KindLanguage, Term: strings.ToLower(fence.Info)})
	}
	if len(terms) > 0 {
		if _, err := tx.NewInsert().Model(&terms).Exec(ctx); err != nil {
			return fmt.Errorf("failed to index terms for %s: %w", post.Path, err)
		}
	}

	var links []LinkModel
	for _, link := range doc.Links {
		target, internal, ok := linkTarget(link.Destination)
		if !ok {
			continue
		}
		links = append(links, LinkModel{
			Path:     post.Path,
			Target:   target,
			Internal: internal,
			Line:     post.LineInFile(link.Line),
		})
	}
	if len(links) > 0 {
		if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
			return fmt.Errorf("failed to index links for %s: %w", post.Path, err)
		}
	}
	return nil
}

func deletePost(ctx context.Context, tx bun.Tx, path string) error {
	if _, err := tx.NewDelete().Model((*PostModel)(nil)).Where("path = ?", path).Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove post %s: %w", path, err)
	}
	if _, err := tx.NewDelete().Model((*TermModel)(nil)).Where("path = ?", path).Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove terms for %s: %w", path, err)
	}
	if _, err := tx.NewDelete().Model((*LinkModel)(nil)).Where("path = ?", path).Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove links for %s: %w", path, err)
	}
	return nil
}

// linkTarget normalizes a link destination for the catalog. Root-relative
// targets keep only their path component so backlink lookups compare against
// permalinks; destinations with a scheme are stored as written. Fragments
// and relative references are neither, and are not tracked.
func linkTarget(dest string) (target string, internal, ok bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return "", false, false
	}
	if strings.HasPrefix(dest, "//") {
		return dest, false, true
	}
	if strings.HasPrefix(dest, "/") {
		if u, err := url.Parse(dest); err == nil && u.Path != "" {
			return permalink.Normalize(u.Path), true, true
		}
		return dest, true, true
	}
	if u, err := url.Parse(dest); err == nil && u.Scheme != "" {
		return dest, false, true
	}
	return "", false, false
}

// ListOptions filters and pages the post listing. Zero values mean no
// filter; a Limit of zero or less returns every row.
type ListOptions struct {
	Tag      string
	Category string
	Year     int
	Limit    int
	Offset   int
}

// List returns catalog rows ordered by date descending, then path.
func (c *Catalog) List(ctx context.Context, opts ListOptions) ([]PostModel, error) {
	var rows []PostModel
	q := c.db.NewSelect().Model(&rows).OrderExpr("date DESC, path ASC")
	if opts.Tag != "" {
		q = q.Where("path IN (SELECT path FROM post_terms WHERE kind = ? AND term = ?)",
			types.TermTag, strings.ToLower(strings.TrimSpace(opts.Tag)))
	}
	if opts.Category != "" {
		q = q.Where("path IN (SELECT path FROM post_terms WHERE kind = ? AND term = ?)",
			types.TermCategory, strings.ToLower(strings.TrimSpace(opts.Category)))
	}
	if opts.Year != 0 {
		q = q.Where("substr(date, 1, 4) = ?", strconv.Itoa(opts.Year))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return rows, nil
}

// Post returns the catalog row for a path, or false when it is not indexed.
func (c *Catalog) Post(ctx context.Context, path string) (PostModel, bool, error) {
	var row PostModel
	err := c.db.NewSelect().Model(&row).Where("path = ?", path).Scan(ctx)
	if err == sql.ErrNoRows {
		return PostModel{}, false, nil
	}
	if err != nil {
		return PostModel{}, false, fmt.Errorf("failed to read post %s: %w", path, err)
	}
	return row, true, nil
}

// Terms tallies terms of the given kind, most frequent first.
func (c *Catalog) Terms(ctx context.Context, kind string) ([]types.TermCount, error) {
	var rows []struct {
		Term  string `bun:"term"`
		Count int    `bun:"count"`
	}
	err := c.db.NewSelect().
		Table("post_terms").
		ColumnExpr("term, count(*) AS count").
		Where("kind = ?", kind).
		GroupExpr("term").
		OrderExpr("count DESC, term ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to tally terms: %w", err)
	}
	counts := make([]types.TermCount, len(rows))
	for i, row := range rows {
		counts[i] = types.TermCount{Term: row.Term, Count: row.Count}
	}
	return counts, nil
}

// Stats aggregates the inventory into corpus-wide numbers.
func (c *Catalog) Stats(ctx context.Context) (types.CorpusStats, error) {
	var stats types.CorpusStats

	var posts struct {
		Posts  int `bun:"posts"`
		Words  int `bun:"words"`
		Fences int `bun:"fences"`
	}
	if err := c.db.NewSelect().
		Table("posts").
		ColumnExpr("count(*) AS posts, coalesce(sum(words), 0) AS words, coalesce(sum(fences), 0) AS fences").
		Scan(ctx, &posts); err != nil {
		return stats, fmt.Errorf("failed to aggregate posts: %w", err)
	}
	stats.Posts = posts.Posts
	stats.Words = posts.Words
	stats.CodeBlocks = posts.Fences

	var links struct {
		Internal int `bun:"internal_links"`
		External int `bun:"external_links"`
	}
	if err := c.db.NewSelect().
		Table("post_links").
		ColumnExpr("coalesce(sum(internal), 0) AS internal_links, coalesce(sum(1 - internal), 0) AS external_links").
		Scan(ctx, &links); err != nil {
		return stats, fmt.Errorf("failed to aggregate links: %w", err)
	}
	stats.InternalLinks = links.Internal
	stats.ExternalLinks = links.External

	var err error
	if stats.Tags, err = c.Terms(ctx, types.TermTag); err != nil {
		return stats, err
	}
	if stats.Categories, err = c.Terms(ctx, types.TermCategory); err != nil {
		return stats, err
	}
	languages, err := c.Terms(ctx, KindLanguage)
	if err != nil {
		return stats, err
	}
	for _, lang := range languages {
		stats.FenceLanguages = append(stats.FenceLanguages, types.LanguageCount{Language: lang.Term, Count: lang.Count})
	}

	var years []struct {
		Year  string `bun:"year"`
		Count int    `bun:"count"`
	}
	if err := c.db.NewSelect().
		Table("posts").
		ColumnExpr("substr(date, 1, 4) AS year, count(*) AS count").
		Where("date != ''").
		GroupExpr("year").
		OrderExpr("year DESC").
		Scan(ctx, &years); err != nil {
		return stats, fmt.Errorf("failed to aggregate years: %w", err)
	}
	for _, row := range years {
		y, err := strconv.Atoi(row.Year)
		if err != nil {
			// Unparseable dates contribute no year bucket.
			continue
		}
		stats.PostsPerYear = append(stats.PostsPerYear, types.YearCount{Year: y, Count: row.Count})
	}

	return stats, nil
}

// Backlinks returns the paths of posts whose bodies link to the given
// permalink, ordered by path.
func (c *Catalog) Backlinks(ctx context.Context, target string) ([]string, error) {
	var paths []string
	err := c.db.NewSelect().
		Table("post_links").
		ColumnExpr("DISTINCT path").
		Where("internal = ?", true).
		Where("target = ?", permalink.Normalize(target)).
		OrderExpr("path ASC").
		Scan(ctx, &paths)
	if err != nil {
		return nil, fmt.Errorf("failed to query backlinks: %w", err)
	}
	return paths, nil
}

// RelatedPost describes how another post relates to the queried one.
type RelatedPost struct {
	Path        string `json:"path"`
	SharedTerms int    `json:"sharedTerms"`
	Linked      bool   `json:"linked"`
}

// Related finds posts sharing front-matter terms with the given post or
// connected to it by an internal link in either direction. Link-connected
// posts rank first, then by shared term count.
func (c *Catalog) Related(ctx context.Context, path string, limit int) ([]RelatedPost, error) {
	var shared []struct {
		Path  string `bun:"path"`
		Count int    `bun:"count"`
	}
	err := c.db.NewSelect().
		TableExpr("post_terms AS a").
		Join("JOIN post_terms AS b ON b.kind = a.kind AND b.term = a.term AND b.path != a.path").
		ColumnExpr("b.path AS path, count(*) AS count").
		Where("a.path = ?", path).
		Where("a.kind != ?", KindLanguage).
		GroupExpr("b.path").
		Scan(ctx, &shared)
	if err != nil {
		return nil, fmt.Errorf("failed to query shared terms: %w", err)
	}

	related := make(map[string]*RelatedPost, len(shared))
	for _, row := range shared {
		related[row.Path] = &RelatedPost{Path: row.Path, SharedTerms: row.Count}
	}

	linked, err := c.linkedPaths(ctx, path)
	if err != nil {
		return nil, err
	}
	for _, p := range linked {
		r, ok := related[p]
		if !ok {
			r = &RelatedPost{Path: p}
			related[p] = r
		}
		r.Linked = true
	}

	out := make([]RelatedPost, 0, len(related))
	for _, r := range related {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Linked != out[j].Linked {
			return out[i].Linked
		}
		if out[i].SharedTerms != out[j].SharedTerms {
			return out[i].SharedTerms > out[j].SharedTerms
		}
		return out[i].Path < out[j].Path
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// linkedPaths returns posts connected to path by an internal link in either
// direction, excluding path itself.
func (c *Catalog) linkedPaths(ctx context.Context, path string) ([]string, error) {
	row, found, err := c.Post(ctx, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var outgoing []string
	err = c.db.NewSelect().
		TableExpr("post_links AS l").
		Join("JOIN posts AS p ON p.permalink = l.target").
		ColumnExpr("DISTINCT p.path").
		Where("l.path = ?", path).
		Where("l.internal = ?", true).
		Scan(ctx, &outgoing)
	if err != nil {
		return nil, fmt.Errorf("failed to query outgoing links: %w", err)
	}

	var incoming []string
	if row.Permalink != "" {
		if incoming, err = c.Backlinks(ctx, row.Permalink); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	var paths []string
	for _, p := range append(outgoing, incoming...) {
		if p == path || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths, nil
}
