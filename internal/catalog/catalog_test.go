package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/postlint/postlint/internal/corpus"
	"github.com/postlint/postlint/internal/types"
)

func setupTestCorpus(t *testing.T, files map[string]string) (string, *corpus.Corpus) {
	t.Helper()

	root, err := os.MkdirTemp("", "postlint-catalog-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(root) })

	for name, content := range files {
		writeTestPost(t, root, name, content)
	}
	return root, loadTestCorpus(t, root)
}

func writeTestPost(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create post directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write post: %v", err)
	}
}

func loadTestCorpus(t *testing.T, root string) *corpus.Corpus {
	t.Helper()
	corp, err := corpus.New(root, nil, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return corp
}

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalog_Refresh(t *testing.T) {
	ctx := context.Background()
	root, corp := setupTestCorpus(t, map[string]string{
		"posts/a.md": "---\ntitle: First\ndate: 2024-01-02\ntags:\n  - go\nurl: /first/\n---\n\nHello [next](/second/) and [docs](https://example.com/)\n\n```go\npackage main\n```\n",
		"posts/b.md": "---\ntitle: Second\ndate: 2023-06-01\nurl: /second/\n---\n\nPlain words here.\n",
	})
	c := openTestCatalog(t)

	res, err := c.Refresh(ctx, corp)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if res.Indexed != 2 || res.Removed != 0 || res.Unchanged != 0 {
		t.Errorf("Refresh() = %+v, want 2 indexed", res)
	}

	// A second refresh over the same corpus changes nothing.
	res, err = c.Refresh(ctx, corp)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if res.Indexed != 0 || res.Unchanged != 2 {
		t.Errorf("Refresh() = %+v, want 2 unchanged", res)
	}

	rows, err := c.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("List() returned %d rows, want 2", len(rows))
	}
	if rows[0].Path != "posts/a.md" {
		t.Errorf("List()[0].Path = %q, want posts/a.md", rows[0].Path)
	}
	if rows[0].Title != "First" || rows[0].Permalink != "/first/" {
		t.Errorf("List()[0] = %+v, want title First and permalink /first/", rows[0])
	}
	if rows[0].Words == 0 || rows[0].Fences != 1 {
		t.Errorf("List()[0] words = %d, fences = %d, want words > 0 and 1 fence", rows[0].Words, rows[0].Fences)
	}

	// Editing a post reindexes only that post.
	writeTestPost(t, root, "posts/b.md", "---\ntitle: Second\ndate: 2023-06-01\nurl: /second/\n---\n\nRewritten body.\n")
	res, err = c.Refresh(ctx, loadTestCorpus(t, root))
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if res.Indexed != 1 || res.Unchanged != 1 {
		t.Errorf("Refresh() after edit = %+v, want 1 indexed, 1 unchanged", res)
	}

	// Deleting a post removes its rows.
	if err := os.Remove(filepath.Join(root, "posts", "a.md")); err != nil {
		t.Fatalf("Failed to remove post: %v", err)
	}
	res, err = c.Refresh(ctx, loadTestCorpus(t, root))
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if res.Removed != 1 || res.Indexed != 0 || res.Unchanged != 1 {
		t.Errorf("Refresh() after delete = %+v, want 1 removed, 1 unchanged", res)
	}

	rows, err = c.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Path != "posts/b.md" {
		t.Errorf("List() after delete = %d rows, want only posts/b.md", len(rows))
	}
}

func TestCatalog_List(t *testing.T) {
	ctx := context.Background()
	_, corp := setupTestCorpus(t, map[string]string{
		"a.md": "---\ntitle: Alpha\ndate: 2023-05-01\ntags:\n  - go\nurl: /alpha/\n---\n\nAlpha body.\n",
		"b.md": "---\ntitle: Beta\ndate: 2024-01-01\ntags:\n  - go\n  - sqlite\ncategories:\n  - databases\nurl: /beta/\n---\n\nBeta body.\n",
		"c.md": "---\ntitle: Gamma\ndate: 2024-06-01\nurl: /gamma/\n---\n\nGamma body.\n",
	})
	c := openTestCatalog(t)
	if _, err := c.Refresh(ctx, corp); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	paths := func(t *testing.T, opts ListOptions) []string {
		t.Helper()
		rows, err := c.List(ctx, opts)
		if err != nil {
			t.Fatalf("List(%+v) error = %v", opts, err)
		}
		out := make([]string, len(rows))
		for i, row := range rows {
			out[i] = row.Path
		}
		return out
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all by date desc", ListOptions{}, []string{"c.md", "b.md", "a.md"}},
		{"tag filter", ListOptions{Tag: "go"}, []string{"b.md", "a.md"}},
		{"tag filter folds case", ListOptions{Tag: "Go"}, []string{"b.md", "a.md"}},
		{"category filter", ListOptions{Category: "databases"}, []string{"b.md"}},
		{"year filter", ListOptions{Year: 2024}, []string{"c.md", "b.md"}},
		{"pagination", ListOptions{Limit: 1, Offset: 1}, []string{"b.md"}},
		{"no match", ListOptions{Tag: "rust"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paths(t, tt.opts)
			if len(got) != len(tt.want) {
				t.Fatalf("List(%+v) = %v, want %v", tt.opts, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("List(%+v)[%d] = %q, want %q", tt.opts, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCatalog_Stats(t *testing.T) {
	ctx := context.Background()
	_, corp := setupTestCorpus(t, map[string]string{
		"one.md":   "---\ntitle: One\ndate: 2024-01-01\ntags:\n  - go\nurl: /one/\n---\n\n[two](/two/)\n\n```go\npackage main\n```\n",
		"two.md":   "---\ntitle: Two\ndate: 2024-03-01\ntags:\n  - go\nurl: /two/\n---\n\n[site](https://example.com/)\n",
		"three.md": "---\ntitle: Three\ndate: 2023-07-01\ncategories:\n  - news\nurl: /three/\n---\n\nshort words only\n",
	})
	c := openTestCatalog(t)
	if _, err := c.Refresh(ctx, corp); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Posts != 3 {
		t.Errorf("Stats().Posts = %d, want 3", stats.Posts)
	}
	if stats.Words != 5 {
		t.Errorf("Stats().Words = %d, want 5", stats.Words)
	}
	if stats.InternalLinks != 1 || stats.ExternalLinks != 1 {
		t.Errorf("Stats() links = %d internal, %d external, want 1 and 1",
			stats.InternalLinks, stats.ExternalLinks)
	}
	if stats.CodeBlocks != 1 {
		t.Errorf("Stats().CodeBlocks = %d, want 1", stats.CodeBlocks)
	}
	if len(stats.Tags) != 1 || stats.Tags[0].Term != "go" || stats.Tags[0].Count != 2 {
		t.Errorf("Stats().Tags = %v, want go with count 2", stats.Tags)
	}
	if len(stats.Categories) != 1 || stats.Categories[0].Term != "news" {
		t.Errorf("Stats().Categories = %v, want news", stats.Categories)
	}
	if len(stats.FenceLanguages) != 1 || stats.FenceLanguages[0].Language != "go" {
		t.Errorf("Stats().FenceLanguages = %v, want go", stats.FenceLanguages)
	}
	wantYears := []types.YearCount{{Year: 2024, Count: 2}, {Year: 2023, Count: 1}}
	if len(stats.PostsPerYear) != len(wantYears) {
		t.Fatalf("Stats().PostsPerYear = %v, want %v", stats.PostsPerYear, wantYears)
	}
	for i, want := range wantYears {
		if stats.PostsPerYear[i] != want {
			t.Errorf("Stats().PostsPerYear[%d] = %v, want %v", i, stats.PostsPerYear[i], want)
		}
	}
}

func TestCatalog_Terms(t *testing.T) {
	ctx := context.Background()
	_, corp := setupTestCorpus(t, map[string]string{
		"a.md": "---\ntitle: A\ndate: 2024-01-01\ntags:\n  - go\n  - testing\nurl: /a/\n---\n\nBody.\n",
		"b.md": "---\ntitle: B\ndate: 2024-02-01\ntags:\n  - go\nurl: /b/\n---\n\n```sql\nselect 1;\n```\n",
	})
	c := openTestCatalog(t)
	if _, err := c.Refresh(ctx, corp); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	tags, err := c.Terms(ctx, types.TermTag)
	if err != nil {
		t.Fatalf("Terms() error = %v", err)
	}
	if len(tags) != 2 || tags[0].Term != "go" || tags[0].Count != 2 || tags[1].Term != "testing" {
		t.Errorf("Terms(tag) = %v, want go with count 2 then testing", tags)
	}

	langs, err := c.Terms(ctx, KindLanguage)
	if err != nil {
		t.Fatalf("Terms() error = %v", err)
	}
	if len(langs) != 1 || langs[0].Term != "sql" || langs[0].Count != 1 {
		t.Errorf("Terms(language) = %v, want sql with count 1", langs)
	}
}

func TestCatalog_Backlinks(t *testing.T) {
	ctx := context.Background()
	_, corp := setupTestCorpus(t, map[string]string{
		"one.md": "---\ntitle: One\ndate: 2024-01-01\nurl: /one/\n---\n\n[two](/two/) and [two again](/two)\n",
		"two.md": "---\ntitle: Two\ndate: 2024-02-01\nurl: /two/\n---\n\nNo links.\n",
	})
	c := openTestCatalog(t)
	if _, err := c.Refresh(ctx, corp); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	got, err := c.Backlinks(ctx, "/two/")
	if err != nil {
		t.Fatalf("Backlinks() error = %v", err)
	}
	if len(got) != 1 || got[0] != "one.md" {
		t.Errorf("Backlinks(/two/) = %v, want [one.md]", got)
	}

	// Lookups normalize the target the same way link targets were stored.
	got, err = c.Backlinks(ctx, "/two")
	if err != nil {
		t.Fatalf("Backlinks() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Backlinks(/two) = %v, want [one.md]", got)
	}

	got, err = c.Backlinks(ctx, "/one/")
	if err != nil {
		t.Fatalf("Backlinks() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Backlinks(/one/) = %v, want none", got)
	}
}

func TestCatalog_Related(t *testing.T) {
	ctx := context.Background()
	_, corp := setupTestCorpus(t, map[string]string{
		"a.md": "---\ntitle: A\ndate: 2024-01-01\ntags:\n  - go\nurl: /a/\n---\n\nSee [b](/b/)\n",
		"b.md": "---\ntitle: B\ndate: 2024-02-01\ntags:\n  - go\n  - cli\nurl: /b/\n---\n\nNo links.\n",
		"c.md": "---\ntitle: C\ndate: 2024-03-01\ntags:\n  - cli\nurl: /c/\n---\n\nAlso [b](/b/)\n",
		"d.md": "---\ntitle: D\ndate: 2024-04-01\ntags:\n  - rust\nurl: /d/\n---\n\nUnrelated.\n",
	})
	c := openTestCatalog(t)
	if _, err := c.Refresh(ctx, corp); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	got, err := c.Related(ctx, "b.md", 0)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Related(b.md) = %v, want a.md and c.md", got)
	}
	for i, want := range []string{"a.md", "c.md"} {
		if got[i].Path != want || !got[i].Linked || got[i].SharedTerms != 1 {
			t.Errorf("Related(b.md)[%d] = %+v, want %s linked with 1 shared term", i, got[i], want)
		}
	}

	got, err = c.Related(ctx, "a.md", 0)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	if len(got) != 1 || got[0].Path != "b.md" || !got[0].Linked {
		t.Errorf("Related(a.md) = %v, want linked b.md", got)
	}

	got, err = c.Related(ctx, "b.md", 1)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Related(b.md, limit 1) returned %d posts, want 1", len(got))
	}
}

func TestCatalog_SchemaDrift(t *testing.T) {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "postlint-catalog-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	dbPath := filepath.Join(dir, "catalog.db")

	_, corp := setupTestCorpus(t, map[string]string{
		"a.md": "---\ntitle: A\ndate: 2024-01-01\nurl: /a/\n---\n\nBody.\n",
	})

	c, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := c.Refresh(ctx, corp); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Stamp an unknown schema version, as if an older postlint wrote the file.
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	if _, err := sqlDB.Exec(`UPDATE catalog_info SET value = '999' WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("Failed to stamp version: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	c, err = Open(dbPath)
	if err != nil {
		t.Fatalf("Open() after drift error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	rows, err := c.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("List() after drift = %d rows, want a rebuilt empty catalog", len(rows))
	}
}

func TestDefaultPath(t *testing.T) {
	a := DefaultPath("/var/blog")
	b := DefaultPath("/var/other-blog")
	if a == "" || a == b {
		t.Errorf("DefaultPath() = %q and %q, want distinct per-corpus paths", a, b)
	}
	if filepath.Ext(a) != ".db" {
		t.Errorf("DefaultPath() = %q, want a .db file", a)
	}
}
