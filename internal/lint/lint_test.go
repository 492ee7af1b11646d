package lint

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/postlint/postlint/internal/corpus"
)

func loadTestCorpus(t *testing.T, files map[string]string) *corpus.Corpus {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "postlint-lint-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	for path, content := range files {
		fullPath := filepath.Join(tmpDir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}

	c, err := corpus.New(tmpDir, nil, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return c
}

func run(t *testing.T, files map[string]string, opts Options) []Diagnostic {
	t.Helper()
	return NewRunner(opts).Run(context.Background(), loadTestCorpus(t, files))
}

func byRule(diags []Diagnostic, rule string) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Rule == rule {
			out = append(out, d)
		}
	}
	return out
}

func TestRunner_CleanCorpus(t *testing.T) {
	files := map[string]string{
		"clean-post.md": `---
layout: post
title: Clean Post
description: Short and sweet.
date: 2024-01-02
tags:
  - go
url: /clean-post/
---

# Clean Post

Prose with a [link](/other-post/) and code:

` + "```go\nfmt.Println(\"ok\")\n```\n",
		"other-post.md": `---
layout: post
title: Other Post
description: Also short.
date: 2024-02-03
url: /other-post/
---

Back to [clean](/clean-post/).
`,
	}

	diags := run(t, files, Options{})
	if len(diags) != 0 {
		t.Errorf("Run() = %v, want no diagnostics", diags)
	}
}

func TestRunner_EmptyCorpus(t *testing.T) {
	diags := run(t, nil, Options{})
	if len(diags) != 0 {
		t.Errorf("Run() = %v, want none for empty corpus", diags)
	}
}

func TestRunner_FrontMatterRules(t *testing.T) {
	t.Run("missing block", func(t *testing.T) {
		diags := run(t, map[string]string{"p.md": "# No front matter\n"}, Options{})
		got := byRule(diags, "frontmatter/missing")
		if len(got) != 1 {
			t.Fatalf("frontmatter/missing diags = %v, want 1", got)
		}
		if got[0].Severity != SeverityError || got[0].Line != 1 {
			t.Errorf("diag = %+v, want error at line 1", got[0])
		}
	})

	t.Run("unterminated block", func(t *testing.T) {
		diags := run(t, map[string]string{"p.md": "---\ntitle: X\nNo closer here.\n"}, Options{})
		if got := byRule(diags, "frontmatter/unterminated"); len(got) != 1 {
			t.Fatalf("frontmatter/unterminated diags = %v, want 1", got)
		}
		if got := byRule(diags, "frontmatter/missing"); len(got) != 0 {
			t.Errorf("frontmatter/missing should not fire when the block opened: %v", got)
		}
	})

	t.Run("yaml syntax error", func(t *testing.T) {
		diags := run(t, map[string]string{"p.md": "---\ntitle: [unclosed\n---\nbody\n"}, Options{})
		got := byRule(diags, "frontmatter/syntax")
		if len(got) != 1 {
			t.Fatalf("frontmatter/syntax diags = %v, want 1", got)
		}
		if got[0].Severity != SeverityError {
			t.Errorf("Severity = %q, want error", got[0].Severity)
		}
		if !strings.Contains(got[0].Message, "invalid YAML") {
			t.Errorf("Message = %q, should mention invalid YAML", got[0].Message)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		diags := run(t, map[string]string{"p.md": "---\ntitle:\n  - a list\n---\nbody\n"}, Options{})
		got := byRule(diags, "frontmatter/syntax")
		if len(got) != 1 {
			t.Fatalf("frontmatter/syntax diags = %v, want 1 for type mismatch", got)
		}
		if !strings.Contains(got[0].Message, "does not decode") {
			t.Errorf("Message = %q, should mention decode failure", got[0].Message)
		}
	})

	t.Run("required keys", func(t *testing.T) {
		diags := run(t, map[string]string{"p.md": "---\ndate: 2024-01-01\ndescription: d\n---\nbody\n"}, Options{})
		got := byRule(diags, "frontmatter/required")
		if len(got) != 1 {
			t.Fatalf("frontmatter/required diags = %v, want 1", got)
		}
		if !strings.Contains(got[0].Message, `"title"`) {
			t.Errorf("Message = %q, should name the title key", got[0].Message)
		}
	})

	t.Run("custom required key", func(t *testing.T) {
		files := map[string]string{"p.md": "---\ntitle: T\ndate: 2024-01-01\ndescription: d\n---\nbody\n"}
		diags := run(t, files, Options{RequiredKeys: []string{"title", "date", "author"}})
		got := byRule(diags, "frontmatter/required")
		if len(got) != 1 || !strings.Contains(got[0].Message, `"author"`) {
			t.Fatalf("frontmatter/required diags = %v, want author flagged", got)
		}
	})

	t.Run("unparseable date", func(t *testing.T) {
		files := map[string]string{"p.md": "---\ntitle: T\ndate: sometime soon\ndescription: d\n---\nbody\n"}
		got := byRule(run(t, files, Options{}), "frontmatter/date")
		if len(got) != 1 {
			t.Fatalf("frontmatter/date diags = %v, want 1", got)
		}
		if got[0].Line != 3 {
			t.Errorf("Line = %d, want 3", got[0].Line)
		}
	})

	t.Run("lastmod predates date", func(t *testing.T) {
		files := map[string]string{"p.md": "---\ntitle: T\ndate: 2024-05-01\nlastmod: 2024-01-01\ndescription: d\n---\nbody\n"}
		got := byRule(run(t, files, Options{}), "frontmatter/date")
		if len(got) != 1 {
			t.Fatalf("frontmatter/date diags = %v, want 1", got)
		}
		if got[0].Severity != SeverityWarning {
			t.Errorf("Severity = %q, want warning", got[0].Severity)
		}
		if !strings.Contains(got[0].Message, "predates") {
			t.Errorf("Message = %q, should mention predates", got[0].Message)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		files := map[string]string{"p.md": "---\ntitle: T\ndate: 2024-01-01\ndescription: d\ndraft: true\n---\nbody\n"}

		got := byRule(run(t, files, Options{}), "frontmatter/unknown-key")
		if len(got) != 1 || !strings.Contains(got[0].Message, `"draft"`) {
			t.Fatalf("frontmatter/unknown-key diags = %v, want draft flagged", got)
		}
		if got[0].Line != 5 {
			t.Errorf("Line = %d, want 5", got[0].Line)
		}

		got = byRule(run(t, files, Options{ExtraKeys: []string{"draft"}}), "frontmatter/unknown-key")
		if len(got) != 0 {
			t.Errorf("extra keys should be accepted, got %v", got)
		}
	})

	t.Run("description length", func(t *testing.T) {
		long := strings.Repeat("x", 200)
		files := map[string]string{"p.md": "---\ntitle: T\ndate: 2024-01-01\ndescription: " + long + "\n---\nbody\n"}
		got := byRule(run(t, files, Options{}), "frontmatter/description")
		if len(got) != 1 {
			t.Fatalf("frontmatter/description diags = %v, want 1", got)
		}
		if !strings.Contains(got[0].Message, "200 characters (limit 160)") {
			t.Errorf("Message = %q, should carry the counts", got[0].Message)
		}
	})

	t.Run("missing description", func(t *testing.T) {
		files := map[string]string{"p.md": "---\ntitle: T\ndate: 2024-01-01\n---\nbody\n"}
		if got := byRule(run(t, files, Options{}), "frontmatter/description"); len(got) != 1 {
			t.Fatalf("frontmatter/description diags = %v, want 1", got)
		}
	})
}

func TestRunner_URLRules(t *testing.T) {
	t.Run("duplicate permalinks flag every claimant", func(t *testing.T) {
		files := map[string]string{
			"a.md": "---\ntitle: A\ndate: 2024-01-01\ndescription: d\nurl: /shared/\n---\na\n",
			"b.md": "---\ntitle: B\ndate: 2024-01-02\ndescription: d\nurl: /shared\n---\nb\n",
			"c.md": "---\ntitle: C\ndate: 2024-01-03\ndescription: d\nurl: /solo/\n---\nc\n",
		}
		got := byRule(run(t, files, Options{}), "url/duplicate")
		if len(got) != 2 {
			t.Fatalf("url/duplicate diags = %v, want 2 (one per claimant)", got)
		}
		if got[0].Path != "a.md" || got[1].Path != "b.md" {
			t.Errorf("claimants = %q, %q, want a.md and b.md", got[0].Path, got[1].Path)
		}
		if !strings.Contains(got[0].Message, "b.md") {
			t.Errorf("a.md diag should name b.md: %q", got[0].Message)
		}
	})

	t.Run("url format", func(t *testing.T) {
		files := map[string]string{"p.md": "---\ntitle: T\ndate: 2024-01-01\ndescription: d\nurl: /My Posts\n---\nbody\n"}
		got := byRule(run(t, files, Options{}), "url/format")
		if len(got) != 3 {
			t.Fatalf("url/format diags = %v, want 3 (whitespace, uppercase, trailing slash)", got)
		}
	})
}

func TestRunner_BodyRules(t *testing.T) {
	header := "---\ntitle: T\ndate: 2024-01-01\ndescription: d\n---\n"

	t.Run("unclosed fence", func(t *testing.T) {
		files := map[string]string{"p.md": header + "\n```go\ncode never ends\n"}
		got := byRule(run(t, files, Options{}), "fence/unclosed")
		if len(got) != 1 {
			t.Fatalf("fence/unclosed diags = %v, want 1", got)
		}
		if got[0].Line != 7 {
			t.Errorf("Line = %d, want 7 (fence opener in the file)", got[0].Line)
		}
		if got[0].Severity != SeverityError {
			t.Errorf("Severity = %q, want error", got[0].Severity)
		}
	})

	t.Run("fence without language", func(t *testing.T) {
		files := map[string]string{"p.md": header + "\n```\nplain\n```\n"}
		if got := byRule(run(t, files, Options{}), "fence/language"); len(got) != 1 {
			t.Fatalf("fence/language diags = %v, want 1", got)
		}
	})

	t.Run("empty link", func(t *testing.T) {
		files := map[string]string{"p.md": header + "\nA [dangling]() link.\n"}
		if got := byRule(run(t, files, Options{}), "link/empty"); len(got) != 1 {
			t.Fatalf("link/empty diags = %v, want 1", got)
		}
	})

	t.Run("image without alt", func(t *testing.T) {
		files := map[string]string{"p.md": header + "\n![](/img/x.png)\n"}
		if got := byRule(run(t, files, Options{}), "image/alt"); len(got) != 1 {
			t.Fatalf("image/alt diags = %v, want 1", got)
		}
	})
}

func TestRunner_InternalLinks(t *testing.T) {
	files := map[string]string{
		"target.md": "---\ntitle: Target\ndate: 2024-01-01\ndescription: d\nurl: /target/\n---\nhello\n",
		"source.md": "---\ntitle: Source\ndate: 2024-01-02\ndescription: d\nurl: /source/\n---\n" +
			"[ok](/target/)\n\n" +
			"[ok with extras](/target/?ref=1#section)\n\n" +
			"[broken](/nowhere/)\n\n" +
			"[external](https://example.com/nowhere/)\n\n" +
			"[fragment](#heading)\n\n" +
			"[relative](sibling.md)\n",
	}

	got := byRule(run(t, files, Options{}), "link/internal")
	if len(got) != 1 {
		t.Fatalf("link/internal diags = %v, want only the broken one", got)
	}
	if !strings.Contains(got[0].Message, "/nowhere/") {
		t.Errorf("Message = %q, should name the broken target", got[0].Message)
	}
	if got[0].Path != "source.md" {
		t.Errorf("Path = %q, want source.md", got[0].Path)
	}
}

func TestRunner_StaticAssets(t *testing.T) {
	staticDir, err := os.MkdirTemp("", "postlint-static-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(staticDir) })

	if err := os.MkdirAll(filepath.Join(staticDir, "img"), 0o755); err != nil {
		t.Fatalf("Failed to create img dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(staticDir, "img", "ok.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("Failed to write asset: %v", err)
	}

	files := map[string]string{
		"p.md": "---\ntitle: T\ndate: 2024-01-01\ndescription: d\nimages:\n  - /img/gone.png\nthumbnail: /img/ok.png\n---\n" +
			"![ok](/img/ok.png)\n\n![gone](/img/also-gone.png)\n",
	}
	opts := Options{StaticDirs: []string{staticDir}}

	got := byRule(run(t, files, opts), "asset/missing")
	if len(got) != 2 {
		t.Fatalf("asset/missing diags = %v, want 2", got)
	}

	t.Run("static files satisfy internal links", func(t *testing.T) {
		linkFiles := map[string]string{
			"p.md": "---\ntitle: T\ndate: 2024-01-01\ndescription: d\n---\n[img](/img/ok.png)\n",
		}
		if got := byRule(run(t, linkFiles, opts), "link/internal"); len(got) != 0 {
			t.Errorf("link/internal diags = %v, want none for existing static file", got)
		}
	})

	t.Run("inert without static roots", func(t *testing.T) {
		if got := byRule(run(t, files, Options{}), "asset/missing"); len(got) != 0 {
			t.Errorf("asset/missing diags = %v, want none without static roots", got)
		}
	})
}

func TestRunner_ListDuplicates(t *testing.T) {
	files := map[string]string{
		"p.md": "---\ntitle: T\ndate: 2024-01-01\ndescription: d\ntags:\n  - go\n  - Go\ncategories:\n  - tools\n---\nbody\n",
	}
	got := byRule(run(t, files, Options{}), "list/duplicate")
	if len(got) != 1 {
		t.Fatalf("list/duplicate diags = %v, want 1", got)
	}
	if !strings.Contains(got[0].Message, "duplicate tag") {
		t.Errorf("Message = %q, should mention duplicate tag", got[0].Message)
	}
}

func TestRunner_Schema(t *testing.T) {
	schemaDir, err := os.MkdirTemp("", "postlint-schema-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(schemaDir) })

	schemaPath := filepath.Join(schemaDir, "frontmatter.schema.json")
	schemaJSON := `{
		"type": "object",
		"required": ["title"],
		"properties": {
			"tags": {"type": "array", "minItems": 1}
		}
	}`
	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0o644); err != nil {
		t.Fatalf("Failed to write schema: %v", err)
	}

	schema, err := CompileSchema(schemaPath)
	if err != nil {
		t.Fatalf("CompileSchema() error = %v", err)
	}

	files := map[string]string{
		"p.md": "---\ndate: 2024-01-01\ndescription: d\ntags: []\n---\nbody\n",
	}
	got := byRule(run(t, files, Options{Schema: schema, RequiredKeys: []string{"date"}}), "frontmatter/schema")
	if len(got) < 1 {
		t.Fatalf("frontmatter/schema diags = %v, want at least 1", got)
	}
	for _, d := range got {
		if d.Severity != SeverityError {
			t.Errorf("Severity = %q, want error", d.Severity)
		}
	}
}

func TestRunner_Controls(t *testing.T) {
	files := map[string]string{
		"p.md": "---\ntitle: T\ndate: 2024-01-01\n---\n\n```\nplain\n```\n",
	}

	t.Run("disable rules", func(t *testing.T) {
		opts := Options{Disabled: []string{"frontmatter/description", "fence/language"}}
		diags := run(t, files, opts)
		if got := byRule(diags, "frontmatter/description"); len(got) != 0 {
			t.Errorf("disabled rule still fired: %v", got)
		}
		if got := byRule(diags, "fence/language"); len(got) != 0 {
			t.Errorf("disabled rule still fired: %v", got)
		}
	})

	t.Run("severity override", func(t *testing.T) {
		opts := Options{SeverityOverrides: map[string]Severity{"fence/language": SeverityError}}
		got := byRule(run(t, files, opts), "fence/language")
		if len(got) != 1 || got[0].Severity != SeverityError {
			t.Fatalf("override not applied: %v", got)
		}
	})

	t.Run("deterministic output", func(t *testing.T) {
		many := map[string]string{}
		for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
			many[name+".md"] = "---\ntitle: " + name + "\ndate: 2024-01-01\n---\n[x](/missing-" + name + "/)\n"
		}
		first := run(t, many, Options{})
		second := run(t, many, Options{})
		if !reflect.DeepEqual(first, second) {
			t.Error("Run() output differs between runs")
		}
		for i := 1; i < len(first); i++ {
			if first[i-1].Path > first[i].Path {
				t.Errorf("diagnostics out of path order: %q before %q", first[i-1].Path, first[i].Path)
			}
		}
	})
}

func TestSummarize(t *testing.T) {
	diags := []Diagnostic{
		{Severity: SeverityError},
		{Severity: SeverityWarning},
		{Severity: SeverityError},
	}
	s := Summarize(diags)
	if s.Errors != 2 || s.Warnings != 1 {
		t.Errorf("Summarize() = %+v, want 2 errors and 1 warning", s)
	}
}
