package main

import (
	"testing"

	"github.com/postlint/postlint/internal/catalog"
	"github.com/postlint/postlint/internal/lint"
	"github.com/postlint/postlint/internal/types"
)

func TestFilterDiagnostics(t *testing.T) {
	diags := []lint.Diagnostic{
		{Path: "posts/a.md", Rule: "frontmatter/required"},
		{Path: "posts/b.md", Rule: "fence/unclosed"},
		{Path: "posts/c.md", Rule: "url/duplicate"},
	}

	got := filterDiagnostics(diags, []string{"posts/b.md", "posts/c.md"})
	if len(got) != 2 {
		t.Fatalf("filterDiagnostics() kept %d diagnostics, want 2", len(got))
	}
	if got[0].Path != "posts/b.md" || got[1].Path != "posts/c.md" {
		t.Errorf("filterDiagnostics() = %v, want posts/b.md and posts/c.md", got)
	}

	if got := filterDiagnostics(diags, []string{"posts/missing.md"}); got != nil {
		t.Errorf("filterDiagnostics() = %v, want nil for unknown path", got)
	}
}

func TestTermKind(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "tag", want: types.TermTag},
		{in: "tags", want: types.TermTag},
		{in: " Categories ", want: types.TermCategory},
		{in: "keyword", want: types.TermKeyword},
		{in: "language", want: catalog.KindLanguage},
		{in: "author", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := termKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("termKind(%q) error = nil, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("termKind(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("termKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShortDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "2024-05-01T10:30:00Z", want: "2024-05-01"},
		{in: "2024-05-01", want: "2024-05-01"},
		{in: "", want: "-"},
	}

	for _, tt := range tests {
		if got := shortDate(tt.in); got != tt.want {
			t.Errorf("shortDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummarizeTerms(t *testing.T) {
	if got := summarizeTerms(nil); got != "none" {
		t.Errorf("summarizeTerms(nil) = %q, want none", got)
	}

	terms := []types.TermCount{
		{Term: "go", Count: 12},
		{Term: "testing", Count: 4},
	}
	if got := summarizeTerms(terms); got != "go (12), testing (4)" {
		t.Errorf("summarizeTerms() = %q", got)
	}

	many := []types.TermCount{
		{Term: "a", Count: 9}, {Term: "b", Count: 8}, {Term: "c", Count: 7},
		{Term: "d", Count: 6}, {Term: "e", Count: 5}, {Term: "f", Count: 4},
		{Term: "g", Count: 3},
	}
	want := "a (9), b (8), c (7), d (6), e (5) and 2 more"
	if got := summarizeTerms(many); got != want {
		t.Errorf("summarizeTerms() = %q, want %q", got, want)
	}
}
