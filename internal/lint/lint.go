// Package lint checks posts against the content-integrity rules: parseable
// front matter, unique permalinks, closed code fences, resolvable internal
// links, and the softer editorial checks around them.
package lint

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/postlint/postlint/internal/corpus"
	"github.com/postlint/postlint/internal/frontmatter"
	"github.com/postlint/postlint/internal/types"
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one finding in one post.
type Diagnostic struct {
	Path     string   `json:"path"`
	Line     int      `json:"line,omitempty"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Rule checks a single post.
type Rule interface {
	ID() string
	Check(post types.Post) []Diagnostic
}

// CorpusRule checks properties that span posts, such as permalink uniqueness
// and internal link resolution.
type CorpusRule interface {
	ID() string
	CheckCorpus(c *corpus.Corpus) []Diagnostic
}

// Options configures the built-in rule set.
type Options struct {
	// RequiredKeys must be present and non-empty in every post's front
	// matter. Defaults to title and date.
	RequiredKeys []string

	// ExtraKeys extends the recognized front-matter schema so the
	// unknown-key rule does not flag locally established keys.
	ExtraKeys []string

	// StaticDirs are absolute directories searched when resolving
	// root-relative asset and link targets that match no post permalink.
	StaticDirs []string

	// Schema optionally validates each post's raw front matter. Compile one
	// with CompileSchema.
	Schema *jsonschema.Schema

	// MaxDescription caps the description length. Defaults to 160.
	MaxDescription int

	// Disabled lists rule IDs to skip.
	Disabled []string

	// SeverityOverrides remaps the severity of a rule's diagnostics.
	SeverityOverrides map[string]Severity
}

// Runner applies the rule set to a corpus.
type Runner struct {
	rules       []Rule
	corpusRules []CorpusRule
	disabled    map[string]bool
	overrides   map[string]Severity
}

// NewRunner builds a Runner with the built-in rules configured by opts.
func NewRunner(opts Options) *Runner {
	if len(opts.RequiredKeys) == 0 {
		opts.RequiredKeys = []string{"title", "date"}
	}
	if opts.MaxDescription <= 0 {
		opts.MaxDescription = 160
	}

	r := &Runner{
		rules: []Rule{
			missingRule{},
			unterminatedRule{},
			syntaxRule{fm: frontmatter.New()},
			requiredRule{keys: opts.RequiredKeys},
			dateRule{},
			unknownKeyRule{extra: toSet(opts.ExtraKeys)},
			descriptionRule{limit: opts.MaxDescription},
			urlFormatRule{},
			fenceUnclosedRule{},
			fenceLanguageRule{},
			linkEmptyRule{},
			imageAltRule{},
			assetMissingRule{staticDirs: opts.StaticDirs},
			listDuplicateRule{},
		},
		corpusRules: []CorpusRule{
			urlDuplicateRule{},
			linkInternalRule{staticDirs: opts.StaticDirs},
		},
		disabled:  toSet(opts.Disabled),
		overrides: opts.SeverityOverrides,
	}
	if opts.Schema != nil {
		r.rules = append(r.rules, schemaRule{schema: opts.Schema})
	}
	return r
}

// Run checks every post and returns diagnostics sorted by path, line, rule,
// and message. Posts are checked in parallel; the ordering is stable
// regardless of scheduling.
func (r *Runner) Run(ctx context.Context, c *corpus.Corpus) []Diagnostic {
	perPost := make([][]Diagnostic, c.Len())

	numWorkers := max(min(runtime.NumCPU(), c.Len()), 1)
	postCh := make(chan int, c.Len())

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Go(func() {
			for idx := range postCh {
				if ctx.Err() != nil {
					continue
				}
				post := c.Posts[idx]
				var diags []Diagnostic
				for _, rule := range r.rules {
					if r.disabled[rule.ID()] {
						continue
					}
					diags = append(diags, rule.Check(post)...)
				}
				perPost[idx] = diags
			}
		})
	}
	for i := range c.Posts {
		postCh <- i
	}
	close(postCh)
	wg.Wait()

	var all []Diagnostic
	for _, diags := range perPost {
		all = append(all, diags...)
	}
	for _, rule := range r.corpusRules {
		if r.disabled[rule.ID()] {
			continue
		}
		all = append(all, rule.CheckCorpus(c)...)
	}

	for i := range all {
		if sev, ok := r.overrides[all[i].Rule]; ok {
			all[i].Severity = sev
		}
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
	return all
}

// Summary tallies diagnostics by severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Summarize counts errors and warnings in a diagnostic list.
func Summarize(diags []Diagnostic) Summary {
	var s Summary
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		}
	}
	return s
}

// CompileSchema loads and compiles a JSON Schema for front-matter validation.
func CompileSchema(path string) (*jsonschema.Schema, error) {
	schema, err := jsonschema.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("compile frontmatter schema: %w", err)
	}
	return schema, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// keyLine locates a top-level front-matter key in the file, or 1 when it
// cannot be found.
func keyLine(post types.Post, key string) int {
	blk := frontmatter.Split(post.Raw)
	if !blk.Found || !blk.Terminated {
		return 1
	}
	for i, line := range strings.Split(blk.Raw, "\n") {
		if strings.HasPrefix(line, key+":") {
			// Block content starts on line 2, after the opening delimiter.
			return i + 2
		}
	}
	return 1
}
