package lint

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/postlint/postlint/internal/corpus"
	"github.com/postlint/postlint/internal/frontmatter"
	"github.com/postlint/postlint/internal/markdown"
	"github.com/postlint/postlint/internal/permalink"
	"github.com/postlint/postlint/internal/types"
)

func diag(path string, line int, rule string, sev Severity, msg string) Diagnostic {
	return Diagnostic{Path: path, Line: line, Rule: rule, Severity: sev, Message: msg}
}

// missingRule reports posts without any front-matter block.
type missingRule struct{}

func (missingRule) ID() string { return "frontmatter/missing" }

func (missingRule) Check(post types.Post) []Diagnostic {
	if post.HasFrontMatter {
		return nil
	}
	return []Diagnostic{diag(post.Path, 1, "frontmatter/missing", SeverityError,
		"post has no front-matter block")}
}

// unterminatedRule reports an opening delimiter that is never closed.
type unterminatedRule struct{}

func (unterminatedRule) ID() string { return "frontmatter/unterminated" }

func (unterminatedRule) Check(post types.Post) []Diagnostic {
	blk := frontmatter.Split(post.Raw)
	if !blk.Found || blk.Terminated {
		return nil
	}
	return []Diagnostic{diag(post.Path, 1, "frontmatter/unterminated", SeverityError,
		"front-matter block is opened but never closed")}
}

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// syntaxRule reports front matter that does not decode: YAML syntax errors
// and values that do not fit the schema's field types.
type syntaxRule struct {
	fm *frontmatter.Handler
}

func (syntaxRule) ID() string { return "frontmatter/syntax" }

func (r syntaxRule) Check(post types.Post) []Diagnostic {
	blk := frontmatter.Split(post.Raw)
	if !blk.Found || !blk.Terminated {
		return nil
	}

	if _, err := frontmatter.DecodeRaw(blk.Raw); err != nil {
		line, msg := yamlErrorDetail(err)
		return []Diagnostic{diag(post.Path, line, "frontmatter/syntax", SeverityError,
			"invalid YAML: "+msg)}
	}

	if _, _, err := r.handler().Decode(post.Raw); err != nil {
		line, msg := yamlErrorDetail(err)
		return []Diagnostic{diag(post.Path, line, "frontmatter/syntax", SeverityError,
			"front matter does not decode: "+msg)}
	}
	return nil
}

func (r syntaxRule) handler() *frontmatter.Handler {
	if r.fm != nil {
		return r.fm
	}
	return frontmatter.New()
}

// yamlErrorDetail extracts the file line from a yaml.v3 error. The library
// reports lines relative to the block, which starts on file line 2.
func yamlErrorDetail(err error) (int, string) {
	msg := strings.TrimPrefix(err.Error(), "decode frontmatter: ")
	msg = strings.TrimPrefix(msg, "yaml: ")
	msg = strings.ReplaceAll(msg, "\n", "; ")

	line := 2
	if m := yamlLineRe.FindStringSubmatch(msg); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			line = n + 1
		}
	}
	return line, msg
}

// requiredRule reports configured required keys that are absent or empty.
type requiredRule struct {
	keys []string
}

func (requiredRule) ID() string { return "frontmatter/required" }

func (r requiredRule) Check(post types.Post) []Diagnostic {
	if !post.FrontMatterDecoded() {
		return nil
	}

	err := frontmatter.ValidateRequired(&post.FrontMatter, r.keys)
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return []Diagnostic{diag(post.Path, 1, "frontmatter/required", SeverityError, err.Error())}
	}

	keys := make([]string, 0, len(verrs))
	for key := range verrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	diags := make([]Diagnostic, 0, len(keys))
	for _, key := range keys {
		diags = append(diags, diag(post.Path, keyLine(post, key), "frontmatter/required", SeverityError,
			fmt.Sprintf("required key %q %v", key, verrs[key])))
	}
	return diags
}

// dateRule reports unparseable date values and a lastmod that predates date.
type dateRule struct{}

func (dateRule) ID() string { return "frontmatter/date" }

func (dateRule) Check(post types.Post) []Diagnostic {
	if !post.FrontMatterDecoded() {
		return nil
	}
	fm := post.FrontMatter

	var diags []Diagnostic
	date, dateErr := frontmatter.ParseDate(fm.Date)
	if fm.Date != "" && dateErr != nil {
		diags = append(diags, diag(post.Path, keyLine(post, "date"), "frontmatter/date", SeverityError,
			fmt.Sprintf("date: %v", dateErr)))
	}
	lastmod, lastmodErr := frontmatter.ParseDate(fm.Lastmod)
	if fm.Lastmod != "" && lastmodErr != nil {
		diags = append(diags, diag(post.Path, keyLine(post, "lastmod"), "frontmatter/date", SeverityError,
			fmt.Sprintf("lastmod: %v", lastmodErr)))
	}
	if dateErr == nil && lastmodErr == nil && lastmod.Before(date) {
		diags = append(diags, diag(post.Path, keyLine(post, "lastmod"), "frontmatter/date", SeverityWarning,
			fmt.Sprintf("lastmod %q predates date %q", fm.Lastmod, fm.Date)))
	}
	return diags
}

// unknownKeyRule reports keys outside the recognized front-matter schema.
type unknownKeyRule struct {
	extra map[string]bool
}

func (unknownKeyRule) ID() string { return "frontmatter/unknown-key" }

func (r unknownKeyRule) Check(post types.Post) []Diagnostic {
	if !post.FrontMatterDecoded() {
		return nil
	}

	var unknown []string
	for key := range post.FrontMatter.Raw {
		if !frontmatter.KnownKey(key) && !r.extra[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	diags := make([]Diagnostic, 0, len(unknown))
	for _, key := range unknown {
		diags = append(diags, diag(post.Path, keyLine(post, key), "frontmatter/unknown-key", SeverityWarning,
			fmt.Sprintf("unknown front-matter key %q", key)))
	}
	return diags
}

// descriptionRule reports a missing or overlong description.
type descriptionRule struct {
	limit int
}

func (descriptionRule) ID() string { return "frontmatter/description" }

func (r descriptionRule) Check(post types.Post) []Diagnostic {
	if !post.FrontMatterDecoded() {
		return nil
	}

	desc := strings.TrimSpace(post.FrontMatter.Description)
	if desc == "" {
		return []Diagnostic{diag(post.Path, 1, "frontmatter/description", SeverityWarning,
			"post has no description")}
	}
	if n := utf8.RuneCountInString(desc); n > r.limit {
		return []Diagnostic{diag(post.Path, keyLine(post, "description"), "frontmatter/description", SeverityWarning,
			fmt.Sprintf("description is %d characters (limit %d)", n, r.limit))}
	}
	return nil
}

// urlFormatRule reports explicit url values that deviate from the route
// conventions.
type urlFormatRule struct{}

func (urlFormatRule) ID() string { return "url/format" }

func (urlFormatRule) Check(post types.Post) []Diagnostic {
	if !post.FrontMatterDecoded() || post.FrontMatter.URL == "" {
		return nil
	}

	problems := permalink.Problems(post.FrontMatter.URL)
	diags := make([]Diagnostic, 0, len(problems))
	for _, problem := range problems {
		diags = append(diags, diag(post.Path, keyLine(post, "url"), "url/format", SeverityWarning,
			fmt.Sprintf("url %q %s", post.FrontMatter.URL, problem)))
	}
	return diags
}

// fenceUnclosedRule reports fenced code blocks still open at EOF.
type fenceUnclosedRule struct{}

func (fenceUnclosedRule) ID() string { return "fence/unclosed" }

func (fenceUnclosedRule) Check(post types.Post) []Diagnostic {
	var diags []Diagnostic
	for _, f := range markdown.Fences([]byte(post.Body)) {
		if !f.Closed {
			diags = append(diags, diag(post.Path, post.LineInFile(f.Line), "fence/unclosed", SeverityError,
				"code fence is opened but never closed"))
		}
	}
	return diags
}

// fenceLanguageRule reports fenced code blocks without a language hint.
type fenceLanguageRule struct{}

func (fenceLanguageRule) ID() string { return "fence/language" }

func (fenceLanguageRule) Check(post types.Post) []Diagnostic {
	var diags []Diagnostic
	for _, f := range markdown.Fences([]byte(post.Body)) {
		if f.Closed && f.Info == "" {
			diags = append(diags, diag(post.Path, post.LineInFile(f.Line), "fence/language", SeverityWarning,
				"fenced code block has no language hint"))
		}
	}
	return diags
}

// linkEmptyRule reports links with an empty destination.
type linkEmptyRule struct{}

func (linkEmptyRule) ID() string { return "link/empty" }

func (linkEmptyRule) Check(post types.Post) []Diagnostic {
	var diags []Diagnostic
	for _, link := range markdown.Scan([]byte(post.Body)).Links {
		if strings.TrimSpace(link.Destination) == "" {
			diags = append(diags, diag(post.Path, post.LineInFile(link.Line), "link/empty", SeverityWarning,
				"link has an empty destination"))
		}
	}
	return diags
}

// imageAltRule reports images without alt text.
type imageAltRule struct{}

func (imageAltRule) ID() string { return "image/alt" }

func (imageAltRule) Check(post types.Post) []Diagnostic {
	var diags []Diagnostic
	for _, img := range markdown.Scan([]byte(post.Body)).Images {
		if strings.TrimSpace(img.Alt) == "" {
			diags = append(diags, diag(post.Path, post.LineInFile(img.Line), "image/alt", SeverityWarning,
				fmt.Sprintf("image %q has no alt text", img.Destination)))
		}
	}
	return diags
}

// assetMissingRule reports root-relative asset references that exist under
// none of the static roots. Inert when no static roots are configured.
type assetMissingRule struct {
	staticDirs []string
}

func (assetMissingRule) ID() string { return "asset/missing" }

func (r assetMissingRule) Check(post types.Post) []Diagnostic {
	if len(r.staticDirs) == 0 {
		return nil
	}

	var diags []Diagnostic
	report := func(line int, target string) {
		diags = append(diags, diag(post.Path, line, "asset/missing", SeverityWarning,
			fmt.Sprintf("asset %q not found under the static roots", target)))
	}

	if post.FrontMatterDecoded() {
		fm := post.FrontMatter
		for _, img := range fm.Images {
			if rootRelative(img) && !staticFileExists(r.staticDirs, img) {
				report(keyLine(post, "images"), img)
			}
		}
		if rootRelative(fm.Thumbnail) && !staticFileExists(r.staticDirs, fm.Thumbnail) {
			report(keyLine(post, "thumbnail"), fm.Thumbnail)
		}
	}

	for _, img := range markdown.Scan([]byte(post.Body)).Images {
		if rootRelative(img.Destination) && !staticFileExists(r.staticDirs, img.Destination) {
			report(post.LineInFile(img.Line), img.Destination)
		}
	}
	return diags
}

// listDuplicateRule reports repeated entries in the term lists.
type listDuplicateRule struct{}

func (listDuplicateRule) ID() string { return "list/duplicate" }

func (listDuplicateRule) Check(post types.Post) []Diagnostic {
	if !post.FrontMatterDecoded() {
		return nil
	}

	lists := []struct {
		key    string
		label  string
		values []string
	}{
		{"tags", "tag", post.FrontMatter.Tags},
		{"categories", "category", post.FrontMatter.Categories},
		{"keywords", "keyword", post.FrontMatter.Keywords},
	}

	var diags []Diagnostic
	for _, list := range lists {
		seen := map[string]bool{}
		for _, value := range list.values {
			folded := strings.ToLower(strings.TrimSpace(value))
			if folded == "" {
				continue
			}
			if seen[folded] {
				diags = append(diags, diag(post.Path, keyLine(post, list.key), "list/duplicate", SeverityWarning,
					fmt.Sprintf("duplicate %s %q", list.label, value)))
				continue
			}
			seen[folded] = true
		}
	}
	return diags
}

// schemaRule validates the raw front matter against a user-supplied JSON
// Schema. The raw map is round-tripped through JSON first: the YAML decoder
// yields values (timestamps, integers) the schema library does not expect.
type schemaRule struct {
	schema *jsonschema.Schema
}

func (schemaRule) ID() string { return "frontmatter/schema" }

func (r schemaRule) Check(post types.Post) []Diagnostic {
	if !post.FrontMatterDecoded() {
		return nil
	}

	payload, err := json.Marshal(post.FrontMatter.Raw)
	if err != nil {
		return []Diagnostic{diag(post.Path, 1, "frontmatter/schema", SeverityError,
			fmt.Sprintf("front matter is not JSON-representable: %v", err))}
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return []Diagnostic{diag(post.Path, 1, "frontmatter/schema", SeverityError,
			fmt.Sprintf("front matter is not JSON-representable: %v", err))}
	}

	err = r.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Diagnostic{diag(post.Path, 1, "frontmatter/schema", SeverityError, err.Error())}
	}

	var diags []Diagnostic
	for _, leaf := range schemaLeaves(verr) {
		line := 1
		if seg := strings.SplitN(strings.TrimPrefix(leaf.location, "/"), "/", 2)[0]; seg != "" {
			line = keyLine(post, seg)
		}
		diags = append(diags, diag(post.Path, line, "frontmatter/schema", SeverityError, leaf.message))
	}
	return diags
}

type schemaLeaf struct {
	location string
	message  string
}

func schemaLeaves(err *jsonschema.ValidationError) []schemaLeaf {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		display := loc
		if display == "" {
			display = "/"
		}
		return []schemaLeaf{{location: loc, message: fmt.Sprintf("%s: %s", display, err.Message)}}
	}
	var leaves []schemaLeaf
	for _, cause := range err.Causes {
		leaves = append(leaves, schemaLeaves(cause)...)
	}
	return leaves
}

// urlDuplicateRule reports permalinks claimed by more than one post, on
// every claimant.
type urlDuplicateRule struct{}

func (urlDuplicateRule) ID() string { return "url/duplicate" }

func (urlDuplicateRule) CheckCorpus(c *corpus.Corpus) []Diagnostic {
	claimed := c.Permalinks()
	keys := make([]string, 0, len(claimed))
	for key := range claimed {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var diags []Diagnostic
	for _, key := range keys {
		paths := claimed[key]
		if len(paths) < 2 {
			continue
		}
		for _, path := range paths {
			others := make([]string, 0, len(paths)-1)
			for _, other := range paths {
				if other != path {
					others = append(others, other)
				}
			}
			line := 1
			if post, ok := c.Post(path); ok && post.FrontMatter.URL != "" {
				line = keyLine(post, "url")
			}
			diags = append(diags, diag(path, line, "url/duplicate", SeverityError,
				fmt.Sprintf("permalink %q is also claimed by %s", key, strings.Join(others, ", "))))
		}
	}
	return diags
}

// linkInternalRule reports root-relative links that resolve to no post
// permalink and no static file.
type linkInternalRule struct {
	staticDirs []string
}

func (linkInternalRule) ID() string { return "link/internal" }

func (r linkInternalRule) CheckCorpus(c *corpus.Corpus) []Diagnostic {
	var diags []Diagnostic
	for _, post := range c.Posts {
		for _, link := range markdown.Scan([]byte(post.Body)).Links {
			dest := strings.TrimSpace(link.Destination)
			if dest == "" {
				continue
			}
			parsed, err := url.Parse(dest)
			if err != nil {
				diags = append(diags, diag(post.Path, post.LineInFile(link.Line), "link/internal", SeverityError,
					fmt.Sprintf("malformed link destination %q", dest)))
				continue
			}
			// Only root-relative routes are checkable; external URLs,
			// fragments, and relative paths are not.
			if parsed.Scheme != "" || strings.HasPrefix(dest, "//") {
				continue
			}
			if parsed.Path == "" || !strings.HasPrefix(parsed.Path, "/") {
				continue
			}
			if c.ResolveLink(parsed.Path) {
				continue
			}
			if staticFileExists(r.staticDirs, parsed.Path) {
				continue
			}
			diags = append(diags, diag(post.Path, post.LineInFile(link.Line), "link/internal", SeverityError,
				fmt.Sprintf("internal link %q matches no post permalink or static file", dest)))
		}
	}
	return diags
}

func rootRelative(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}

func staticFileExists(dirs []string, target string) bool {
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}
	rel := filepath.FromSlash(strings.TrimPrefix(target, "/"))
	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			return true
		}
	}
	return false
}
