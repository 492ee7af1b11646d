// Package frontmatter handles YAML front-matter parsing for blog posts.
package frontmatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/postlint/postlint/internal/types"
)

// Block is the result of structurally scanning a post for a front-matter
// block. It reports the three shapes lint needs to tell apart: no block at
// all, an opening delimiter that is never closed, and a well-formed block.
type Block struct {
	// Found reports whether the content opens with a front-matter delimiter.
	Found bool

	// Terminated reports whether the closing delimiter was present. Only
	// meaningful when Found is true.
	Terminated bool

	// Raw is the YAML text between the delimiters, without them.
	Raw string

	// Body is the Markdown content after the closing delimiter. When no
	// block was found, Body is the whole content.
	Body string

	// BodyLine is the 1-based line within the original content on which
	// Body starts.
	BodyLine int
}

// Split locates the front-matter block in a post's content. It never fails:
// malformed structure is reported through the Found/Terminated flags so lint
// rules can attach precise diagnostics.
func Split(content string) Block {
	if content == "---" {
		return Block{Found: true}
	}
	if !strings.HasPrefix(content, "---\n") {
		return Block{Body: content, BodyLine: 1}
	}

	// Find the closing delimiter.
	endIndex := strings.Index(content[4:], "\n---\n")
	if endIndex == -1 {
		// A file may end with the closing delimiter and no trailing newline.
		if strings.HasSuffix(content, "\n---") {
			return Block{
				Found:      true,
				Terminated: true,
				Raw:        content[4 : len(content)-4],
				BodyLine:   strings.Count(content, "\n") + 2,
			}
		}
		return Block{Found: true, Raw: content[4:]}
	}

	bodyStart := endIndex + 4 + 5 // +5 for "\n---\n"
	return Block{
		Found:      true,
		Terminated: true,
		Raw:        content[4 : endIndex+4],
		Body:       content[bodyStart:],
		BodyLine:   strings.Count(content[:bodyStart], "\n") + 1,
	}
}

// Handler decodes front matter into the typed schema.
type Handler struct {
	formats []*frontmatter.Format
}

// New creates a Handler restricted to YAML front matter. The corpus uses
// `---` delimited YAML exclusively; TOML and JSON fences are not recognized.
func New() *Handler {
	return &Handler{
		formats: []*frontmatter.Format{
			frontmatter.NewFormat("---", "---", yaml.Unmarshal),
		},
	}
}

// envelope is the decode target: explicit fields for the recognized keys,
// everything else inlined into Custom.
type envelope struct {
	Layout      string         `yaml:"layout"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Date        string         `yaml:"date"`
	Lastmod     string         `yaml:"lastmod"`
	Images      []string       `yaml:"images"`
	Thumbnail   string         `yaml:"thumbnail"`
	Tags        []string       `yaml:"tags"`
	Categories  []string       `yaml:"categories"`
	Keywords    []string       `yaml:"keywords"`
	URL         string         `yaml:"url"`
	Custom      map[string]any `yaml:",inline"`
}

// Decode parses content's front matter into the typed schema and returns the
// remaining Markdown body. Content without a front-matter block yields a zero
// FrontMatter and the full content as body.
func (h *Handler) Decode(content string) (types.FrontMatter, string, error) {
	var env envelope
	body, err := frontmatter.Parse(strings.NewReader(content), &env, h.formats...)
	if err != nil {
		return types.FrontMatter{}, "", fmt.Errorf("decode frontmatter: %w", err)
	}

	fm := types.FrontMatter{
		Layout:      env.Layout,
		Title:       env.Title,
		Description: env.Description,
		Date:        env.Date,
		Lastmod:     env.Lastmod,
		Images:      env.Images,
		Thumbnail:   env.Thumbnail,
		Tags:        env.Tags,
		Categories:  env.Categories,
		Keywords:    env.Keywords,
		URL:         env.URL,
		Custom:      env.Custom,
	}

	if blk := Split(content); blk.Found && blk.Terminated {
		raw, rawErr := DecodeRaw(blk.Raw)
		if rawErr != nil {
			return types.FrontMatter{}, "", rawErr
		}
		fm.Raw = raw
	}

	return fm, string(body), nil
}

// DecodeRaw decodes a front-matter block into a generic map. The returned
// error is yaml.v3's own, which carries the offending line number relative to
// the block.
func DecodeRaw(block string) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// knownKeys are the front-matter keys the published site consumes.
var knownKeys = map[string]struct{}{
	"layout":      {},
	"title":       {},
	"description": {},
	"date":        {},
	"lastmod":     {},
	"images":      {},
	"thumbnail":   {},
	"tags":        {},
	"categories":  {},
	"keywords":    {},
	"url":         {},
}

// KnownKey reports whether key belongs to the recognized front-matter schema.
func KnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}

// dateLayouts are the timestamp shapes static-site generators accept in
// front matter, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a front-matter date value.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", value)
}

// ValidateRequired checks that the named front-matter keys carry non-empty
// values. The returned error is a validation.Errors map keyed by front-matter
// key name.
func ValidateRequired(fm *types.FrontMatter, required []string) error {
	errs := validation.Errors{}
	for _, key := range required {
		if err := validation.Validate(keyValue(fm, key), validation.Required); err != nil {
			errs[key] = err
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// keyValue returns the value a front-matter key currently holds.
func keyValue(fm *types.FrontMatter, key string) any {
	switch key {
	case "layout":
		return fm.Layout
	case "title":
		return fm.Title
	case "description":
		return fm.Description
	case "date":
		return fm.Date
	case "lastmod":
		return fm.Lastmod
	case "images":
		return fm.Images
	case "thumbnail":
		return fm.Thumbnail
	case "tags":
		return fm.Tags
	case "categories":
		return fm.Categories
	case "keywords":
		return fm.Keywords
	case "url":
		return fm.URL
	default:
		return fm.Custom[key]
	}
}
