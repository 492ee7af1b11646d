// Package types defines the data structures shared across postlint's services.
package types

import "time"

type (
	// FrontMatter is the typed view of a post's YAML front matter. The fields
	// mirror the keys a static-site generator consumes; anything else the
	// author wrote lands in Custom.
	FrontMatter struct {
		Layout      string         `json:"layout,omitempty"`
		Title       string         `json:"title,omitempty"`
		Description string         `json:"description,omitempty"`
		Date        string         `json:"date,omitempty"`
		Lastmod     string         `json:"lastmod,omitempty"`
		Images      []string       `json:"images,omitempty"`
		Thumbnail   string         `json:"thumbnail,omitempty"`
		Tags        []string       `json:"tags,omitempty"`
		Categories  []string       `json:"categories,omitempty"`
		Keywords    []string       `json:"keywords,omitempty"`
		URL         string         `json:"url,omitempty"`
		Custom      map[string]any `json:"custom,omitempty"`

		// Raw preserves every key/value pair as decoded, for schema
		// validation and MCP payloads.
		Raw map[string]any `json:"-"`
	}

	// Post is one Markdown file in the corpus.
	Post struct {
		// Path is the corpus-relative, slash-separated file path.
		Path string `json:"path"`

		FrontMatter FrontMatter `json:"frontmatter"`

		// Body is the Markdown text after the closing front-matter delimiter.
		Body string `json:"body"`

		// Raw is the original file content, front matter included.
		Raw string `json:"-"`

		// BodyLine is the 1-based line on which Body starts within Raw.
		// Diagnostics for body constructs add it as an offset.
		BodyLine int `json:"-"`

		// HasFrontMatter reports whether a front-matter block was found at all.
		HasFrontMatter bool `json:"hasFrontmatter"`

		// Permalink is the resolved route for the post: the url front-matter
		// field when present, otherwise derived from the file name.
		Permalink string `json:"permalink"`

		Size     int64     `json:"size"`
		Modified time.Time `json:"modified"`
		Checksum []byte    `json:"-"`
	}
)

// FrontMatterDecoded reports whether the post's front matter was present,
// terminated, and decodable. Rules that read typed fields check this first.
func (p Post) FrontMatterDecoded() bool {
	return p.HasFrontMatter && p.FrontMatter.Raw != nil
}

// LineInFile maps a 1-based line within Body to a line within the file.
func (p Post) LineInFile(line int) int {
	if p.BodyLine <= 0 {
		return line
	}
	return p.BodyLine + line - 1
}

// Terms returns the post's front-matter terms of the given kind
// ("tag", "category", or "keyword").
func (p Post) Terms(kind string) []string {
	switch kind {
	case TermTag:
		return p.FrontMatter.Tags
	case TermCategory:
		return p.FrontMatter.Categories
	case TermKeyword:
		return p.FrontMatter.Keywords
	}
	return nil
}

// Term kinds recognized across the catalog and the term listing operations.
const (
	TermTag      = "tag"
	TermCategory = "category"
	TermKeyword  = "keyword"
)
