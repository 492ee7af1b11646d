// Package pathfilter decides which files in a corpus count as posts.
package pathfilter

import (
	"regexp"
	"strings"

	"github.com/postlint/postlint/internal/types"
)

// defaultIgnored covers version control, generator output, and OS litter.
var defaultIgnored = []string{
	".git/**",
	".github/**",
	"_site/**",
	"public/**",
	"node_modules/**",
	".DS_Store",
	"Thumbs.db",
}

// defaultExtensions are the file extensions treated as posts.
var defaultExtensions = []string{".md", ".markdown"}

// Filter matches corpus-relative paths against ignore patterns and the
// allowed post extensions.
type Filter struct {
	ignored    []*regexp.Regexp
	extensions []string
}

// New creates a Filter from the built-in defaults plus the patterns and
// extensions in config. Patterns that do not compile are dropped.
func New(config *types.PathFilterConfig) *Filter {
	patterns := append([]string{}, defaultIgnored...)
	extensions := append([]string{}, defaultExtensions...)
	if config != nil {
		patterns = append(patterns, config.IgnoredPatterns...)
		extensions = append(extensions, config.AllowedExtensions...)
	}

	f := &Filter{extensions: extensions}
	for _, pattern := range patterns {
		if re, err := compileGlob(pattern); err == nil {
			f.ignored = append(f.ignored, re)
		}
	}
	return f
}

// compileGlob converts a glob pattern to a regexp: ** matches anything,
// * matches within one path segment, ? matches a single character.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*\*`, ".*")
	quoted = strings.ReplaceAll(quoted, `\*`, "[^/]*")
	quoted = strings.ReplaceAll(quoted, `\?`, "[^/]")
	return regexp.Compile("^" + quoted + "$")
}

// IsAllowed reports whether a file path is a post: not ignored, and carrying
// an allowed extension. The extension check is case-insensitive.
func (f *Filter) IsAllowed(path string) bool {
	path = strings.ReplaceAll(path, "\\", "/")
	if f.matchIgnored(path) {
		return false
	}

	lower := strings.ToLower(path)
	for _, ext := range f.extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory and everything under it is ignored.
func (f *Filter) SkipDir(path string) bool {
	path = strings.ReplaceAll(path, "\\", "/")
	return f.matchIgnored(path) || f.matchIgnored(path+"/")
}

func (f *Filter) matchIgnored(path string) bool {
	for _, re := range f.ignored {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Filter returns only the paths allowed as posts, preserving order.
func (f *Filter) Filter(paths []string) []string {
	var allowed []string
	for _, path := range paths {
		if f.IsAllowed(path) {
			allowed = append(allowed, path)
		}
	}
	return allowed
}
