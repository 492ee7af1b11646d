// Package permalink resolves the published route of each post.
package permalink

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/goliatone/go-slug"
)

// datePrefix is the date a post file name conventionally starts with.
var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[-_]`)

// Resolve returns a post's permalink: the explicit url front-matter value when
// set, otherwise a route derived from the file name.
func Resolve(explicit, filePath string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return Normalize(explicit), nil
	}
	return Derive(filePath)
}

// Derive builds a permalink from a post's path: the file base name without
// extension and without the conventional date prefix, slugified.
func Derive(filePath string) (string, error) {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = datePrefix.ReplaceAllString(base, "")

	s, err := slug.Normalize(base)
	if err != nil {
		return "", fmt.Errorf("derive permalink for %q: %w", filePath, err)
	}
	if s == "" {
		return "", fmt.Errorf("derive permalink for %q: empty slug", filePath)
	}
	return "/" + s + "/", nil
}

// Normalize canonicalizes a route for comparison: leading slash, cleaned
// segments, and a trailing slash unless the last segment names a file.
func Normalize(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	cleaned := path.Clean(u)
	if cleaned == "/" {
		return "/"
	}
	if !strings.Contains(path.Base(cleaned), ".") {
		cleaned += "/"
	}
	return cleaned
}

// Problems lists the format issues in an explicit url value, empty when the
// value is well formed.
func Problems(u string) []string {
	var problems []string
	if !strings.HasPrefix(u, "/") {
		problems = append(problems, "must be an absolute path starting with /")
	}
	if strings.ContainsAny(u, " \t") {
		problems = append(problems, "contains whitespace")
	}
	if strings.ToLower(u) != u {
		problems = append(problems, "contains uppercase characters")
	}
	if !strings.HasSuffix(u, "/") && !strings.Contains(path.Base(u), ".") {
		problems = append(problems, "missing trailing slash")
	}
	return problems
}

// Join prefixes a permalink with the site base URL for display.
func Join(baseURL, permalink string) string {
	if baseURL == "" {
		return permalink
	}
	return strings.TrimSuffix(baseURL, "/") + Normalize(permalink)
}
