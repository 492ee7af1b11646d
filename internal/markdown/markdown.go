// Package markdown analyzes post bodies. It extracts links, images,
// headings, and word counts from the Markdown AST, and scans fenced code
// blocks line by line so unterminated fences are still visible (the AST
// parser silently closes them at EOF).
package markdown

import (
	"bufio"
	"bytes"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Link is a link found in a post body.
type Link struct {
	Destination string
	Text        string
	Line        int
}

// Image is an image reference found in a post body.
type Image struct {
	Destination string
	Alt         string
	Line        int
}

// Heading is a section heading found in a post body.
type Heading struct {
	Level int
	Text  string
	Line  int
}

// Document is the analyzed view of a post body.
type Document struct {
	Links    []Link
	Images   []Image
	Headings []Heading
	Words    int
}

// Scan parses source as Markdown and collects the structural elements lint
// and stats care about. Line numbers are 1-based within source.
func Scan(source []byte) *Document {
	doc := &Document{}
	idx := newLineIndex(source)
	root := md.Parser().Parse(text.NewReader(source))

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			doc.Links = append(doc.Links, Link{
				Destination: string(v.Destination),
				Text:        string(v.Text(source)),
				Line:        idx.lineAt(nodeOffset(v)),
			})
		case *ast.AutoLink:
			doc.Links = append(doc.Links, Link{
				Destination: string(v.URL(source)),
				Text:        string(v.Label(source)),
				Line:        idx.lineAt(nodeOffset(v)),
			})
		case *ast.Image:
			doc.Images = append(doc.Images, Image{
				Destination: string(v.Destination),
				Alt:         string(v.Text(source)),
				Line:        idx.lineAt(nodeOffset(v)),
			})
			// Alt text is not prose.
			return ast.WalkSkipChildren, nil
		case *ast.Heading:
			h := Heading{Level: v.Level, Text: string(v.Text(source))}
			if v.Lines().Len() > 0 {
				h.Line = idx.lineAt(v.Lines().At(0).Start)
			}
			doc.Headings = append(doc.Headings, h)
		case *ast.CodeSpan:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			doc.Words += len(strings.Fields(string(v.Segment.Value(source))))
		}
		return ast.WalkContinue, nil
	})

	return doc
}

// nodeOffset returns a byte offset locating n in the source: the start of its
// first text descendant, or the start of the nearest enclosing block when the
// node has no text of its own.
func nodeOffset(n ast.Node) int {
	if off := textOffset(n); off >= 0 {
		return off
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == ast.TypeBlock && p.Lines().Len() > 0 {
			return p.Lines().At(0).Start
		}
	}
	return 0
}

func textOffset(n ast.Node) int {
	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Start
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if off := textOffset(c); off >= 0 {
			return off
		}
	}
	return -1
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(source []byte) lineIndex {
	idx := lineIndex{0}
	for i, b := range source {
		if b == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (x lineIndex) lineAt(offset int) int {
	return sort.Search(len(x), func(i int) bool { return x[i] > offset })
}

// Fence is a fenced code block found by the line scanner.
type Fence struct {
	// Line is the 1-based line of the opening fence.
	Line int

	// Marker is the fence character, '`' or '~'.
	Marker byte

	// Length is the number of marker characters in the opening fence.
	Length int

	// Info is the first word of the info string, usually the language.
	Info string

	// Closed reports whether a matching closing fence was found. CloseLine
	// is its line when Closed is true.
	Closed    bool
	CloseLine int
}

// Fences scans source line by line and returns every fenced code block in
// order of appearance. A closing fence must use the same marker with at
// least the opening length. Blocks still open at EOF are reported with
// Closed set to false.
func Fences(source []byte) []Fence {
	var fences []Fence
	openIdx := -1
	lineNo := 0

	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		trimmed, indent := trimIndent(scanner.Text())
		marker, length, rest := fenceMarker(trimmed)

		if openIdx >= 0 {
			f := &fences[openIdx]
			if indent <= 3 && marker == f.Marker && length >= f.Length && strings.TrimSpace(rest) == "" {
				f.Closed = true
				f.CloseLine = lineNo
				openIdx = -1
			}
			continue
		}

		if marker == 0 || indent > 3 {
			continue
		}
		// An info string containing a backtick means inline code, not a fence.
		if marker == '`' && strings.ContainsRune(rest, '`') {
			continue
		}

		info := ""
		if fields := strings.Fields(rest); len(fields) > 0 {
			info = fields[0]
		}
		fences = append(fences, Fence{Line: lineNo, Marker: marker, Length: length, Info: info})
		openIdx = len(fences) - 1
	}

	return fences
}

func trimIndent(line string) (string, int) {
	indent := 0
	for indent < len(line) && line[indent] == ' ' {
		indent++
	}
	return line[indent:], indent
}

func fenceMarker(s string) (marker byte, length int, rest string) {
	if s == "" || (s[0] != '`' && s[0] != '~') {
		return 0, 0, s
	}
	c := s[0]
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	if n < 3 {
		return 0, 0, s
	}
	return c, n, s[n:]
}
