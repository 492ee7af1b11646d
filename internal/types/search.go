package types

type (
	// SearchParams contains parameters for searching post content.
	SearchParams struct {
		Query           string `json:"query"`
		UseRegex        bool   `json:"useRegex,omitempty"`
		CaseSensitive   bool   `json:"caseSensitive,omitempty"`
		FrontMatterOnly bool   `json:"frontmatterOnly,omitempty"`
		ContextLines    int    `json:"contextLines,omitempty"`
		Limit           int    `json:"limit,omitempty"`
		Offset          int    `json:"offset,omitempty"`
	}

	// SearchMatch represents a single match within a post.
	SearchMatch struct {
		Line    int    `json:"line"`
		Context string `json:"context"`
		IsTerm  bool   `json:"isTerm,omitempty"`
	}

	// SearchResult represents search results for a single post.
	SearchResult struct {
		Path    string        `json:"path"`
		Title   string        `json:"title,omitempty"`
		Matches []SearchMatch `json:"matches"`
	}
)
