package types

type (
	// TermCount pairs a front-matter term with its occurrence count.
	TermCount struct {
		Term  string `json:"term"`
		Count int    `json:"count"`
	}

	// YearCount pairs a publication year with the number of posts in it.
	YearCount struct {
		Year  int `json:"year"`
		Count int `json:"count"`
	}

	// LanguageCount pairs a fenced-code-block language hint with its count.
	// Blocks without a hint are tallied under an empty language.
	LanguageCount struct {
		Language string `json:"language"`
		Count    int    `json:"count"`
	}

	// CorpusStats aggregates inventory numbers across the corpus.
	CorpusStats struct {
		Posts          int             `json:"posts"`
		Words          int             `json:"words"`
		InternalLinks  int             `json:"internalLinks"`
		ExternalLinks  int             `json:"externalLinks"`
		CodeBlocks     int             `json:"codeBlocks"`
		Tags           []TermCount     `json:"tags,omitempty"`
		Categories     []TermCount     `json:"categories,omitempty"`
		PostsPerYear   []YearCount     `json:"postsPerYear,omitempty"`
		FenceLanguages []LanguageCount `json:"fenceLanguages,omitempty"`
	}
)
