package vo

type Markdown string

type ContentSummary struct {
	Title       string   `json:"title"`       // Page title
	Description string   `json:"description"` // Meta description or excerpt
	Keywords    []string `json:"keywords"`    // Keywords
}

type Author struct {
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

type PostSummary struct {
	ID         string   `json:"id"`   // Normalized page id
	Slug       string   `json:"slug"` // Lookup key for getPost
	Title      string   `json:"title"`
	Date       string   `json:"date"` // YYYY-MM-DD
	Excerpt    string   `json:"excerpt"`
	Cover      string   `json:"cover,omitempty"`
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	Author     Author   `json:"author"`
	LastEdited string   `json:"lastEdited,omitempty"`
	Source     string   `json:"source,omitempty"` // Root page the post was found under
}

type Post struct {
	PostSummary
	Markdown Markdown `json:"markdown"` // Full content in markdown
}

type Analysis struct {
	PageID      string         `json:"pageId"`
	Title       string         `json:"title"`
	BlockCount  int            `json:"blockCount"`
	BlockTypes  map[string]int `json:"blockTypes"`
	OtherTables map[string]int `json:"otherTables,omitempty"`
	Collection  string         `json:"collection,omitempty"`
	Posts       int            `json:"posts"`
}
