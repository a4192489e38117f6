package domain

// ToolParam describes one parameter of a tool's input map.
type ToolParam struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ToolSpec is a catalog entry rendered into the system prompt.
type ToolSpec struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ToolParam `json:"parameters,omitempty"`
	Required    []string             `json:"required,omitempty"`
}

// SearchResult is one document returned by the web search provider.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// ScrapedPage is the main content extracted from a single URL.
type ScrapedPage struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}
