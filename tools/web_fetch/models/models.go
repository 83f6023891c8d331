package models

// Page is the rendered content of one fetched URL. Text is truncated by the
// fetcher to bound memory and downstream prompt size.
type Page struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Text     string `json:"raw_text"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}
