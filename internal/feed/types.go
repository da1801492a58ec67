package feed

import "time"

// Category is one row of the external configuration table. The Sources cell
// is free text and may hold several URLs; Keywords is an optional
// comma-separated filter list.
type Category struct {
	Name     string `json:"category"`
	Sources  string `json:"feed_sources"`
	Keywords string `json:"keywords"`
}

// Article is the canonical 8-field record both storage backends agree on.
// PublishedDate is display metadata; ImportDate is the recency key used for
// ordering and digest windowing.
type Article struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	PublishedDate string `json:"date"`
	Summary       string `json:"summary"`
	Category      string `json:"category"`
	Paywall       bool   `json:"paywall"`
	ImportDate    string `json:"import_date"`
}

// Entry is one item from a parsed feed, prior to becoming a stored Article.
type Entry struct {
	Title     string
	Link      string
	Snippet   string
	Published *time.Time
	Updated   *time.Time
}
