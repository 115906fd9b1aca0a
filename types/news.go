package types

// NewsItem is one entry of a bounded, ordered news feed for a place.
type NewsItem struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Source string `json:"source"`
	Date   string `json:"date"`
}
