package search

import (
	"context"
	"errors"
)

// ErrQueryTooShort is returned for queries below the configured minimum
// length. No page is fetched in that case.
var ErrQueryTooShort = errors.New("query too short")

// Result is a single matching element.
type Result struct {
	PageTitle string `json:"pageTitle"`
	PageURL   string `json:"pageUrl"`
	Heading   string `json:"heading"`
	// Excerpt is HTML: escaped text with the query wrapped in highlight spans.
	Excerpt  string `json:"excerpt"`
	FullText string `json:"fullText"`
	Element  string `json:"element"`
}

// Response is the outcome of one search.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	// Searched counts pages that were fetched and scanned.
	Searched int `json:"searched"`
	// Failed lists page URLs that could not be fetched or parsed.
	Failed []string `json:"failed,omitempty"`
}

// PageSource retrieves page markup. *fetcher.Fetcher implements it.
type PageSource interface {
	Get(ctx context.Context, url string) (string, error)
}
