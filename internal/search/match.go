package search

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/f4ah6o/sitesearch-go/internal/config"
)

const headingSelector = "h1, h2, h3, h4, h5, h6"

// Matcher scans a filtered document for elements containing a term.
type Matcher struct {
	tags           []string
	minText        int
	maxText        int
	excerptLength  int
	highlightClass string
}

// NewMatcher builds a Matcher from cfg.
func NewMatcher(cfg *config.Config) *Matcher {
	return &Matcher{
		tags:           append([]string(nil), cfg.SearchTags...),
		minText:        cfg.MinTextLength,
		maxText:        cfg.MaxTextLength,
		excerptLength:  cfg.ExcerptLength,
		highlightClass: cfg.HighlightClass,
	}
}

// Match returns one Result per matching element, tag by tag in configured
// order and in document order within a tag.
//
// Candidate text must be longer than the minimum text length and, when a
// maximum is configured, no longer than it. Matching is a case-insensitive
// substring test.
func (m *Matcher) Match(doc *goquery.Document, page config.Page, term string) []Result {
	lowerTerm := strings.ToLower(term)
	hl := NewHighlighter(term, m.highlightClass)

	var results []Result
	for _, tag := range m.tags {
		doc.Find(tag).Each(func(_ int, el *goquery.Selection) {
			text := strings.TrimSpace(el.Text())
			n := utf8.RuneCountInString(text)
			if n <= m.minText || (m.maxText > 0 && n > m.maxText) {
				return
			}
			if !strings.Contains(strings.ToLower(text), lowerTerm) {
				return
			}

			results = append(results, Result{
				PageTitle: page.Title,
				PageURL:   page.URL,
				Heading:   headingFor(el, page.Title),
				Excerpt:   hl.Excerpt(text, m.excerptLength),
				FullText:  text,
				Element:   strings.ToUpper(goquery.NodeName(el)),
			})
		})
	}
	return results
}

// headingFor names the section an element belongs to: the element itself or
// its nearest heading ancestor, else the closest heading before it in
// document order, else the page title.
func headingFor(el *goquery.Selection, pageTitle string) string {
	if h := el.Closest(headingSelector); h.Length() > 0 {
		if text := strings.TrimSpace(h.Text()); text != "" {
			return text
		}
	}
	if len(el.Nodes) > 0 {
		if h := precedingHeading(el.Nodes[0]); h != nil {
			if text := strings.TrimSpace(goquery.NewDocumentFromNode(h).Text()); text != "" {
				return text
			}
		}
	}
	return pageTitle
}

func precedingHeading(n *html.Node) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if h := lastHeading(s); h != nil {
				return h
			}
		}
	}
	return nil
}

// lastHeading returns the last heading in n's subtree in document order.
func lastHeading(n *html.Node) *html.Node {
	if n.Type != html.ElementNode {
		return nil
	}
	if isHeading(n) {
		return n
	}
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if h := lastHeading(c); h != nil {
			return h
		}
	}
	return nil
}

func isHeading(n *html.Node) bool {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}
