package search

import (
	"html"
	"regexp"
	"strings"
)

// Ellipsis is appended to truncated excerpts.
const Ellipsis = "..."

// Truncate returns the first limit characters of text and whether anything
// was cut. Characters are Unicode code points.
func Truncate(text string, limit int) (string, bool) {
	if limit < 0 {
		return text, false
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i], true
		}
		n++
	}
	return text, false
}

// Highlighter wraps every case-insensitive occurrence of a term in a span.
type Highlighter struct {
	re    *regexp.Regexp
	open  string
	close string
}

// NewHighlighter builds a Highlighter for term. The term is matched
// literally: regexp metacharacters in user input carry no meaning.
func NewHighlighter(term, class string) *Highlighter {
	h := &Highlighter{
		open:  `<span class="` + html.EscapeString(class) + `">`,
		close: `</span>`,
	}
	if term != "" {
		h.re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
	}
	return h
}

// Apply returns text as HTML with each occurrence highlighted. Matched text
// keeps the casing found in text.
func (h *Highlighter) Apply(text string) string {
	if h.re == nil {
		return html.EscapeString(text)
	}

	var b strings.Builder
	last := 0
	for _, loc := range h.re.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		b.WriteString(h.open)
		b.WriteString(html.EscapeString(text[loc[0]:loc[1]]))
		b.WriteString(h.close)
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

// Excerpt cuts text to limit characters, highlights the window and appends
// Ellipsis if the text was longer.
func (h *Highlighter) Excerpt(text string, limit int) string {
	window, cut := Truncate(text, limit)
	out := h.Apply(window)
	if cut {
		out += Ellipsis
	}
	return out
}
