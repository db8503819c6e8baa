package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StyleID marks the injected stylesheet so it is added only once per page.
const StyleID = "search-highlight-style"

// Stylesheet styles highlight spans and result items.
const Stylesheet = `
.highlight {
  background-color: #ffeb3b;
  padding: 0 2px;
  border-radius: 2px;
  font-weight: bold;
}
.search-result-item {
  border-bottom: 1px solid #eee;
  padding: 15px 0;
}
.search-result-item:last-child {
  border-bottom: none;
}
.search-result-item h4 {
  margin-bottom: 8px;
}
.search-result-item h4 a {
  color: #007bff;
  text-decoration: none;
}
.search-result-item h4 a:hover {
  text-decoration: underline;
}
.page-url {
  color: #666;
  font-size: 14px;
  margin-top: 5px;
}
`

// StyleTag returns the <style> element for highlightClass.
func StyleTag(highlightClass string) string {
	css := Stylesheet
	if highlightClass != "" && highlightClass != "highlight" {
		css = strings.Replace(css, ".highlight {", "."+highlightClass+" {", 1)
	}
	return `<style id="` + StyleID + `">` + css + `</style>`
}

// InjectStyle adds the stylesheet to the <head> of markup unless an element
// with StyleID is already present. Pages without a <head> get one from the
// parser.
func InjectStyle(markup, highlightClass string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	if doc.Find("#"+StyleID).Length() > 0 {
		return markup, nil
	}

	doc.Find("head").First().AppendHtml(StyleTag(highlightClass))

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return out, nil
}
