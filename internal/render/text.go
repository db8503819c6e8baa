package render

import (
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"io"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/fatih/color"

	"github.com/f4ah6o/sitesearch-go/internal/search"
)

var (
	colorHeader  = color.New(color.FgHiMagenta, color.Bold)
	colorBold    = color.New(color.Bold)
	colorCyan    = color.New(color.FgCyan)
	colorMatch   = color.New(color.FgBlack, color.BgYellow)
	colorWarning = color.New(color.FgYellow)

	spanRe       = regexp.MustCompile(`<span class="[^"]*">(.*?)</span>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Terminal prints results for a terminal, with matches highlighted in colour.
func Terminal(w io.Writer, resp *search.Response) {
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "No matches found for '%s'.\n", resp.Query)
		reportFailed(w, resp)
		return
	}

	colorHeader.Fprintf(w, "\nSearch Results for '%s'\n", resp.Query)
	fmt.Fprintf(w, "Found %d matches in %d pages.\n\n", len(resp.Results), resp.Searched)

	for i, r := range resp.Results {
		colorBold.Fprintf(w, "%d. %s\n", i+1, r.Heading)
		fmt.Fprintf(w, "   Page: %s (%s) | <%s>\n", r.PageTitle, r.PageURL, strings.ToLower(r.Element))
		colorCyan.Fprintln(w, "   "+strings.Repeat("-", 40))
		fmt.Fprintf(w, "   %s\n\n", terminalExcerpt(r.Excerpt))
	}
	reportFailed(w, resp)
}

func reportFailed(w io.Writer, resp *search.Response) {
	for _, u := range resp.Failed {
		colorWarning.Fprintf(w, "Warning: could not load %s\n", u)
	}
}

// terminalExcerpt swaps highlight spans for colour and unescapes the rest.
func terminalExcerpt(excerpt string) string {
	var b strings.Builder
	last := 0
	for _, loc := range spanRe.FindAllStringSubmatchIndex(excerpt, -1) {
		b.WriteString(html.UnescapeString(excerpt[last:loc[0]]))
		b.WriteString(colorMatch.Sprint(html.UnescapeString(excerpt[loc[2]:loc[3]])))
		last = loc[1]
	}
	b.WriteString(html.UnescapeString(excerpt[last:]))
	return b.String()
}

// JSON writes the response as indented JSON.
func JSON(w io.Writer, resp *search.Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// Markdown converts a rendered panel to Markdown. Highlight spans become
// bold text.
type Markdown struct {
	converter *md.Converter
}

// NewMarkdown creates a Markdown renderer.
func NewMarkdown() *Markdown {
	return &Markdown{converter: md.NewConverter("", true, nil)}
}

// Convert renders panel markup as Markdown.
func (m *Markdown) Convert(panel template.HTML) (string, error) {
	marked := spanRe.ReplaceAllString(string(panel), "<strong>$1</strong>")
	out, err := m.converter.ConvertString(marked)
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(out, "\n\n")), nil
}
