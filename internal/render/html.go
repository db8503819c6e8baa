// Package render turns search results into the results panel markup and
// into Markdown, JSON and terminal output.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/f4ah6o/sitesearch-go/internal/search"
)

// Fixed UI strings of the results panel.
const (
	msgTooShort      = "اكتب على الأقل %d أحرف للبحث"
	msgSearching     = "جاري البحث..."
	msgNoResults     = "لم يتم العثور على نتائج لـ \"%s\""
	msgNoResultsHint = "حاول استخدام كلمات أخرى أو مصطلحات بحث مختلفة"
	msgError         = "حدث خطأ أثناء البحث. حاول مرة أخرى."
)

const panelTemplates = `
{{define "results"}}{{range .}}
<div class="search-result-item">
  <h4>
    <a href="{{.PageURL}}" onclick="closeSearch()">{{.Heading}}</a>
  </h4>
  <p>{{excerpt .Excerpt}}</p>
  <div class="page-url">
    <i class="fas fa-file-alt"></i> {{.PageTitle}}
  </div>
</div>{{end}}
{{end}}

{{define "no-results"}}
<div class="no-results">
  <i class="fas fa-search fa-2x mb-3"></i>
  <p>{{.Message}}</p>
  <p class="small">{{.Hint}}</p>
</div>
{{end}}

{{define "notice"}}<div class="{{.Class}}">{{.Message}}</div>{{end}}
`

// HTML renders panels of the search overlay.
type HTML struct {
	tmpl *template.Template
}

// NewHTML parses the panel templates.
func NewHTML() *HTML {
	tmpl := template.Must(template.New("panel").Funcs(template.FuncMap{
		// excerpts are produced escaped by search.Highlighter
		"excerpt": func(s string) template.HTML { return template.HTML(s) },
	}).Parse(panelTemplates))
	return &HTML{tmpl: tmpl}
}

// Results renders the result list, or the no-results panel when empty.
func (h *HTML) Results(query string, results []search.Result) (template.HTML, error) {
	if len(results) == 0 {
		return h.NoResults(query)
	}
	return h.exec("results", results)
}

// NoResults renders the empty state naming the query.
func (h *HTML) NoResults(query string) (template.HTML, error) {
	return h.exec("no-results", struct{ Message, Hint string }{
		Message: fmt.Sprintf(msgNoResults, query),
		Hint:    msgNoResultsHint,
	})
}

// TooShort renders the "type more characters" notice.
func (h *HTML) TooShort(minChars int) template.HTML {
	return h.notice("no-results", fmt.Sprintf(msgTooShort, minChars))
}

// Searching renders the progress notice.
func (h *HTML) Searching() template.HTML {
	return h.notice("text-center p-3", msgSearching)
}

// Error renders the generic failure notice. No partial results are shown.
func (h *HTML) Error() template.HTML {
	return h.notice("no-results", msgError)
}

func (h *HTML) notice(class, message string) template.HTML {
	out, err := h.exec("notice", struct{ Class, Message string }{class, message})
	if err != nil {
		return template.HTML(template.HTMLEscapeString(message))
	}
	return out
}

func (h *HTML) exec(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
