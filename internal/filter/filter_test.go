package filter

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html><head><title>Bachelor of Nursing</title><style>.x{}</style></head>
<body>
  <div class="topbar"><p>Call us about nursing</p></div>
  <nav><a href="/">Nursing home</a></nav>
  <header><h1>College of Nursing</h1></header>
  <div class="site-Footer-links"><p>Nursing footer link</p></div>
  <ul class="dropdown-menu"><li>Nursing programmes</li></ul>
  <main>
    <h2>Admissions</h2>
    <p>Apply for the Bachelor of Nursing programme today.</p>
    <script>var nursing = true;</script>
  </main>
  <footer><p class="copyright">Nursing college 2024</p></footer>
</body></html>`

func parse(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func defaultFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := New(
		[]string{"header", "nav", "footer", ".topbar", "[class*='footer']"},
		[]string{"topbar", "navbar", "footer", "copyright", "menu", "header"},
	)
	require.NoError(t, err)
	return f
}

func TestApplyRemovesExcludedRegions(t *testing.T) {
	doc := parse(t, page)
	out := defaultFilter(t).Apply(doc)

	text := out.Find("body").Text()
	assert.Contains(t, text, "Apply for the Bachelor of Nursing programme today.")
	assert.Contains(t, text, "Admissions")

	for _, gone := range []string{
		"Call us about nursing",
		"Nursing home",
		"College of Nursing",
		"Nursing footer link",
		"Nursing programmes",
		"Nursing college 2024",
		"var nursing",
	} {
		assert.NotContains(t, text, gone)
	}
	assert.Equal(t, 0, out.Find("script, style").Length())
}

func TestApplyLeavesInputUntouched(t *testing.T) {
	doc := parse(t, page)
	before, err := doc.Html()
	require.NoError(t, err)

	defaultFilter(t).Apply(doc)

	after, err := doc.Html()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, doc.Find("nav").Length())
}

func TestClassTokenRule(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   bool
	}{
		{"exact token", `<div class="menu">x</div>`, true},
		{"substring any case", `<div class="Main-NavBar">x</div>`, true},
		{"multiple classes", `<div class="row site-copyright">x</div>`, true},
		{"unrelated class", `<div class="content">x</div>`, false},
		{"no class", `<div id="menu">x</div>`, false},
	}

	rule := ClassTokenRule("topbar", "navbar", "footer", "copyright", "menu", "header")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.markup)
			node := doc.Find("div").Nodes[0]
			assert.Equal(t, tt.want, rule.Excludes(node))
		})
	}
}

func TestPositionalSelectorSeesOriginalTree(t *testing.T) {
	f, err := New([]string{"li:first-child"}, nil)
	require.NoError(t, err)

	out := f.Apply(parse(t, `<ul><li>one</li><li>two</li><li>three</li></ul>`))
	var items []string
	out.Find("li").Each(func(_ int, s *goquery.Selection) { items = append(items, s.Text()) })

	// "two" becomes the first child only after removal and must survive
	assert.Equal(t, []string{"two", "three"}, items)
}

func TestNewRejectsInvalidSelector(t *testing.T) {
	_, err := New([]string{"[class*="}, nil)
	assert.Error(t, err)
}

func TestRulesOrder(t *testing.T) {
	f, err := New([]string{".topbar"}, []string{"menu"})
	require.NoError(t, err)

	rules := f.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, "selector "+StripSelector, rules[0].String())
	assert.Equal(t, "selector .topbar", rules[1].String())
	assert.Equal(t, "class contains menu", rules[2].String())
}
