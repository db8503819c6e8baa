package discover

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f4ah6o/sitesearch-go/internal/config"
	"github.com/f4ah6o/sitesearch-go/internal/fetcher"
)

var sitePages = map[string]string{
	"/": `<html><head><title>الرئيسية</title></head><body>
		<a href="/ar/about.html">عن الكلية</a>
		<a href="/en/about.html">About</a>
		<a href="/style.css">css</a>
		<a href="https://other.example/x.html">elsewhere</a>
		<a href="programmes.html#top">Programmes</a>
		<a href="mailto:info@college.example">mail</a>
	</body></html>`,
	"/en/about.html": `<html><head><title>About</title></head><body><a href="/">home</a></body></html>`,
	"/ar/about.html": `<html><head><title>عن الكلية</title></head><body></body></html>`,
	"/programmes.html": `<html><body><h1>  Academic
		Programmes </h1><a href="/deep.html">deep</a><a href="/missing.html">gone</a></body></html>`,
	"/deep.html":   `<html><head><title>Deep</title></head><body><a href="/deeper.html">deeper</a></body></html>`,
	"/deeper.html": `<html><head><title>Deeper</title></head></html>`,
}

func newSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestDiscover(t *testing.T) {
	srv := newSite(t, sitePages)
	c := New(fetcher.New(fetcher.Options{Logger: quietLogger()}), Options{
		MaxDepth: 2,
		Logger:   quietLogger(),
	})

	pages, err := c.Discover(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, []config.Page{
		{URL: srv.URL + "/", Title: "الرئيسية"},
		{URL: srv.URL + "/ar/about.html", Title: "عن الكلية"},
		{URL: srv.URL + "/programmes.html", Title: "Academic Programmes"},
		{URL: srv.URL + "/deep.html", Title: "Deep"},
	}, pages)
}

func TestDiscoverPreferredLocale(t *testing.T) {
	srv := newSite(t, sitePages)
	c := New(fetcher.New(fetcher.Options{Logger: quietLogger()}), Options{
		MaxDepth: 1,
		Locale:   LocaleConfig{Priority: []string{"en", "ar"}},
		Logger:   quietLogger(),
	})

	pages, err := c.Discover(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, srv.URL+"/en/about.html", pages[1].URL)
}

func TestDiscoverMaxPages(t *testing.T) {
	srv := newSite(t, sitePages)
	c := New(fetcher.New(fetcher.Options{Logger: quietLogger()}), Options{
		MaxPages: 3,
		Logger:   quietLogger(),
	})

	pages, err := c.Discover(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	// three pages crawled; the two about pages collapse into one
	require.Len(t, pages, 2)
	assert.Equal(t, srv.URL+"/ar/about.html", pages[1].URL)
}

func TestDiscoverRelative(t *testing.T) {
	srv := newSite(t, sitePages)
	c := New(fetcher.New(fetcher.Options{Logger: quietLogger()}), Options{
		MaxDepth: 1,
		Relative: true,
		Logger:   quietLogger(),
	})

	pages, err := c.Discover(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, srv.URL+"/", pages[0].URL)
	assert.Equal(t, "ar/about.html", pages[1].URL)
	assert.Equal(t, "programmes.html", pages[2].URL)
}

func TestDiscoverHreflangGroups(t *testing.T) {
	alternates := `<link rel="alternate" hreflang="en" href="/page-en.html">
		<link rel="alternate" hreflang="ar-SA" href="/page-ar.html">
		<link rel="alternate" hreflang="x-default" href="/page-en.html">`
	srv := newSite(t, map[string]string{
		"/":             `<html><head><title>Home</title></head><body><a href="/page-en.html">en</a><a href="/page-ar.html">ar</a></body></html>`,
		"/page-en.html": `<html><head><title>Fees</title>` + alternates + `</head></html>`,
		"/page-ar.html": `<html><head><title>الرسوم</title>` + alternates + `</head></html>`,
	})
	c := New(fetcher.New(fetcher.Options{Logger: quietLogger()}), Options{Logger: quietLogger()})

	pages, err := c.Discover(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, config.Page{URL: srv.URL + "/page-ar.html", Title: "الرسوم"}, pages[1])
}

func TestDiscoverStartFailure(t *testing.T) {
	srv := newSite(t, map[string]string{})
	c := New(fetcher.New(fetcher.Options{Logger: quietLogger()}), Options{Logger: quietLogger()})

	_, err := c.Discover(context.Background(), srv.URL+"/")
	require.Error(t, err)
	var statusErr *fetcher.StatusError
	assert.ErrorAs(t, err, &statusErr)

	_, err = c.Discover(context.Background(), "ftp://college.example/")
	assert.Error(t, err)
}

func TestDiscoverCancelled(t *testing.T) {
	srv := newSite(t, sitePages)
	c := New(fetcher.New(fetcher.Options{Logger: quietLogger()}), Options{Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Discover(ctx, srv.URL+"/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteTOML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTOML(&buf, []config.Page{
		{URL: "bachelor-of-nursing.html", Title: "بكالوريوس التمريض"},
		{URL: "academic-programmes.html", Title: "البرامج الأكاديمية"},
	}))

	out := buf.String()
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("[[pages]]")))
	assert.Contains(t, out, `url = "bachelor-of-nursing.html"`)
	assert.Contains(t, out, `title = "البرامج الأكاديمية"`)
}
