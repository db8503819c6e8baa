package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f4ah6o/sitesearch-go/internal/config"
	"github.com/f4ah6o/sitesearch-go/internal/fetcher"
	"github.com/f4ah6o/sitesearch-go/internal/render"
	"github.com/f4ah6o/sitesearch-go/internal/search"
)

const nursingPage = `<!DOCTYPE html>
<html><head><title>Bachelor of Nursing</title></head>
<body>
<h2>Admissions</h2>
<p>Apply for the Bachelor of Nursing programme today.</p>
</body></html>`

func writeSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"nursing.html": nursingPage,
		"fees.html":    `<html><head><title>Fees</title></head><body><p>Tuition fees for nursing students.</p></body></html>`,
		"index.html":   `<html><head><title>Home</title></head><body><h1>Welcome</h1></body></html>`,
		"style.css":    `p { color: red; }`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newEngine(t *testing.T, dir string, mutate func(*config.Config)) *search.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Pages = []config.Page{{URL: "nursing.html", Title: "Bachelor of Nursing"}}
	cfg.Fetch.SiteDir = dir
	cfg.Server.SiteDir = dir
	if mutate != nil {
		mutate(cfg)
	}
	src := fetcher.New(fetcher.Options{SiteDir: dir, Logger: quietLogger()})
	engine, err := search.NewEngine(cfg, src, quietLogger())
	require.NoError(t, err)
	return engine
}

func newServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	return New(newEngine(t, writeSite(t), mutate), quietLogger())
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealthCheck(t *testing.T) {
	s := newServer(t, nil)

	w := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["pages"])
}

func TestCORSHeaders(t *testing.T) {
	s := newServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPISearchJSON(t *testing.T) {
	s := newServer(t, nil)

	w := get(t, s, "/api/search?q=nursing")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp search.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "nursing", resp.Query)
	assert.Equal(t, 1, resp.Searched)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Admissions", resp.Results[0].Heading)
	assert.Equal(t, "nursing.html", resp.Results[0].PageURL)
	assert.Contains(t, resp.Results[0].Excerpt, `<span class="highlight">Nursing</span>`)
}

func TestAPISearchFormats(t *testing.T) {
	s := newServer(t, nil)

	w := get(t, s, "/api/search?q=nursing&format=html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `class="search-result-item"`)
	assert.Contains(t, w.Body.String(), `<a href="nursing.html" onclick="closeSearch()">Admissions</a>`)

	w = get(t, s, "/api/search?q=nursing&format=markdown")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "[Admissions](nursing.html)")
	assert.Contains(t, w.Body.String(), "**Nursing**")

	w = get(t, s, "/api/search?q=zzzz&format=html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `لم يتم العثور على نتائج لـ &#34;zzzz&#34;`)

	w = get(t, s, "/api/search?q=nursing&format=xml")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPISearchShortQuery(t *testing.T) {
	s := newServer(t, nil)

	w := get(t, s, "/api/search?q=n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")

	w = get(t, s, "/api/search?q=n&format=html")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "اكتب على الأقل 2 أحرف للبحث")
}

func TestSearchPage(t *testing.T) {
	s := newServer(t, nil)

	w := get(t, s, "/search?q=nursing")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `id="`+render.StyleID+`"`)
	assert.Contains(t, body, `value="nursing"`)
	assert.Contains(t, body, `class="search-result-item"`)

	w = get(t, s, "/search")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "search-result-item")
}

type countingSource struct {
	search.PageSource
	mu    sync.Mutex
	count int
}

func (c *countingSource) Get(ctx context.Context, url string) (string, error) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return c.PageSource.Get(ctx, url)
}

func (c *countingSource) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestSearchPageWithoutQuery(t *testing.T) {
	dir := writeSite(t)
	cfg := config.Default()
	cfg.Pages = []config.Page{{URL: "nursing.html", Title: "Bachelor of Nursing"}}
	cfg.Fetch.SiteDir = dir
	src := &countingSource{PageSource: fetcher.New(fetcher.Options{SiteDir: dir, Logger: quietLogger()})}
	engine, err := search.NewEngine(cfg, src, quietLogger())
	require.NoError(t, err)
	s := New(engine, quietLogger())

	for _, target := range []string{"/search", "/search?q=", "/search?q=+++"} {
		w := get(t, s, target)
		require.Equal(t, http.StatusOK, w.Code, target)
		body := w.Body.String()
		assert.Contains(t, body, `value=""`, target)
		assert.NotContains(t, body, "search-result-item", target)
		assert.NotContains(t, body, "اكتب على الأقل", target)
	}
	assert.Zero(t, src.Count())

	w := get(t, s, "/search?q=n")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "اكتب على الأقل 2 أحرف للبحث")
	assert.Zero(t, src.Count())

	w = get(t, s, "/search?q=nursing")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "search-result-item")
	assert.Equal(t, 1, src.Count())
}

func TestStaticInjectsStyle(t *testing.T) {
	s := newServer(t, nil)

	w := get(t, s, "/nursing.html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `id="`+render.StyleID+`"`)
	assert.Contains(t, w.Body.String(), "Apply for the Bachelor of Nursing programme today.")

	w = get(t, s, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>Welcome</h1>")
	assert.Contains(t, w.Body.String(), render.StyleID)

	w = get(t, s, "/style.css")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p { color: red; }", w.Body.String())

	w = get(t, s, "/missing.html")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaticBasePath(t *testing.T) {
	s := newServer(t, func(cfg *config.Config) {
		cfg.Server.BasePath = "college/"
	})

	w := get(t, s, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/college/", w.Header().Get("Location"))

	w = get(t, s, "/college/nursing.html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), render.StyleID)

	w = get(t, s, "/college/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>Welcome</h1>")
}

func TestSetEngine(t *testing.T) {
	dir := writeSite(t)
	s := New(newEngine(t, dir, nil), quietLogger())

	w := get(t, s, "/api/search?q=tuition")
	require.Equal(t, http.StatusOK, w.Code)
	var resp search.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)

	s.SetEngine(newEngine(t, dir, func(cfg *config.Config) {
		cfg.Pages = append(cfg.Pages, config.Page{URL: "fees.html", Title: "Fees"})
	}))

	w = get(t, s, "/api/search?q=tuition")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Fees", resp.Results[0].PageTitle)
}

func TestStartShutdown(t *testing.T) {
	s := newServer(t, func(cfg *config.Config) {
		cfg.Server.Addr = "127.0.0.1:0"
	})

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.httpServer != nil
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
