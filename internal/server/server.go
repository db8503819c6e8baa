// Package server serves the site with the search stylesheet injected and
// answers search requests over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/f4ah6o/sitesearch-go/internal/config"
	"github.com/f4ah6o/sitesearch-go/internal/render"
	"github.com/f4ah6o/sitesearch-go/internal/search"
)

// Server holds the router and the engine searches run against.
type Server struct {
	cfg      config.ServerConfig
	engine   atomic.Pointer[search.Engine]
	html     *render.HTML
	markdown *render.Markdown
	logger   *log.Logger
	router   chi.Router

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a server for engine. Server settings come from the engine's
// configuration and are fixed for the server's life.
func New(engine *search.Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:      engine.Config().Server,
		html:     render.NewHTML(),
		markdown: render.NewMarkdown(),
		logger:   logger,
	}
	s.cfg.BasePath = normalizeBasePath(s.cfg.BasePath)
	s.engine.Store(engine)
	s.router = s.buildRouter()
	return s
}

// SetEngine swaps the engine used by subsequent requests. Requests already
// running finish on the engine they started with.
func (s *Server) SetEngine(engine *search.Engine) {
	s.engine.Store(engine)
}

// Engine returns the current engine.
func (s *Server) Engine() *search.Engine { return s.engine.Load() }

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/search", s.handleSearch)
	r.Get("/search", s.handleSearchPage)

	static := s.staticHandler()
	if s.cfg.BasePath == "" {
		r.Handle("/*", static)
	} else {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, s.cfg.BasePath+"/", http.StatusFound)
		})
		r.Handle(s.cfg.BasePath+"/*", http.StripPrefix(s.cfg.BasePath, static))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"pages":  len(s.Engine().Config().Pages),
	})
}

// handleSearch answers /api/search?q=&format=json|html|markdown.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "html" && format != "markdown" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown format " + format})
		return
	}

	engine := s.Engine()
	resp, err := engine.Search(r.Context(), query)
	if err != nil {
		s.searchFailed(w, r, engine, format, err)
		return
	}

	if format == "json" {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	panel, err := s.html.Results(resp.Query, resp.Results)
	if err != nil {
		s.searchFailed(w, r, engine, format, err)
		return
	}
	if format == "html" {
		writeHTML(w, http.StatusOK, string(panel))
		return
	}
	out, err := s.markdown.Convert(panel)
	if err != nil {
		s.searchFailed(w, r, engine, format, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out + "\n"))
}

func (s *Server) searchFailed(w http.ResponseWriter, r *http.Request, engine *search.Engine, format string, err error) {
	status := http.StatusInternalServerError
	panel := s.html.Error()
	if errors.Is(err, search.ErrQueryTooShort) {
		status = http.StatusBadRequest
		panel = s.html.TooShort(engine.Config().MinChars)
	} else {
		s.logger.Printf("Error: search request %s failed: %v", middleware.GetReqID(r.Context()), err)
	}

	switch format {
	case "html":
		writeHTML(w, status, string(panel))
	case "markdown":
		http.Error(w, err.Error(), status)
	default:
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

var searchPage = template.Must(template.New("search").Parse(`<!DOCTYPE html>
<html dir="rtl" lang="ar">
<head>
<meta charset="utf-8">
<title>{{.Query}}</title>
{{.Style}}
</head>
<body>
<form class="search-box" action="" method="get">
  <input type="text" name="q" value="{{.Query}}" autofocus>
</form>
<div id="searchResults">{{.Panel}}</div>
<script>function closeSearch() {}</script>
</body>
</html>
`))

// handleSearchPage renders a standalone results page for ?q=, as the overlay
// does when a page is opened with a query parameter.
func (s *Server) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	engine := s.Engine()
	cfg := engine.Config()

	var panel template.HTML
	status := http.StatusOK
	if query != "" {
		switch resp, err := engine.Search(r.Context(), query); {
		case errors.Is(err, search.ErrQueryTooShort):
			panel = s.html.TooShort(cfg.MinChars)
		case err != nil:
			s.logger.Printf("Error: search page for %q failed: %v", query, err)
			panel, status = s.html.Error(), http.StatusInternalServerError
		default:
			if panel, err = s.html.Results(resp.Query, resp.Results); err != nil {
				s.logger.Printf("Error: rendering results for %q failed: %v", query, err)
				panel, status = s.html.Error(), http.StatusInternalServerError
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := searchPage.Execute(w, struct {
		Query string
		Style template.HTML
		Panel template.HTML
	}{query, template.HTML(render.StyleTag(cfg.HighlightClass)), panel})
	if err != nil {
		s.logger.Printf("Warning: failed to write search page: %v", err)
	}
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Printf("sitesearch listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeHTML(w http.ResponseWriter, status int, markup string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(markup))
}

func normalizeBasePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
