package server

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/f4ah6o/sitesearch-go/internal/render"
)

// maxPageSize caps the HTML pages rewritten in memory.
const maxPageSize = 10 << 20

// staticHandler serves SiteDir. HTML pages get the highlight stylesheet
// injected into their <head>; everything else is served as-is.
func (s *Server) staticHandler() http.Handler {
	root := http.Dir(s.cfg.SiteDir)
	files := http.FileServer(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") {
			name = path.Join(name, "index.html")
		}
		if !isHTML(name) {
			files.ServeHTTP(w, r)
			return
		}

		f, err := root.Open(name)
		if err != nil {
			files.ServeHTTP(w, r)
			return
		}
		defer f.Close()
		if info, err := f.Stat(); err != nil || info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(f, maxPageSize))
		if err != nil {
			http.Error(w, "failed to read page", http.StatusInternalServerError)
			return
		}
		page, err := render.InjectStyle(string(body), s.Engine().Config().HighlightClass)
		if err != nil {
			s.logger.Printf("Warning: serving %s without search styles: %v", name, err)
			page = string(body)
		}
		writeHTML(w, http.StatusOK, page)
	})
}

func isHTML(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
