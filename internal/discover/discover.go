// Package discover crawls a site to build the page list the search engine
// scans.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/PuerkitoBio/goquery"

	"github.com/f4ah6o/sitesearch-go/internal/config"
)

// Source fetches page markup. *fetcher.Fetcher implements it.
type Source interface {
	Get(ctx context.Context, url string) (string, error)
}

// Options configures a crawl. Zero values select defaults.
type Options struct {
	MaxDepth int
	MaxPages int
	Locale   LocaleConfig
	// Relative emits URLs relative to the start URL's directory when they
	// live under it.
	Relative bool
	Logger   *log.Logger
}

// Crawler discovers the pages of one site.
type Crawler struct {
	source Source
	opts   Options
}

// discovered is a crawled page with its locale grouping.
type discovered struct {
	page   config.Page
	group  string
	locale string
}

type queued struct {
	url   string
	depth int
}

// New creates a Crawler.
func New(source Source, opts Options) *Crawler {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 100
	}
	if opts.Locale.Priority == nil {
		opts.Locale.Priority = DefaultLocalePriority
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Crawler{source: source, opts: opts}
}

// Discover crawls breadth-first from startURL, staying on its host, and
// returns one page per locale group in discovery order. Only a failure to
// load startURL itself is an error; other pages are skipped with a warning.
func (c *Crawler) Discover(ctx context.Context, startURL string) ([]config.Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" && start.Scheme != "file" {
		return nil, fmt.Errorf("invalid URL scheme: %s. Only http, https and file are supported", start.Scheme)
	}
	start.Fragment = ""

	c.opts.Logger.Printf("Discovering pages from %s...", start)
	c.opts.Logger.Printf("Domain restricted to: %s", start.Host)
	began := time.Now()

	visited := map[string]bool{start.String(): true}
	queue := []queued{{url: start.String()}}
	var found []discovered

	for len(queue) > 0 && len(found) < c.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("discovery cancelled: %w", err)
		}
		item := queue[0]
		queue = queue[1:]

		markup, err := c.source.Get(ctx, item.url)
		if err != nil {
			if item.depth == 0 {
				return nil, fmt.Errorf("failed to load start page: %w", err)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("discovery cancelled: %w", err)
			}
			c.opts.Logger.Printf("Warning: skipping %s: %v", item.url, err)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			c.opts.Logger.Printf("Warning: cannot parse %s: %v", item.url, err)
			continue
		}
		pageURL, _ := url.Parse(item.url)
		found = append(found, c.describe(doc, pageURL))

		if item.depth >= c.opts.MaxDepth {
			continue
		}
		for _, link := range extractLinks(doc, pageURL) {
			if visited[link.String()] || !sameSite(start, link) || isNonHTMLResource(link.Path) {
				continue
			}
			visited[link.String()] = true
			queue = append(queue, queued{url: link.String(), depth: item.depth + 1})
		}
	}

	pages := c.collapse(found, start)
	c.opts.Logger.Printf("Discovery complete. %d pages (%d crawled) in %s.",
		len(pages), len(found), time.Since(began).Round(time.Millisecond))
	return pages, nil
}

func (c *Crawler) describe(doc *goquery.Document, pageURL *url.URL) discovered {
	d := discovered{page: config.Page{URL: pageURL.String(), Title: pageTitle(doc)}}

	var canonical string
	d.locale, canonical = ExtractLocale(pageURL, &c.opts.Locale)
	d.group = pageURL.Host + canonical

	// hreflang alternates name the group explicitly, whatever the URL shape
	if alternates := ExtractHreflang(doc, pageURL); len(alternates) > 0 {
		_, d.group = SelectPreferredLocaleURL(alternates, c.opts.Locale.Priority)
		for loc, target := range alternates {
			if target == d.page.URL {
				d.locale = loc
			}
		}
	}
	return d
}

// collapse keeps the preferred locale of every group, ordered by the first
// time the group was seen.
func (c *Crawler) collapse(found []discovered, start *url.URL) []config.Page {
	best := make(map[string]int)
	var order []string
	for i, d := range found {
		j, ok := best[d.group]
		if !ok {
			best[d.group] = i
			order = append(order, d.group)
			continue
		}
		if localeRank(d.locale, c.opts.Locale.Priority) < localeRank(found[j].locale, c.opts.Locale.Priority) {
			best[d.group] = i
		}
	}

	pages := make([]config.Page, 0, len(order))
	for _, g := range order {
		p := found[best[g]].page
		if c.opts.Relative {
			p.URL = relativeTo(start, p.URL)
		}
		pages = append(pages, p)
	}
	return pages
}

// pageTitle returns the <title>, falling back to the first <h1>.
func pageTitle(doc *goquery.Document) string {
	if t := strings.Join(strings.Fields(doc.Find("title").First().Text()), " "); t != "" {
		return t
	}
	return strings.Join(strings.Fields(doc.Find("h1").First().Text()), " ")
}

// extractLinks resolves every <a href> against base and drops fragments.
func extractLinks(doc *goquery.Document, base *url.URL) []*url.URL {
	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		links = append(links, resolved)
	})
	return links
}

func sameSite(start, link *url.URL) bool {
	return link.Scheme == start.Scheme && link.Host == start.Host
}

func isNonHTMLResource(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
		".woff", ".woff2", ".ttf", ".eot", ".zip", ".tar", ".gz", ".pdf",
		".xml", ".json", ".txt", ".mp4", ".webm", ".mp3":
		return true
	}
	return false
}

// relativeTo strips the start URL's directory from target when target is
// below it.
func relativeTo(start *url.URL, target string) string {
	dir := *start
	dir.RawQuery = ""
	dir.Path = dir.Path[:strings.LastIndex(dir.Path, "/")+1]
	prefix := dir.String()
	if rel := strings.TrimPrefix(target, prefix); rel != target && rel != "" {
		return rel
	}
	return target
}

// WriteTOML writes pages as a [[pages]] block ready for a config file.
func WriteTOML(w io.Writer, pages []config.Page) error {
	doc := struct {
		Pages []config.Page `toml:"pages"`
	}{Pages: pages}
	if err := toml.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("failed to encode pages: %w", err)
	}
	return nil
}
