// Package fetcher retrieves page markup for the search engine and the page
// discovery crawler.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// maxBodySize caps the size of a page; larger pages are rejected.
var maxBodySize int64 = 10 << 20

// ErrDisallowed is returned when robots.txt forbids fetching a URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError reports a non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// Options configures a Fetcher. Zero values select defaults.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond paces requests; 0 disables pacing.
	RequestsPerSecond float64
	// SiteDir enables file:// URLs rooted at this directory.
	SiteDir string
	// RespectRobots consults robots.txt before every http(s) request.
	RespectRobots bool
	// RobotsBasePath is the subdirectory a site is published under; its
	// robots.txt is tried when the origin has none.
	RobotsBasePath string
	Logger         *log.Logger
}

// Fetcher downloads HTML pages. It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	robots    *RobotsChecker
	logger    *log.Logger
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sitesearch/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.SiteDir != "" {
		transport.RegisterProtocol("file", http.NewFileTransport(http.Dir(opts.SiteDir)))
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}

	f := &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		limiter:   limiter,
		logger:    opts.Logger,
	}
	if opts.RespectRobots {
		f.robots = NewRobotsChecker(opts.UserAgent, client, opts.Logger)
		f.robots.SetBasePath(opts.RobotsBasePath)
	}
	return f
}

// Get fetches targetURL and returns its markup decoded to UTF-8.
func (f *Fetcher) Get(ctx context.Context, targetURL string) (string, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "http", "https":
		if parsedURL.Host == "" {
			return "", fmt.Errorf("invalid URL %s: domain is missing", targetURL)
		}
		if f.robots != nil && !f.robots.IsAllowed(ctx, targetURL) {
			return "", fmt.Errorf("%s: %w", targetURL, ErrDisallowed)
		}
	case "file":
	default:
		return "", fmt.Errorf("invalid URL scheme: %s. Only http, https and file are supported", parsedURL.Scheme)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: targetURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isHTML(contentType) {
		return "", fmt.Errorf("%s is not HTML (Content-Type %s)", targetURL, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read body from %s: %w", targetURL, err)
	}
	if int64(len(body)) > maxBodySize {
		return "", fmt.Errorf("%s is larger than %d bytes", targetURL, maxBodySize)
	}

	return decodeHTML(body, contentType), nil
}

// isHTML reports whether a Content-Type header names an HTML or XHTML
// document.
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
