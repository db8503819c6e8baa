// Package config loads and validates the site search configuration.
// A configuration is built once (defaults overlaid with a TOML or YAML file)
// and treated as immutable afterwards; reloading produces a new value.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Page describes one searchable page of the site. Its URL is its identity.
type Page struct {
	URL   string `toml:"url" yaml:"url" json:"url"`
	Title string `toml:"title" yaml:"title" json:"title"`
}

// FetchConfig controls how pages are retrieved.
type FetchConfig struct {
	// BaseURL is used to resolve relative page URLs, e.g. "https://example.edu/".
	BaseURL string `toml:"base_url" yaml:"base_url"`
	// SiteDir serves pages from a local directory (file://) when BaseURL is empty.
	SiteDir           string        `toml:"site_dir" yaml:"site_dir"`
	Timeout           time.Duration `toml:"timeout" yaml:"timeout"`
	UserAgent         string        `toml:"user_agent" yaml:"user_agent"`
	Concurrency       int           `toml:"concurrency" yaml:"concurrency"`
	RequestsPerSecond float64       `toml:"requests_per_second" yaml:"requests_per_second"`
	RespectRobots     bool          `toml:"respect_robots" yaml:"respect_robots"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Addr           string   `toml:"addr" yaml:"addr"`
	SiteDir        string   `toml:"site_dir" yaml:"site_dir"`
	BasePath       string   `toml:"base_path" yaml:"base_path"`
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins"`
}

// Config is the process-wide search configuration.
type Config struct {
	Pages              []Page        `toml:"pages" yaml:"pages"`
	SearchTags         []string      `toml:"search_tags" yaml:"search_tags"`
	MinChars           int           `toml:"min_chars" yaml:"min_chars"`
	MaxResults         int           `toml:"max_results" yaml:"max_results"`
	ExcludeSelectors   []string      `toml:"exclude_selectors" yaml:"exclude_selectors"`
	ExcludeClassTokens []string      `toml:"exclude_class_tokens" yaml:"exclude_class_tokens"`
	MinTextLength      int           `toml:"min_text_length" yaml:"min_text_length"`
	MaxTextLength      int           `toml:"max_text_length" yaml:"max_text_length"`
	ExcerptLength      int           `toml:"excerpt_length" yaml:"excerpt_length"`
	DedupPrefix        int           `toml:"dedup_prefix" yaml:"dedup_prefix"`
	HighlightClass     string        `toml:"highlight_class" yaml:"highlight_class"`
	Debounce           time.Duration `toml:"debounce" yaml:"debounce"`
	Fetch              FetchConfig   `toml:"fetch" yaml:"fetch"`
	Server             ServerConfig  `toml:"server" yaml:"server"`
}

// DefaultUserAgent identifies the fetcher to the site being searched.
const DefaultUserAgent = "sitesearch/1.0 (+https://github.com/f4ah6o/sitesearch-go)"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pages: []Page{
			{URL: "academic-programmes.html", Title: "academic programmes"},
			{URL: "bachelor-of-nursing.html", Title: "Bachelor of Nursing"},
			{URL: "ScienceInManagementAndInformatics.html", Title: "Science in Health Management and Informatics"},
		},
		SearchTags: []string{"h1", "h2", "h3", "h4", "h5", "h6", "p", "span", "li", "td", "th", "a"},
		MinChars:   2,
		MaxResults: 50,
		ExcludeSelectors: []string{
			"header", "nav", "footer",
			".topbar", ".navbar", ".footer", ".copyright",
			"[class*='top-bar']", "[class*='nav-bar']", "[class*='footer']",
			"[class*='copyright']", "[class*='menu']", "[class*='header']",
		},
		ExcludeClassTokens: []string{"topbar", "navbar", "footer", "copyright", "menu", "header"},
		MinTextLength:      10,
		MaxTextLength:      5000,
		ExcerptLength:      150,
		DedupPrefix:        50,
		HighlightClass:     "highlight",
		Debounce:           500 * time.Millisecond,
		Fetch: FetchConfig{
			Timeout:     30 * time.Second,
			UserAgent:   DefaultUserAgent,
			Concurrency: 1,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			SiteDir:        ".",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads a configuration file on top of Default. The format is chosen
// by extension: .toml, .yaml or .yml.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", configPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the search cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if c.MinChars < 1 {
		errs = append(errs, fmt.Errorf("min_chars must be at least 1, got %d", c.MinChars))
	}
	if c.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("max_results must be at least 1, got %d", c.MaxResults))
	}
	if c.ExcerptLength < 1 {
		errs = append(errs, fmt.Errorf("excerpt_length must be at least 1, got %d", c.ExcerptLength))
	}
	if c.DedupPrefix < 0 {
		errs = append(errs, fmt.Errorf("dedup_prefix must not be negative, got %d", c.DedupPrefix))
	}
	if c.MaxTextLength > 0 && c.MaxTextLength <= c.MinTextLength {
		errs = append(errs, fmt.Errorf("max_text_length (%d) must exceed min_text_length (%d)", c.MaxTextLength, c.MinTextLength))
	}
	if len(c.SearchTags) == 0 {
		errs = append(errs, errors.New("search_tags must not be empty"))
	}
	if c.HighlightClass == "" {
		errs = append(errs, errors.New("highlight_class must not be empty"))
	}
	if c.Fetch.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("fetch.concurrency must not be negative, got %d", c.Fetch.Concurrency))
	}

	for _, sel := range append(append([]string{}, c.SearchTags...), c.ExcludeSelectors...) {
		if _, err := cascadia.ParseGroup(sel); err != nil {
			errs = append(errs, fmt.Errorf("invalid selector %q: %w", sel, err))
		}
	}

	seen := make(map[string]bool, len(c.Pages))
	for i, p := range c.Pages {
		if strings.TrimSpace(p.URL) == "" {
			errs = append(errs, fmt.Errorf("pages[%d]: url is required", i))
			continue
		}
		if seen[p.URL] {
			errs = append(errs, fmt.Errorf("pages[%d]: duplicate url %s", i, p.URL))
		}
		seen[p.URL] = true
	}

	if c.Fetch.BaseURL != "" {
		u, err := url.Parse(c.Fetch.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("fetch.base_url must be an absolute http(s) URL: %q", c.Fetch.BaseURL))
		}
	}

	return errors.Join(errs...)
}

// ResolveURL returns the absolute URL a page is fetched from. Absolute page
// URLs are returned as-is; relative ones are joined with Fetch.BaseURL, or
// mapped onto a file:// URL when only Fetch.SiteDir is set.
func (c *Config) ResolveURL(p Page) (string, error) {
	ref, err := url.Parse(p.URL)
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", p.URL, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	if c.Fetch.BaseURL != "" {
		base, err := url.Parse(c.Fetch.BaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid base url: %w", err)
		}
		return base.ResolveReference(ref).String(), nil
	}

	if c.Fetch.SiteDir != "" {
		return (&url.URL{Scheme: "file", Path: path.Join("/", ref.Path)}).String(), nil
	}

	return "", fmt.Errorf("cannot resolve relative page url %q: neither fetch.base_url nor fetch.site_dir is set", p.URL)
}
