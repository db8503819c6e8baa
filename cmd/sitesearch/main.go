// Package main is the entry point for the sitesearch tool.
// sitesearch searches the pages of a static site for a term and prints the
// matching snippets, serves the site with search built in, or crawls a site
// to build its page list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/f4ah6o/sitesearch-go/internal/config"
	"github.com/f4ah6o/sitesearch-go/internal/discover"
	"github.com/f4ah6o/sitesearch-go/internal/fetcher"
	"github.com/f4ah6o/sitesearch-go/internal/render"
	"github.com/f4ah6o/sitesearch-go/internal/search"
	"github.com/f4ah6o/sitesearch-go/internal/session"
)

const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]

	switch subcommand {
	case "search":
		runSearch(os.Args[2:])
	case "repl":
		runREPL(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "discover":
		runDiscover(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `sitesearch - Search the pages of a static website

sitesearch fetches a fixed list of pages, finds the text blocks containing a
term, and reports each match with its heading and a highlighted excerpt.

Usage:
  sitesearch search <QUERY> [options]
  sitesearch repl [options]
  sitesearch serve [options]
  sitesearch discover <URL> [options]
  sitesearch help

Commands:
  search      Search the configured pages once and print the results
  repl        Read queries from stdin and print each results panel
  serve       Serve the site with search styles and a search API
  discover    Crawl a site and print its [[pages]] list
  help        Show this help message

Examples:
  sitesearch search "التمريض" --site-dir ./public
  sitesearch search nursing --base-url https://college.example/ --format json
  sitesearch serve --config sitesearch.toml --addr :8080
  sitesearch discover https://college.example/ --relative >> sitesearch.toml

For more information on a command, use:
  sitesearch <command> -h
`)
}

// overrides are command-line settings applied on top of the config file,
// including after every hot reload.
type overrides struct {
	baseURL     string
	siteDir     string
	maxResults  int
	concurrency int
}

func (o *overrides) register(fs *flag.FlagSet) {
	fs.StringVar(&o.baseURL, "base-url", "", "Base URL relative page URLs are resolved against")
	fs.StringVar(&o.siteDir, "site-dir", "", "Read pages from this directory instead of over HTTP")
	fs.IntVar(&o.maxResults, "max-results", 0, "Maximum number of results (0 keeps the configured value)")
	fs.IntVar(&o.concurrency, "concurrency", 0, "Pages fetched in parallel (0 keeps the configured value)")
}

func (o *overrides) apply(cfg *config.Config) error {
	if o.baseURL != "" {
		cfg.Fetch.BaseURL = o.baseURL
	}
	if o.siteDir != "" {
		cfg.Fetch.SiteDir = o.siteDir
	}
	if o.maxResults > 0 {
		cfg.MaxResults = o.maxResults
	}
	if o.concurrency > 0 {
		cfg.Fetch.Concurrency = o.concurrency
	}
	if cfg.Fetch.BaseURL == "" && cfg.Fetch.SiteDir == "" {
		cfg.Fetch.SiteDir = "."
	}
	return cfg.Validate()
}

func loadConfig(configPath string, o *overrides) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if err := o.apply(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newFetcher(cfg *config.Config, logger *log.Logger) *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		Timeout:           cfg.Fetch.Timeout,
		UserAgent:         cfg.Fetch.UserAgent,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		SiteDir:           cfg.Fetch.SiteDir,
		RespectRobots:     cfg.Fetch.RespectRobots,
		Logger:            logger,
	})
}

func newEngine(cfg *config.Config, logger *log.Logger) (*search.Engine, error) {
	return search.NewEngine(cfg, newFetcher(cfg, logger), logger)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)

	var (
		configPath string
		format     string
		pageURL    string
		o          overrides
	)

	fs.StringVar(&configPath, "config", "", "Path to a TOML or YAML config file")
	fs.StringVar(&format, "format", FormatTerminal, "Output format: terminal, json, markdown, or html")
	fs.StringVar(&pageURL, "url", "", "Page URL whose ?q= parameter is searched (instead of QUERY)")
	o.register(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sitesearch search <QUERY> [options]

Search the configured pages for QUERY. Matching is case-insensitive
substring containment; each match is reported with the nearest heading.

Arguments:
  QUERY       Search term (at least min_chars characters)

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  sitesearch search nursing --site-dir ./public
  sitesearch search "البرامج" --config sitesearch.toml --format markdown
  sitesearch search --url "https://college.example/index.html?q=nursing"
`)
	}

	fs.Parse(args)

	if fs.NArg() < 1 && pageURL == "" {
		fmt.Fprintf(os.Stderr, "Error: search query is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	if format != FormatTerminal && format != FormatJSON && format != FormatMarkdown && format != FormatHTML {
		log.Fatalf("Invalid format: %s. Must be 'terminal', 'json', 'markdown', or 'html'", format)
	}

	cfg, err := loadConfig(configPath, &o)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	engine, err := newEngine(cfg, log.Default())
	if err != nil {
		log.Fatalf("Failed to create search engine: %v", err)
	}

	var resp *search.Response
	if pageURL != "" {
		resp, err = searchFromURL(engine, pageURL)
	} else {
		ctx, stop := signalContext()
		resp, err = engine.Search(ctx, strings.Join(fs.Args(), " "))
		stop()
	}
	if errors.Is(err, search.ErrQueryTooShort) {
		log.Fatalf("Search failed: query must be at least %d characters", cfg.MinChars)
	}
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	if err := printResponse(format, resp); err != nil {
		log.Fatalf("Failed to format output: %v", err)
	}
}

// searchFromURL runs the search a page opened with ?q= would run.
func searchFromURL(engine *search.Engine, pageURL string) (*search.Response, error) {
	s := session.New(engine, nil, session.Options{
		MinChars: engine.Config().MinChars,
		Debounce: engine.Config().Debounce,
	})
	started, err := s.FromURL(pageURL)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, fmt.Errorf("%s has no q parameter", pageURL)
	}
	s.Wait()

	view := s.View()
	switch view.State {
	case session.StateResults:
		return view.Response, nil
	case session.StateIdle:
		return nil, search.ErrQueryTooShort
	}
	return nil, fmt.Errorf("search for %q failed", view.Input)
}

func printResponse(format string, resp *search.Response) error {
	switch format {
	case FormatJSON:
		return render.JSON(os.Stdout, resp)
	case FormatHTML, FormatMarkdown:
		panel, err := render.NewHTML().Results(resp.Query, resp.Results)
		if err != nil {
			return err
		}
		out := string(panel)
		if format == FormatMarkdown {
			if out, err = render.NewMarkdown().Convert(panel); err != nil {
				return err
			}
		}
		fmt.Println(out)
	default:
		render.Terminal(os.Stdout, resp)
	}
	return nil
}

func runDiscover(args []string) {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)

	var (
		maxDepth       int
		maxPages       int
		localePriority string
		localeParam    string
		relative       bool
		respectRobots  bool
		rps            float64
		userAgent      string
	)

	fs.IntVar(&maxDepth, "depth", 3, "Maximum link depth from the start page")
	fs.IntVar(&maxPages, "max-pages", 100, "Maximum number of pages to crawl")
	fs.StringVar(&localePriority, "locale-priority", "ar,en", "Locale priority order (comma-separated)")
	fs.StringVar(&localeParam, "locale-param", "", "Query parameter name for locale (e.g., 'hl' for ?hl=ar)")
	fs.BoolVar(&relative, "relative", false, "Print URLs relative to the start page's directory")
	fs.BoolVar(&respectRobots, "respect-robots", true, "Honour robots.txt")
	fs.Float64Var(&rps, "rps", 2, "Requests per second (0 for no limit)")
	fs.StringVar(&userAgent, "user-agent", config.DefaultUserAgent, "User-Agent header")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sitesearch discover <URL> [options]

Crawl a site from URL, staying on its host, and print a [[pages]] block for
the config file. Locale variants of a page (/ar/x, /en/x, ?hl=) are listed
once, in the preferred locale.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  sitesearch discover https://college.example/
  sitesearch discover https://college.example/ar/ --depth 2 --relative
`)
	}

	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: start URL is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	startURL := fs.Arg(0)

	u, err := url.Parse(startURL)
	if err != nil {
		log.Fatalf("Invalid URL: %v", err)
	}
	robotsBase := path.Dir(u.Path)
	if robotsBase == "/" || robotsBase == "." {
		robotsBase = ""
	}

	src := fetcher.New(fetcher.Options{
		UserAgent:         userAgent,
		RequestsPerSecond: rps,
		RespectRobots:     respectRobots,
		RobotsBasePath:    robotsBase,
	})
	crawler := discover.New(src, discover.Options{
		MaxDepth: maxDepth,
		MaxPages: maxPages,
		Locale: discover.LocaleConfig{
			Priority:  parseLocales(localePriority),
			ParamName: localeParam,
		},
		Relative: relative,
	})

	ctx, stop := signalContext()
	defer stop()

	pages, err := crawler.Discover(ctx, startURL)
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}
	if err := discover.WriteTOML(os.Stdout, pages); err != nil {
		log.Fatalf("Failed to write pages: %v", err)
	}
}

// parseLocales parses a comma-separated locale list.
func parseLocales(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
