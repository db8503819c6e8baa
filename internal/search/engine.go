package search

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/f4ah6o/sitesearch-go/internal/config"
	"github.com/f4ah6o/sitesearch-go/internal/filter"
)

// Engine runs searches over the configured pages. An Engine is bound to one
// configuration for its whole life; build a new one to change it.
type Engine struct {
	cfg     *config.Config
	source  PageSource
	filter  *filter.Filter
	matcher *Matcher
	logger  *log.Logger
}

// NewEngine creates an Engine. logger may be nil.
func NewEngine(cfg *config.Config, source PageSource, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	f, err := filter.New(cfg.ExcludeSelectors, cfg.ExcludeClassTokens)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		source:  source,
		filter:  f,
		matcher: NewMatcher(cfg),
		logger:  logger,
	}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }

type pageOutcome struct {
	results []Result
	err     error
}

// Search fetches every configured page and returns the matches for query in
// page order. Pages that fail are logged and skipped. Scanning stops once
// MaxResults matches have been collected (checked between pages); the
// de-duplicated list is then capped at MaxResults.
func (e *Engine) Search(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < e.cfg.MinChars {
		return nil, fmt.Errorf("%w: %q has fewer than %d characters", ErrQueryTooShort, query, e.cfg.MinChars)
	}

	var outcomes []pageOutcome
	var err error
	if e.cfg.Fetch.Concurrency > 1 {
		outcomes, err = e.scanParallel(ctx, query)
	} else {
		outcomes, err = e.scanSequential(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	resp := &Response{Query: query}
	var collected []Result
	for i, out := range outcomes {
		page := e.cfg.Pages[i]
		if out.err != nil {
			e.logger.Printf("Warning: cannot load page %s: %v", page.URL, out.err)
			resp.Failed = append(resp.Failed, page.URL)
		} else {
			resp.Searched++
			collected = append(collected, out.results...)
		}
		if len(collected) >= e.cfg.MaxResults {
			break
		}
	}

	results := Dedupe(collected, e.cfg.DedupPrefix)
	if len(results) > e.cfg.MaxResults {
		results = results[:e.cfg.MaxResults]
	}
	resp.Results = results
	return resp, nil
}

// scanSequential fetches one page at a time and stops early once the soft
// cap is reached, so later pages are never requested.
func (e *Engine) scanSequential(ctx context.Context, query string) ([]pageOutcome, error) {
	outcomes := make([]pageOutcome, 0, len(e.cfg.Pages))
	total := 0
	for _, page := range e.cfg.Pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search cancelled: %w", err)
		}
		results, err := e.scanPage(ctx, page, query)
		outcomes = append(outcomes, pageOutcome{results: results, err: err})
		total += len(results)
		if total >= e.cfg.MaxResults {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search cancelled: %w", err)
	}
	return outcomes, nil
}

// scanParallel fetches pages concurrently. Each outcome is stored at its
// page's index, so ordering never depends on completion order.
func (e *Engine) scanParallel(ctx context.Context, query string) ([]pageOutcome, error) {
	outcomes := make([]pageOutcome, len(e.cfg.Pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Fetch.Concurrency)
	for i, page := range e.cfg.Pages {
		g.Go(func() error {
			results, err := e.scanPage(gctx, page, query)
			outcomes[i] = pageOutcome{results: results, err: err}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search cancelled: %w", err)
	}
	return outcomes, nil
}

func (e *Engine) scanPage(ctx context.Context, page config.Page, query string) ([]Result, error) {
	target, err := e.cfg.ResolveURL(page)
	if err != nil {
		return nil, err
	}

	markup, err := e.source.Get(ctx, target)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", target, err)
	}

	return e.matcher.Match(e.filter.Apply(doc), page, query), nil
}
