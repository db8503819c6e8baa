// Package session drives the search overlay: it debounces typing, runs
// searches, and keeps the overlay's visible state in an explicit View.
//
// Every search is tagged with a generation. Starting a search cancels the
// one in flight, and a search that completes after being superseded is
// discarded, so the panel always shows the latest query's outcome.
package session

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/f4ah6o/sitesearch-go/internal/render"
	"github.com/f4ah6o/sitesearch-go/internal/search"
)

// State is the lifecycle state of the overlay.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateSearching
	StateResults
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateSearching:
		return "searching"
	case StateResults:
		return "results"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// View is everything the overlay displays.
type View struct {
	Open    bool
	Input   string
	Results template.HTML
	State   State
	// Generation of the search whose outcome Results shows, 0 if none.
	Generation uint64
	// Response is the last applied search response, nil otherwise.
	Response *search.Response
}

// Searcher runs one search. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Response, error)
}

// Options configures a Session.
type Options struct {
	MinChars int
	Debounce time.Duration
	// OnChange is called with a copy of the view after every change, while
	// the session lock is held; it must not call back into the Session.
	OnChange func(View)
	Logger   *log.Logger
}

// Session is safe for concurrent use.
type Session struct {
	searcher Searcher
	html     *render.HTML
	opts     Options

	mu         sync.Mutex
	view       View
	timer      *time.Timer
	debounceID uint64
	generation uint64
	cancel     context.CancelFunc

	// inflight counts running searches; idle is signalled when it drops to 0.
	inflight int
	idle     *sync.Cond
}

// New creates a Session.
func New(searcher Searcher, html *render.HTML, opts Options) *Session {
	if opts.MinChars < 1 {
		opts.MinChars = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if html == nil {
		html = render.NewHTML()
	}
	s := &Session{searcher: searcher, html: html, opts: opts}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// View returns a copy of the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Generation returns the latest generation issued. A search outcome is
// applied only while its generation is still the latest.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Open shows the overlay.
func (s *Session) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Open = true
	s.changed()
}

// Close hides the overlay and clears the input and results. Pending and
// in-flight searches are abandoned.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopDebounce()
	s.abandon()
	s.view = View{}
	s.changed()
}

// Input handles the query field changing. Queries of at least MinChars
// characters are searched once typing pauses for the debounce delay; each
// call restarts the delay.
func (s *Session) Input(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopDebounce()
	s.view.Input = text

	query := strings.TrimSpace(text)
	switch n := utf8.RuneCountInString(query); {
	case n >= s.opts.MinChars:
		s.view.State = StateDebouncing
		s.debounceID++
		id := s.debounceID
		s.timer = time.AfterFunc(s.opts.Debounce, func() { s.debounced(id, query) })
	case n == 0:
		s.abandon()
		s.view.State = StateIdle
		s.view.Results = ""
		s.view.Response = nil
	default:
		s.abandon()
		s.view.State = StateIdle
		s.view.Results = s.html.TooShort(s.opts.MinChars)
		s.view.Response = nil
	}
	s.changed()
}

// Submit searches text immediately, as a button click or Enter does. Any
// pending debounce is dropped. Blank input is ignored.
func (s *Session) Submit(text string) {
	query := strings.TrimSpace(text)
	if query == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopDebounce()
	s.view.Input = text
	s.start(query)
}

// FromURL opens the overlay and searches the page URL's q parameter, if any.
// It reports whether a search was started.
func (s *Session) FromURL(raw string) (bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return false, fmt.Errorf("invalid page URL: %w", err)
	}
	q := u.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopDebounce()
	s.view.Open = true
	s.view.Input = q
	s.start(strings.TrimSpace(q))
	return true, nil
}

// Wait blocks until no search is running. A search started by a debounce
// timer while Wait blocks is waited for too.
func (s *Session) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
}

func (s *Session) debounced(id uint64, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.debounceID {
		return
	}
	s.timer = nil
	s.start(query)
}

// start must be called with s.mu held.
func (s *Session) start(query string) {
	s.supersede()
	s.generation++
	gen := s.generation

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.view.State = StateSearching
	s.view.Results = s.html.Searching()
	s.changed()

	s.inflight++
	go func() {
		defer cancel()
		resp, err := s.searcher.Search(ctx, query)
		s.finish(gen, query, resp, err)
	}()
}

func (s *Session) finish(gen uint64, query string, resp *search.Response, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
	if gen != s.generation {
		return
	}
	s.cancel = nil
	s.view.Generation = gen

	switch {
	case errors.Is(err, search.ErrQueryTooShort):
		s.view.State = StateIdle
		s.view.Results = s.html.TooShort(s.opts.MinChars)
		s.view.Response = nil
	case err != nil:
		s.opts.Logger.Printf("Error: search for %q failed: %v", query, err)
		s.fail()
	default:
		panel, rerr := s.html.Results(query, resp.Results)
		if rerr != nil {
			s.opts.Logger.Printf("Error: rendering results for %q failed: %v", query, rerr)
			s.fail()
			break
		}
		s.view.State = StateResults
		s.view.Results = panel
		s.view.Response = resp
	}
	// typing resumed while this search ran
	if s.timer != nil {
		s.view.State = StateDebouncing
	}
	s.changed()
}

func (s *Session) fail() {
	s.view.State = StateFailed
	s.view.Results = s.html.Error()
	s.view.Response = nil
}

// abandon cancels the in-flight search and moves to a new generation, so
// its outcome is discarded when it completes.
func (s *Session) abandon() {
	s.supersede()
	s.generation++
}

// supersede cancels the in-flight search, if any. Callers bump the
// generation so its outcome is discarded.
func (s *Session) supersede() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) stopDebounce() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.debounceID++
}

func (s *Session) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.view)
	}
}
