package fetcher

import (
	"bufio"
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// RobotsChecker answers whether a URL may be fetched according to the
// site's robots.txt. Rules are fetched once per origin and cached; a missing
// or unreachable robots.txt allows everything. Safe for concurrent use.
type RobotsChecker struct {
	mu        sync.RWMutex
	cache     map[string]*robotsRules
	userAgent string
	client    *http.Client
	logger    *log.Logger
	// basePath is tried as a fallback location, for sites published under
	// a subdirectory (e.g. "/my-site/robots.txt" on GitHub Pages).
	basePath string
}

type robotsRules struct {
	disallow []string
	allow    []string
}

// NewRobotsChecker creates a checker matching User-agent groups against userAgent.
func NewRobotsChecker(userAgent string, client *http.Client, logger *log.Logger) *RobotsChecker {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RobotsChecker{
		cache:     make(map[string]*robotsRules),
		userAgent: userAgent,
		client:    client,
		logger:    logger,
	}
}

// SetBasePath sets the subdirectory fallback location. It is normalized to
// a leading slash and no trailing slash; "" disables the fallback.
func (r *RobotsChecker) SetBasePath(basePath string) {
	if basePath != "" {
		if !strings.HasPrefix(basePath, "/") {
			basePath = "/" + basePath
		}
		basePath = strings.TrimSuffix(basePath, "/")
	}
	r.mu.Lock()
	r.basePath = basePath
	r.mu.Unlock()
}

// IsAllowed reports whether targetURL may be fetched. The longest matching
// rule wins; on a tie Disallow wins over Allow only if strictly longer.
func (r *RobotsChecker) IsAllowed(ctx context.Context, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return true
	}

	rules := r.rulesFor(ctx, u.Scheme, u.Host)
	if rules == nil {
		return true
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	allowed := true
	matched := 0
	for _, rule := range rules.allow {
		if pathMatches(p, rule) && len(rule) > matched {
			allowed, matched = true, len(rule)
		}
	}
	for _, rule := range rules.disallow {
		if pathMatches(p, rule) && len(rule) > matched {
			allowed, matched = false, len(rule)
		}
	}
	return allowed
}

func (r *RobotsChecker) rulesFor(ctx context.Context, scheme, host string) *robotsRules {
	r.mu.RLock()
	basePath := r.basePath
	key := scheme + "://" + host + basePath
	rules, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return rules
	}

	origin := scheme + "://" + host
	rules = r.fetch(ctx, origin+"/robots.txt")
	if rules == nil && basePath != "" {
		r.logger.Printf("Root robots.txt not found, trying %s%s/robots.txt", origin, basePath)
		rules = r.fetch(ctx, origin+basePath+"/robots.txt")
	}

	r.mu.Lock()
	r.cache[key] = rules
	r.mu.Unlock()
	return rules
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) *robotsRules {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	return r.parse(resp.Body)
}

// parse keeps the groups addressed to our user agent, falling back to the
// "*" group when none are.
func (r *RobotsChecker) parse(reader io.Reader) *robotsRules {
	ours := &robotsRules{}
	wildcard := &robotsRules{}
	agent := strings.ToLower(r.userAgent)

	var target *robotsRules
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			ua := strings.ToLower(value)
			switch {
			case ua == "*":
				target = wildcard
			case ua != "" && strings.Contains(agent, ua):
				target = ours
			default:
				target = nil
			}
		case "disallow":
			// an empty Disallow allows everything
			if target != nil && value != "" {
				target.disallow = append(target.disallow, value)
			}
		case "allow":
			if target != nil && value != "" {
				target.allow = append(target.allow, value)
			}
		}
	}

	if len(ours.disallow) == 0 && len(ours.allow) == 0 {
		return wildcard
	}
	return ours
}

// pathMatches implements robots.txt path matching: prefix match, "*"
// wildcards and a trailing "$" end anchor.
func pathMatches(p, pattern string) bool {
	if pattern == "" {
		return false
	}

	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}

	if !strings.Contains(pattern, "*") {
		if anchored {
			return p == pattern
		}
		return strings.HasPrefix(p, pattern)
	}

	parts := strings.Split(pattern, "*")
	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(p[pos:], part)
		if idx == -1 || (i == 0 && idx != 0) {
			return false
		}
		pos += idx + len(part)
	}

	if anchored {
		// the last literal must end the path unless the pattern ends in "*"
		last := parts[len(parts)-1]
		return last == "" || strings.HasSuffix(p, last)
	}
	return true
}
