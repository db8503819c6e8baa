// Package filter strips non-content regions (navigation, headers, footers,
// scripts) from a parsed page so that only content text is searchable.
package filter

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// StripSelector is always applied before any configured rule.
const StripSelector = "script, style"

// Rule decides whether an element and its whole subtree are excluded.
type Rule interface {
	Excludes(n *html.Node) bool
	String() string
}

type selectorRule struct {
	raw   string
	group cascadia.SelectorGroup
}

// SelectorRule excludes elements matching a CSS selector group.
func SelectorRule(selector string) (Rule, error) {
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude selector %q: %w", selector, err)
	}
	return &selectorRule{raw: selector, group: group}, nil
}

func (r *selectorRule) Excludes(n *html.Node) bool { return r.group.Match(n) }
func (r *selectorRule) String() string           { return "selector " + r.raw }

type classTokenRule struct {
	tokens []string
}

// ClassTokenRule excludes elements whose class attribute contains any of
// tokens as a case-insensitive substring.
func ClassTokenRule(tokens ...string) Rule {
	lower := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lower = append(lower, t)
		}
	}
	return &classTokenRule{tokens: lower}
}

func (r *classTokenRule) Excludes(n *html.Node) bool {
	if n.Type != html.ElementNode || len(r.tokens) == 0 {
		return false
	}
	for _, a := range n.Attr {
		if a.Namespace != "" || a.Key != "class" {
			continue
		}
		class := strings.ToLower(a.Val)
		for _, t := range r.tokens {
			if strings.Contains(class, t) {
				return true
			}
		}
	}
	return false
}

func (r *classTokenRule) String() string { return "class contains " + strings.Join(r.tokens, "|") }

// Filter removes excluded regions from documents.
type Filter struct {
	rules []Rule
}

// New builds a Filter from exclusion selectors and class tokens. The
// script/style rule is prepended.
func New(selectors, classTokens []string) (*Filter, error) {
	strip, err := SelectorRule(StripSelector)
	if err != nil {
		return nil, err
	}
	rules := []Rule{strip}
	for _, sel := range selectors {
		r, err := SelectorRule(sel)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if len(classTokens) > 0 {
		rules = append(rules, ClassTokenRule(classTokens...))
	}
	return &Filter{rules: rules}, nil
}

// Rules returns the rules in evaluation order.
func (f *Filter) Rules() []Rule {
	return append([]Rule(nil), f.rules...)
}

// Apply returns a deep copy of doc with every excluded element detached.
// doc itself is never modified.
//
// All rules are evaluated against the copy before anything is removed, so
// positional selectors see the original tree. Removal is physical: text of
// an excluded region cannot be reached from the returned document at all.
func (f *Filter) Apply(doc *goquery.Document) *goquery.Document {
	clone := goquery.CloneDocument(doc)

	var doomed []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && f.excludes(c) {
				doomed = append(doomed, c)
				continue
			}
			walk(c)
		}
	}
	for _, root := range clone.Nodes {
		walk(root)
	}

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return clone
}

func (f *Filter) excludes(n *html.Node) bool {
	for _, r := range f.rules {
		if r.Excludes(n) {
			return true
		}
	}
	return false
}
