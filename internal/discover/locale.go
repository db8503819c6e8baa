package discover

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LocaleConfig controls how locale variants of a page are recognised.
type LocaleConfig struct {
	// Priority lists preferred locales, most preferred first.
	Priority []string
	// ParamName is the locale query parameter (e.g. "hl"). Empty means
	// locales are detected from the first path segment.
	ParamName string
}

// DefaultLocalePriority prefers the Arabic pages of a bilingual site.
var DefaultLocalePriority = []string{"ar", "en"}

// KnownLocales are the codes recognised as a leading path segment.
var KnownLocales = map[string]bool{
	"ar": true, "ar-sa": true, "ar-ae": true, "ar-eg": true, "ar-ye": true,
	"en": true, "en-us": true, "en-gb": true,
	"fr": true, "fr-fr": true,
	"de": true, "de-de": true,
	"es": true, "es-es": true,
	"tr": true, "fa": true, "ur": true,
	"ja": true, "zh": true, "zh-cn": true, "zh-tw": true,
	"ru": true, "it": true, "pt": true, "pt-br": true,
	"nl": true, "id": true, "ms": true,
}

var localePathPattern = regexp.MustCompile(`^/([a-zA-Z]{2}(?:-[a-zA-Z]{2,4})?)(/|$)`)

// ExtractLocale splits u into its locale and the path shared by all of its
// locale variants.
//
//	/ar/about.html   -> "ar", "/about.html"
//	/about.html?hl=en -> "en", "/about.html" (ParamName "hl")
func ExtractLocale(u *url.URL, cfg *LocaleConfig) (locale, canonical string) {
	if u == nil {
		return "", ""
	}

	if cfg != nil && cfg.ParamName != "" {
		return NormalizeLocale(u.Query().Get(cfg.ParamName)), u.Path
	}

	path := u.Path
	m := localePathPattern.FindStringSubmatch(path)
	if m != nil && KnownLocales[strings.ToLower(m[1])] {
		canonical = strings.TrimPrefix(path, "/"+m[1])
		if canonical == "" {
			canonical = "/"
		}
		return NormalizeLocale(m[1]), canonical
	}
	return "", path
}

// ExtractHreflang collects <link rel="alternate" hreflang> targets keyed by
// normalized locale, resolved against base. x-default is skipped.
func ExtractHreflang(doc *goquery.Document, base *url.URL) map[string]string {
	result := make(map[string]string)
	if doc == nil {
		return result
	}
	doc.Find(`link[rel="alternate"][hreflang][href]`).Each(func(_ int, s *goquery.Selection) {
		lang, _ := s.Attr("hreflang")
		href, _ := s.Attr("href")
		lang = NormalizeLocale(lang)
		if lang == "" || lang == "x-default" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		ref.Fragment = ""
		result[lang] = ref.String()
	})
	return result
}

// SelectPreferredLocaleURL picks the alternate for the highest-priority
// locale. Without a match the alphabetically first locale is used.
func SelectPreferredLocaleURL(alternates map[string]string, priority []string) (locale, target string) {
	if len(alternates) == 0 {
		return "", ""
	}
	for _, loc := range priority {
		loc = NormalizeLocale(loc)
		if u, ok := alternates[loc]; ok {
			return loc, u
		}
	}

	locales := make([]string, 0, len(alternates))
	for loc := range alternates {
		locales = append(locales, loc)
	}
	sort.Strings(locales)
	return locales[0], alternates[locales[0]]
}

// NormalizeLocale lower-cases a locale code and folds regional variants
// that share a language onto it.
func NormalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	locale = strings.ReplaceAll(locale, "_", "-")
	switch locale {
	case "ar-sa", "ar-ae", "ar-eg", "ar-ye":
		return "ar"
	case "en-us", "en-gb":
		return "en"
	case "fr-fr":
		return "fr"
	case "zh-hans", "zh-cn":
		return "zh-cn"
	case "zh-hant", "zh-tw":
		return "zh-tw"
	}
	return locale
}

// localeRank orders locales by priority. Unlisted locales rank after listed
// ones, and pages without a locale rank last.
func localeRank(locale string, priority []string) int {
	if locale == "" {
		return len(priority) + 1
	}
	for i, p := range priority {
		if NormalizeLocale(p) == locale {
			return i
		}
	}
	return len(priority)
}
