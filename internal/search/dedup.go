package search

// Key is the fingerprint used to detect duplicate results: page URL,
// heading and the first prefix characters of the excerpt.
func Key(r Result, prefix int) string {
	excerpt, _ := Truncate(r.Excerpt, prefix)
	return r.PageURL + r.Heading + excerpt
}

// Dedupe keeps the first result for each Key, preserving order. A nested
// element (a <p> inside an <li>) usually yields the same block twice.
func Dedupe(results []Result, prefix int) []Result {
	seen := make(map[string]bool, len(results))
	unique := make([]Result, 0, len(results))
	for _, r := range results {
		k := Key(r, prefix)
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, r)
	}
	return unique
}
