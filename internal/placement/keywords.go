package placement

import (
	"regexp"
	"sort"
	"strings"

	"github.com/apiforge/apiforge/internal/config"
)

// genericPrefixes are path segments that carry no business meaning and are
// skipped when extracting the business keyword.
var genericPrefixes = map[string]bool{
	"api": true, "rest": true, "web": true, "admin": true,
	"public": true, "internal": true, "open": true,
}

var versionSegmentRe = regexp.MustCompile(`^v\d+$`)

// ExtractKeyword derives the business keyword from an API path: the first
// path segment that is not a known generic prefix, resolved through the
// configured keyword->domain mapping. Resolution priority: exact match,
// stylistic-prefix-stripped match, substring match; unresolved tokens fall
// back to their lowercase form.
func ExtractKeyword(path string, cfg config.PlacementConfig) string {
	var raw string
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		lower := strings.ToLower(segment)
		if segment == "" || genericPrefixes[lower] || versionSegmentRe.MatchString(lower) {
			continue
		}
		raw = segment
		break
	}
	if raw == "" {
		return ""
	}

	lower := strings.ToLower(raw)
	stripped := stripStylisticPrefix(lower, cfg.StylisticPrefixes)

	if domain, ok := lookupExact(lower, cfg.KeywordDomains); ok {
		return domain
	}
	if stripped != lower {
		if domain, ok := lookupExact(stripped, cfg.KeywordDomains); ok {
			return domain
		}
	}
	if domain, ok := lookupSubstring(stripped, cfg.KeywordDomains); ok {
		return domain
	}
	return stripped
}

func stripStylisticPrefix(keyword string, prefixes []string) string {
	for _, p := range prefixes {
		p = strings.ToLower(p)
		if len(keyword) > len(p) && strings.HasPrefix(keyword, p) {
			return strings.ToLower(keyword[len(p):])
		}
	}
	return keyword
}

func lookupExact(keyword string, domains map[string]string) (string, bool) {
	domain, ok := domains[keyword]
	return domain, ok
}

// lookupSubstring checks mapping keys in sorted order so resolution is
// deterministic when several keys are substrings of the keyword.
func lookupSubstring(keyword string, domains map[string]string) (string, bool) {
	keys := make([]string, 0, len(domains))
	for k := range domains {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(keyword, k) {
			return domains[k], true
		}
	}
	return "", false
}
