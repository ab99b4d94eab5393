package placement

import "strings"

var businessTokens = []string{
	"controller", "service", "mapper", "dto", "entity", "vo", "biz",
}

// entryPointSimilarity estimates how close an existing entry point is to the
// requested operation's domain. Returns a value in [0, 1]. Three signals:
// the declared name contains the business keyword (strongest), the declared
// base routes share path segments with the target path (weighted by the
// fraction of shared segments), and a small bonus for generic business
// tokens in the name. The score drives the extend-vs-create decision.
func entryPointSimilarity(entryName string, baseRoutes []string, keyword string, descriptorSegments []string) float64 {
	score := 0.0

	lowerName := strings.ToLower(entryName)
	if keyword != "" && strings.Contains(lowerName, strings.ToLower(keyword)) {
		score += 0.5
	}

	if len(descriptorSegments) > 0 && len(baseRoutes) > 0 {
		routeSegments := make(map[string]bool)
		for _, route := range baseRoutes {
			for _, seg := range strings.Split(strings.Trim(route, "/"), "/") {
				if seg != "" {
					routeSegments[strings.ToLower(seg)] = true
				}
			}
		}
		shared := 0
		for _, seg := range descriptorSegments {
			if routeSegments[strings.ToLower(seg)] {
				shared++
			}
		}
		score += float64(shared) / float64(len(descriptorSegments)) * 0.3
	}

	for _, tok := range businessTokens {
		if strings.Contains(lowerName, tok) {
			score += 0.2
			break
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
