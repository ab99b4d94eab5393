package placement

import (
	"path/filepath"
	"strings"
)

// Candidate is one directory considered for placement. Candidates are
// ephemeral: produced and discarded within a single resolution call.
type Candidate struct {
	Path      string
	UnitCount int
	Depth     int
	Score     float64
}

// ScoreWeights is the explicit weight table for candidate scoring. Keeping
// the weights in one named structure lets them be tuned and tested
// independently of the search control flow.
type ScoreWeights struct {
	KeywordInPath  float64 // strongest signal: business keyword appears in the path
	DepthReward    float64 // per directory level, deeper = more specific
	DepthCap       int     // levels beyond this earn no extra depth reward
	LayerMarker    float64 // per recognized layer-marker segment
	UnitDensity    float64 // per source unit, capped by UnitDensityCap
	UnitDensityCap float64
	ShallowPenalty float64 // root-level candidates
	TestPenalty    float64 // test/sample/demo directories
}

// DefaultScoreWeights returns the tuned default table.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		KeywordInPath:  10.0,
		DepthReward:    1.0,
		DepthCap:       6,
		LayerMarker:    2.0,
		UnitDensity:    0.1,
		UnitDensityCap: 2.0,
		ShallowPenalty: 5.0,
		TestPenalty:    8.0,
	}
}

var layerMarkers = map[string]bool{
	"controller": true, "service": true, "mapper": true, "dao": true,
	"biz": true, "application": true, "domain": true, "rest": true,
	"web": true, "impl": true, "api": true,
}

var testMarkers = map[string]bool{
	"test": true, "tests": true, "sample": true, "samples": true,
	"demo": true, "example": true, "examples": true, "mock": true,
}

// Score computes the weighted sum for one candidate against the business
// keyword. Deterministic: same inputs always produce the same score.
func (w ScoreWeights) Score(c Candidate, keyword string) float64 {
	segments := strings.Split(filepath.ToSlash(c.Path), "/")

	score := 0.0

	if keyword != "" {
		lowerPath := strings.ToLower(filepath.ToSlash(c.Path))
		if strings.Contains(lowerPath, strings.ToLower(keyword)) {
			score += w.KeywordInPath
		}
	}

	depth := c.Depth
	if depth > w.DepthCap {
		depth = w.DepthCap
	}
	score += float64(depth) * w.DepthReward
	if c.Depth <= 1 {
		score -= w.ShallowPenalty
	}

	for _, segment := range segments {
		lower := strings.ToLower(segment)
		if layerMarkers[lower] {
			score += w.LayerMarker
		}
		if testMarkers[lower] {
			score -= w.TestPenalty
		}
	}

	density := float64(c.UnitCount) * w.UnitDensity
	if density > w.UnitDensityCap {
		density = w.UnitDensityCap
	}
	score += density

	return score
}
