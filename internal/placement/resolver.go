package placement

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apiforge/apiforge/internal/analyzer"
	"github.com/apiforge/apiforge/internal/config"
	"github.com/apiforge/apiforge/internal/logging"
)

// Mode says whether the resolver chose to extend an existing entry point or
// to create a new unit in the chosen directory.
type Mode string

const (
	ModeExtend Mode = "extend"
	ModeCreate Mode = "create"
)

// Placement is the resolver's answer: where generated artifacts belong and
// whether an existing entry point should absorb the new operation.
type Placement struct {
	Dir        string
	Keyword    string
	EntryPoint *analyzer.EntryPoint
	Mode       Mode
	Similarity float64
}

// EntryPointJudgment is the judge's verdict on candidate entry points: the
// best match, how similar it is, and whether to extend it or create a new
// unit.
type EntryPointJudgment struct {
	Index      int // into the candidate slice, -1 when nothing matches
	Similarity float64
	Extend     bool
}

// SemanticJudge ranks placement candidates using an external signal, such
// as a language model. A nil judge means rule-based scoring decides alone;
// a judge error on either method falls back to the rules.
type SemanticJudge interface {
	JudgeDir(ctx context.Context, d Descriptor, candidates []string) (string, error)
	JudgeEntryPoints(ctx context.Context, d Descriptor, candidates []analyzer.EntryPoint) (EntryPointJudgment, error)
}

// Resolver decides target directories for generated artifacts. Safe for
// concurrent use as long as the underlying analyzer is.
type Resolver struct {
	analyzer analyzer.Analyzer
	weights  ScoreWeights
	cfg      config.PlacementConfig
	judge    SemanticJudge
}

func NewResolver(a analyzer.Analyzer, cfg config.PlacementConfig) *Resolver {
	return &Resolver{
		analyzer: a,
		weights:  DefaultScoreWeights(),
		cfg:      cfg,
	}
}

// WithJudge installs a semantic judge consulted before rule-based ranking.
func (r *Resolver) WithJudge(j SemanticJudge) *Resolver {
	r.judge = j
	return r
}

// Resolve picks a directory and an extend-or-create mode for the described
// operation. It never fails to place: when nothing in the tree matches, it
// degrades to a conservative default under the project root.
func (r *Resolver) Resolve(ctx context.Context, d Descriptor, root string) (*Placement, error) {
	keyword := ExtractKeyword(d.Path, r.cfg)

	analysis, err := r.analyzer.Analyze(ctx, root, keyword)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", root, err)
	}

	dir := r.chooseDir(ctx, d, keyword, root, analysis)

	placement := &Placement{
		Dir:     dir,
		Keyword: keyword,
		Mode:    ModeCreate,
	}

	entry, similarity, extend := r.matchEntryPoint(ctx, d, keyword, dir, analysis)
	if entry != nil {
		placement.Similarity = similarity
		if extend {
			placement.EntryPoint = entry
			placement.Mode = ModeExtend
		}
	}

	logging.Logger().WithFields(map[string]interface{}{
		"path":    d.Path,
		"keyword": keyword,
		"dir":     placement.Dir,
		"mode":    placement.Mode,
	}).Debug("placement resolved")

	return placement, nil
}

func (r *Resolver) extendThreshold(d Descriptor) float64 {
	if d.IsRead() {
		return r.cfg.ExtendThresholdRead
	}
	return r.cfg.ExtendThresholdWrite
}

func (r *Resolver) chooseDir(ctx context.Context, d Descriptor, keyword, root string, analysis *analyzer.Analysis) string {
	candidates := buildCandidates(root, analysis)
	if len(candidates) == 0 {
		return defaultDir(root, keyword)
	}

	if r.judge != nil {
		paths := make([]string, len(candidates))
		for i, c := range candidates {
			paths[i] = c.Path
		}
		chosen, err := r.judge.JudgeDir(ctx, d, paths)
		if err == nil && chosen != "" {
			for _, c := range candidates {
				if c.Path == chosen {
					return chosen
				}
			}
			logging.Logger().Warnf("judge picked unknown candidate %q, falling back to scoring", chosen)
		} else if err != nil {
			logging.Logger().Warnf("semantic judge failed: %v", err)
		}
	}

	for i := range candidates {
		candidates[i].Score = r.weights.Score(candidates[i], keyword)
	}

	// Ties break toward the deeper, then lexicographically smaller path so
	// repeated calls with identical inputs return identical results.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Depth != candidates[j].Depth {
			return candidates[i].Depth > candidates[j].Depth
		}
		return candidates[i].Path < candidates[j].Path
	})

	best := candidates[0]
	if best.Score <= 0 {
		return defaultDir(root, keyword)
	}
	return best.Path
}

// matchEntryPoint picks the best existing entry point under dir and decides
// whether to extend it. The semantic judge is preferred when installed; the
// rule-based similarity score against the configured threshold decides
// otherwise.
func (r *Resolver) matchEntryPoint(ctx context.Context, d Descriptor, keyword, dir string, analysis *analyzer.Analysis) (*analyzer.EntryPoint, float64, bool) {
	var candidates []analyzer.EntryPoint
	for _, ep := range analysis.EntryPoints {
		if strings.HasPrefix(filepath.ToSlash(ep.File), filepath.ToSlash(dir)) {
			candidates = append(candidates, ep)
		}
	}
	if len(candidates) == 0 {
		return nil, 0, false
	}

	if r.judge != nil {
		j, err := r.judge.JudgeEntryPoints(ctx, d, candidates)
		if err == nil {
			if j.Index < 0 || j.Index >= len(candidates) {
				return nil, j.Similarity, false
			}
			return &candidates[j.Index], j.Similarity, j.Extend
		}
		logging.Logger().Warnf("entry point judge failed: %v", err)
	}

	segments := d.PathSegments()
	var best *analyzer.EntryPoint
	bestScore := -1.0
	for i := range candidates {
		s := entryPointSimilarity(candidates[i].Name, candidates[i].BaseRoutes, keyword, segments)
		if s > bestScore {
			best = &candidates[i]
			bestScore = s
		}
	}
	return best, bestScore, bestScore >= r.extendThreshold(d)
}

func buildCandidates(root string, analysis *analyzer.Analysis) []Candidate {
	rootSlash := filepath.ToSlash(filepath.Clean(root))
	candidates := make([]Candidate, 0, len(analysis.Modules))
	for _, m := range analysis.Modules {
		path := filepath.ToSlash(filepath.Clean(m.Path))
		rel := strings.TrimPrefix(path, rootSlash)
		rel = strings.Trim(rel, "/")
		depth := 0
		if rel != "" {
			depth = strings.Count(rel, "/") + 1
		}
		candidates = append(candidates, Candidate{
			Path:      m.Path,
			UnitCount: m.UnitCount,
			Depth:     depth,
		})
	}
	return candidates
}

func defaultDir(root, keyword string) string {
	if keyword == "" {
		return filepath.Join(root, "src", "main", "java")
	}
	return filepath.Join(root, "src", "main", "java", keyword)
}
