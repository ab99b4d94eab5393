package placement

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/apiforge/apiforge/internal/analyzer"
	"github.com/apiforge/apiforge/internal/config"
)

type staticAnalyzer struct {
	analysis *analyzer.Analysis
}

func (s *staticAnalyzer) Analyze(ctx context.Context, root, hint string) (*analyzer.Analysis, error) {
	return s.analysis, nil
}

func placementConfig() config.PlacementConfig {
	return config.DefaultConfig().Placement
}

func TestExtractKeyword(t *testing.T) {
	cfg := placementConfig()

	tests := []struct {
		name string
		path string
		want string
	}{
		{"exact domain", "/api/limit/listUnitLimit", "limit"},
		{"stylistic prefix stripped", "/api/lsLimit/listUnitLimitByCompanyId", "limit"},
		{"substring match", "/api/userCenter/getProfile", "user"},
		{"generic prefixes skipped", "/api/v2/order/create", "order"},
		{"unmapped keyword lowercased", "/api/warehouse/list", "warehouse"},
		{"empty path", "/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeyword(tt.path, cfg)
			if got != tt.want {
				t.Fatalf("ExtractKeyword(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolvePrefersKeywordDirOverLargerDir(t *testing.T) {
	root := filepath.Join("/", "repo")
	a := &staticAnalyzer{analysis: &analyzer.Analysis{
		Root: root,
		Modules: []analyzer.Module{
			{Path: filepath.Join(root, "user-center", "src", "main", "java", "com", "acme", "user"), UnitCount: 120},
			{Path: filepath.Join(root, "limit", "src", "main", "java", "com", "acme", "limit"), UnitCount: 9},
		},
	}}

	r := NewResolver(a, placementConfig())
	d := Descriptor{Method: "GET", Path: "/api/lsLimit/listUnitLimitByCompanyId"}

	p, err := r.Resolve(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Keyword != "limit" {
		t.Fatalf("keyword = %q, want limit", p.Keyword)
	}
	wantDir := filepath.Join(root, "limit", "src", "main", "java", "com", "acme", "limit")
	if p.Dir != wantDir {
		t.Fatalf("dir = %q, want %q", p.Dir, wantDir)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	root := filepath.Join("/", "repo")
	a := &staticAnalyzer{analysis: &analyzer.Analysis{
		Root: root,
		Modules: []analyzer.Module{
			{Path: filepath.Join(root, "a", "b", "service"), UnitCount: 10},
			{Path: filepath.Join(root, "a", "c", "service"), UnitCount: 10},
		},
	}}

	r := NewResolver(a, placementConfig())
	d := Descriptor{Method: "POST", Path: "/api/warehouse/create"}

	first, err := r.Resolve(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < 10; i++ {
		p, err := r.Resolve(context.Background(), d, root)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if p.Dir != first.Dir || p.Mode != first.Mode {
			t.Fatalf("run %d differs: got (%s, %s), want (%s, %s)", i, p.Dir, p.Mode, first.Dir, first.Mode)
		}
	}
}

func TestResolveExtendVsCreate(t *testing.T) {
	root := filepath.Join("/", "repo")
	limitDir := filepath.Join(root, "limit", "controller")

	tests := []struct {
		name     string
		entries  []analyzer.EntryPoint
		path     string
		wantMode Mode
	}{
		{
			name: "read extends near-match controller",
			entries: []analyzer.EntryPoint{{
				Name:       "LimitController",
				File:       filepath.Join(limitDir, "LimitController.java"),
				BaseRoutes: []string{"/api/limit"},
			}},
			path:     "/api/limit/listUnitLimit",
			wantMode: ModeExtend,
		},
		{
			name: "no entry point means create",
			path: "/api/limit/listUnitLimit", wantMode: ModeCreate,
		},
		{
			name: "unrelated controller means create",
			entries: []analyzer.EntryPoint{{
				Name: "HealthCheck",
				File: filepath.Join(limitDir, "HealthCheck.java"),
			}},
			path:     "/api/limit/saveUnitLimit",
			wantMode: ModeCreate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &staticAnalyzer{analysis: &analyzer.Analysis{
				Root:        root,
				Modules:     []analyzer.Module{{Path: limitDir, UnitCount: 5}},
				EntryPoints: tt.entries,
			}}
			r := NewResolver(a, placementConfig())

			p, err := r.Resolve(context.Background(), Descriptor{Method: "GET", Path: tt.path}, root)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if p.Mode != tt.wantMode {
				t.Fatalf("mode = %s (similarity %.2f), want %s", p.Mode, p.Similarity, tt.wantMode)
			}
			if tt.wantMode == ModeExtend && p.EntryPoint == nil {
				t.Fatal("extend placement missing entry point")
			}
		})
	}
}

func TestResolveEmptyTreeFallsBackToDefaultDir(t *testing.T) {
	root := filepath.Join("/", "empty")
	a := &staticAnalyzer{analysis: &analyzer.Analysis{Root: root}}

	r := NewResolver(a, placementConfig())
	p, err := r.Resolve(context.Background(), Descriptor{Method: "GET", Path: "/api/limit/list"}, root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(root, "src", "main", "java", "limit")
	if p.Dir != want {
		t.Fatalf("dir = %q, want %q", p.Dir, want)
	}
	if p.Mode != ModeCreate {
		t.Fatalf("mode = %s, want create", p.Mode)
	}
}

type fixedJudge struct {
	pick     string
	judgment EntryPointJudgment
}

func (f fixedJudge) JudgeDir(ctx context.Context, d Descriptor, candidates []string) (string, error) {
	return f.pick, nil
}

func (f fixedJudge) JudgeEntryPoints(ctx context.Context, d Descriptor, candidates []analyzer.EntryPoint) (EntryPointJudgment, error) {
	return f.judgment, nil
}

func TestResolveJudgeOverridesScoring(t *testing.T) {
	root := filepath.Join("/", "repo")
	userDir := filepath.Join(root, "user", "service")
	limitDir := filepath.Join(root, "limit", "service")
	a := &staticAnalyzer{analysis: &analyzer.Analysis{
		Root: root,
		Modules: []analyzer.Module{
			{Path: limitDir, UnitCount: 5},
			{Path: userDir, UnitCount: 5},
		},
	}}

	r := NewResolver(a, placementConfig()).WithJudge(fixedJudge{pick: userDir})
	p, err := r.Resolve(context.Background(), Descriptor{Method: "GET", Path: "/api/limit/list"}, root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Dir != userDir {
		t.Fatalf("dir = %q, want judge pick %q", p.Dir, userDir)
	}
}

func TestResolveEntryPointJudgeDecidesExtend(t *testing.T) {
	root := filepath.Join("/", "repo")
	limitDir := filepath.Join(root, "limit", "service")
	a := &staticAnalyzer{analysis: &analyzer.Analysis{
		Root:    root,
		Modules: []analyzer.Module{{Path: limitDir, UnitCount: 5}},
		EntryPoints: []analyzer.EntryPoint{
			{Name: "OpsGateway", File: filepath.Join(limitDir, "OpsGateway.java")},
		},
	}}

	// Rule-based similarity for OpsGateway would be zero; the judge's
	// verdict carries the extend decision.
	j := fixedJudge{judgment: EntryPointJudgment{Index: 0, Similarity: 0.9, Extend: true}}
	r := NewResolver(a, placementConfig()).WithJudge(j)
	p, err := r.Resolve(context.Background(), Descriptor{Method: "GET", Path: "/api/limit/list"}, root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Mode != ModeExtend {
		t.Fatalf("mode = %s, want extend", p.Mode)
	}
	if p.EntryPoint == nil || p.EntryPoint.Name != "OpsGateway" {
		t.Fatalf("entry point = %+v, want OpsGateway", p.EntryPoint)
	}
	if p.Similarity != 0.9 {
		t.Fatalf("similarity = %.2f, want judge's 0.90", p.Similarity)
	}
}

func TestResolveEntryPointJudgeVetoesExtend(t *testing.T) {
	root := filepath.Join("/", "repo")
	limitDir := filepath.Join(root, "limit", "service")
	a := &staticAnalyzer{analysis: &analyzer.Analysis{
		Root:    root,
		Modules: []analyzer.Module{{Path: limitDir, UnitCount: 5}},
		EntryPoints: []analyzer.EntryPoint{
			{Name: "LimitController", File: filepath.Join(limitDir, "LimitController.java"), BaseRoutes: []string{"/api/limit"}},
		},
	}}

	j := fixedJudge{judgment: EntryPointJudgment{Index: -1, Similarity: 0.2}}
	r := NewResolver(a, placementConfig()).WithJudge(j)
	p, err := r.Resolve(context.Background(), Descriptor{Method: "GET", Path: "/api/limit/listUnitLimit"}, root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Mode != ModeCreate {
		t.Fatalf("mode = %s, want create when judge finds no match", p.Mode)
	}
}

func TestEntryPointSimilarityUsesDeclaredRoutes(t *testing.T) {
	segments := []string{"api", "limit", "listUnitLimit"}

	without := entryPointSimilarity("OpsGateway", nil, "", segments)
	with := entryPointSimilarity("OpsGateway", []string{"/api/limit"}, "", segments)

	if with <= without {
		t.Fatalf("route overlap did not raise similarity: with=%.2f without=%.2f", with, without)
	}
	// Two of three path segments appear in the declared route.
	if with < 0.19 || with > 0.21 {
		t.Fatalf("similarity = %.3f, want ~0.20 from route segment overlap", with)
	}
}

func TestDescriptorVerbClassification(t *testing.T) {
	tests := []struct {
		path   string
		intent string
		read   bool
		export bool
	}{
		{"/api/limit/listUnitLimit", "", true, false},
		{"/api/limit/saveUnitLimit", "", false, false},
		{"/api/report/exportMonthly", "", false, true},
		{"/api/order/push", "sync orders to partner", false, true},
	}
	for _, tt := range tests {
		d := Descriptor{Path: tt.path, Intent: tt.intent}
		if got := d.IsRead(); got != tt.read {
			t.Errorf("IsRead(%q) = %v, want %v", tt.path, got, tt.read)
		}
		if got := d.IsExport(); got != tt.export {
			t.Errorf("IsExport(%q) = %v, want %v", tt.path, got, tt.export)
		}
	}
}
