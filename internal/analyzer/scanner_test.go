package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const limitController = `package com.acme.limit.controller;

import org.springframework.web.bind.annotation.RestController;
import org.springframework.web.bind.annotation.RequestMapping;
import com.baomidou.mybatisplus.core.metadata.IPage;
import lombok.RequiredArgsConstructor;

@RestController
@RequestMapping("/api/limit")
@RequiredArgsConstructor
public class LimitController {

    public IPage<LimitVO> list(LimitQuery query) {
        return null;
    }
}
`

const plainService = `package com.acme.limit.service;

public class LimitService {
}
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestScannerFindsEntryPoints(t *testing.T) {
	root := writeTree(t, map[string]string{
		"biz-limit/src/main/java/com/acme/limit/controller/LimitController.java": limitController,
		"biz-limit/src/main/java/com/acme/limit/service/LimitService.java":       plainService,
		"biz-limit/target/classes/Junk.java":                                     limitController, // build output, skipped
	})

	analysis, err := NewScanner().Analyze(context.Background(), root, "")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(analysis.EntryPoints) != 1 {
		t.Fatalf("expected 1 entry point, got %d", len(analysis.EntryPoints))
	}
	ep := analysis.EntryPoints[0]
	if ep.Name != "LimitController" {
		t.Errorf("expected name LimitController, got %q", ep.Name)
	}
	if len(ep.BaseRoutes) != 1 || ep.BaseRoutes[0] != "/api/limit" {
		t.Errorf("expected base route /api/limit, got %v", ep.BaseRoutes)
	}

	if !analysis.Features.MyBatisPlus || !analysis.Features.Lombok {
		t.Errorf("expected MyBatisPlus and Lombok detected: %+v", analysis.Features)
	}
	if analysis.Features.Feign {
		t.Errorf("Feign should not be detected: %+v", analysis.Features)
	}

	if len(analysis.Modules) != 2 {
		t.Errorf("expected 2 module dirs, got %d: %v", len(analysis.Modules), analysis.Modules)
	}
}

func TestScannerSkipsTestAndSampleTrees(t *testing.T) {
	root := writeTree(t, map[string]string{
		"biz-limit/src/main/java/com/acme/limit/controller/LimitController.java": limitController,
		"biz-limit/src/test/java/com/acme/limit/LimitControllerTest.java":        limitController,
		"sample/src/main/java/DemoController.java":                               limitController,
	})

	analysis, err := NewScanner().Analyze(context.Background(), root, "")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(analysis.EntryPoints) != 1 {
		t.Fatalf("expected 1 entry point, got %d: %+v", len(analysis.EntryPoints), analysis.EntryPoints)
	}
	for _, m := range analysis.Modules {
		if filepath.Base(filepath.Dir(m.Path)) == "test" || filepath.Base(m.Path) == "sample" {
			t.Errorf("test/sample dir surfaced as module: %s", m.Path)
		}
	}
}

func TestScannerHintNarrowsScan(t *testing.T) {
	root := writeTree(t, map[string]string{
		"biz-limit/LimitController.java": limitController,
		"user-center/UserService.java":   plainService,
	})

	analysis, err := NewScanner().Analyze(context.Background(), root, "biz-limit")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(analysis.Modules) != 1 {
		t.Errorf("expected hint to narrow to 1 module, got %d", len(analysis.Modules))
	}
}

// countingAnalyzer counts delegated calls for cache tests.
type countingAnalyzer struct {
	calls int
}

func (c *countingAnalyzer) Analyze(ctx context.Context, root, hint string) (*Analysis, error) {
	c.calls++
	return &Analysis{Root: root}, nil
}

func TestCacheMemoizesAndInvalidates(t *testing.T) {
	inner := &countingAnalyzer{}
	cache := NewCache(inner)
	ctx := context.Background()

	if _, err := cache.Analyze(ctx, "/repo", ""); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if _, err := cache.Analyze(ctx, "/repo", ""); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 delegated call, got %d", inner.calls)
	}

	// Different hint is a different key.
	if _, err := cache.Analyze(ctx, "/repo", "biz-limit"); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 delegated calls, got %d", inner.calls)
	}

	cache.Invalidate("/repo")
	if _, err := cache.Analyze(ctx, "/repo", ""); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected invalidation to force a re-scan, got %d calls", inner.calls)
	}
}
