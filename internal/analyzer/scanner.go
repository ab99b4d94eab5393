package analyzer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Scanner is the built-in Analyzer: a regex-based structural scan of a Java
// source tree. It goes no deeper than placement and prompt construction
// need.
type Scanner struct{}

// NewScanner creates a Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

var (
	controllerRe = regexp.MustCompile(`@(Rest)?Controller\b`)
	classNameRe  = regexp.MustCompile(`(?m)^\s*public\s+(?:final\s+)?class\s+(\w+)`)
	requestMapRe = regexp.MustCompile(`@RequestMapping\s*\(\s*(?:value\s*=\s*)?"([^"]+)"`)
	skipDirNames = map[string]bool{
		"target": true, "build": true, "out": true, "bin": true,
		"node_modules": true, ".git": true, ".idea": true, "generated": true,
		"test": true, "tests": true, "sample": true, "samples": true,
		"demo": true, "examples": true, "mocks": true,
	}
)

// Analyze walks root collecting modules, controllers, and framework features.
func (s *Scanner) Analyze(ctx context.Context, root, hint string) (*Analysis, error) {
	start := root
	if hint != "" {
		candidate := filepath.Join(root, hint)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			start = candidate
		}
	}

	analysis := &Analysis{Root: root}
	unitCounts := map[string]int{}

	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			name := d.Name()
			if skipDirNames[name] || strings.HasPrefix(name, ".") && path != start {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".java") {
			return nil
		}

		unitCounts[filepath.Dir(path)]++

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		text := string(data)

		s.detectFeatures(text, &analysis.Features)

		if controllerRe.MatchString(text) {
			ep := EntryPoint{File: path}
			if m := classNameRe.FindStringSubmatch(text); m != nil {
				ep.Name = m[1]
			}
			for _, m := range requestMapRe.FindAllStringSubmatch(text, -1) {
				ep.BaseRoutes = append(ep.BaseRoutes, m[1])
			}
			analysis.EntryPoints = append(analysis.EntryPoints, ep)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", start, err)
	}

	// Roll unit counts up into module entries: every directory that directly
	// contains source units is a module candidate.
	for dir, count := range unitCounts {
		analysis.Modules = append(analysis.Modules, Module{Path: dir, UnitCount: count})
	}

	return analysis, nil
}

func (s *Scanner) detectFeatures(text string, features *FrameworkFeatures) {
	if strings.Contains(text, "com.baomidou.mybatisplus") {
		features.MyBatisPlus = true
	}
	if strings.Contains(text, "import lombok.") {
		features.Lombok = true
	}
	if strings.Contains(text, "io.swagger") || strings.Contains(text, "springfox") {
		features.Swagger = true
	}
	if strings.Contains(text, "openfeign") || strings.Contains(text, "@FeignClient") {
		features.Feign = true
	}
}
