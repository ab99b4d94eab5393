// Package scheduler runs the worker loop: it fetches runnable tasks from
// the ledger, claims them exclusively, and dispatches each claim to the
// handler registered for its kind.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apiforge/apiforge/internal/analyzer"
	"github.com/apiforge/apiforge/internal/config"
	"github.com/apiforge/apiforge/internal/events"
	"github.com/apiforge/apiforge/internal/ledger"
	"github.com/apiforge/apiforge/internal/oracle"
	"github.com/apiforge/apiforge/internal/placement"
	"github.com/apiforge/apiforge/internal/session"
)

// Handler executes one claimed task and returns the result fields to merge
// into the task's ledger record. A returned error marks the task failed.
type Handler interface {
	Handle(ctx context.Context, task *ledger.Task) (map[string]any, error)
}

// Registry maps task kinds to their handlers.
type Registry map[ledger.Kind]Handler

// GenerationPayload is the serialized payload of a generation task.
type GenerationPayload struct {
	Root       string               `json:"root"`
	Descriptor placement.Descriptor `json:"descriptor"`
}

// GenerationHandler runs the full generation pipeline for one task:
// placement resolution, then a convergence-loop session against the oracle.
// NewOracle is called once per task so each session gets its own oracle
// conversation; concurrent tasks never share context.
type GenerationHandler struct {
	Store     *ledger.Store
	NewOracle func() (oracle.Oracle, error)
	Breakers  *oracle.BreakerRegistry
	Cfg       *config.Config
	Analyzer  analyzer.Analyzer
	Cache     *analyzer.Cache // optional, invalidated as the session writes
	Resolver  *placement.Resolver
	Locks     *PathLockManager
	Bus       *events.Bus
}

func (h *GenerationHandler) Handle(ctx context.Context, task *ledger.Task) (map[string]any, error) {
	var payload GenerationPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode generation payload: %w", err)
	}
	if payload.Root == "" {
		return nil, fmt.Errorf("generation payload missing root")
	}

	place, err := h.Resolver.Resolve(ctx, payload.Descriptor, payload.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve placement: %w", err)
	}

	analysis, err := h.Analyzer.Analyze(ctx, payload.Root, place.Keyword)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", payload.Root, err)
	}

	provider := h.Cfg.Generation.Provider
	providerCfg := h.Cfg.Providers[provider]

	orc, err := h.NewOracle()
	if err != nil {
		return nil, fmt.Errorf("create oracle: %w", err)
	}
	defer orc.Close()

	var invalidate func(string)
	if h.Cache != nil {
		invalidate = h.Cache.Invalidate
	}

	s := session.New(session.Options{
		TaskID:     task.ID,
		Descriptor: payload.Descriptor,
		Placement:  place,
		Features:   analysis.Features,
		Root:       payload.Root,
		Oracle:     orc,
		Breaker:    h.Breakers.Get(provider),
		Retry:      h.Cfg.Retry,
		Gen:        h.Cfg.Generation,
		Analyzer:   h.Analyzer,
		Recorder:   h.Store,
		Bus:        h.Bus,
		Locks:      h.Locks,
		MaxTokens:  providerCfg.MaxTokens,
		Invalidate: invalidate,
	})

	res := s.Run(ctx)

	artifacts := make([]map[string]any, 0, len(res.Produced))
	for role, a := range res.Produced {
		artifacts = append(artifacts, map[string]any{
			"role":  string(role),
			"path":  a.TargetPath,
			"valid": a.Valid,
		})
	}
	result := map[string]any{
		"generation_mode": res.Mode,
		"rounds":          res.Rounds,
		"state":           string(res.State),
		"keyword":         place.Keyword,
		"dir":             place.Dir,
		"artifacts":       artifacts,
		"unclassified":    len(res.Unclassified),
	}

	if res.State != session.StateCompleted {
		return result, fmt.Errorf("session %s: %s", res.State, res.Message)
	}
	return result, nil
}

// AnalysisHandler runs a standalone codebase analysis task and records the
// structural summary as the task result.
type AnalysisHandler struct {
	Analyzer analyzer.Analyzer
}

type analysisPayload struct {
	Root string `json:"root"`
	Hint string `json:"hint,omitempty"`
}

func (h *AnalysisHandler) Handle(ctx context.Context, task *ledger.Task) (map[string]any, error) {
	var payload analysisPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode analysis payload: %w", err)
	}

	analysis, err := h.Analyzer.Analyze(ctx, payload.Root, payload.Hint)
	if err != nil {
		return nil, err
	}

	entryPoints := make([]string, len(analysis.EntryPoints))
	for i, ep := range analysis.EntryPoints {
		entryPoints[i] = ep.Name
	}
	return map[string]any{
		"modules":      len(analysis.Modules),
		"entry_points": entryPoints,
		"mybatis_plus": analysis.Features.MyBatisPlus,
		"lombok":       analysis.Features.Lombok,
	}, nil
}

// PassthroughHandler records the task payload as its result. Schema and
// config tasks exist as dependency anchors for generation tasks; their real
// processing lives outside this worker.
type PassthroughHandler struct{}

func (PassthroughHandler) Handle(ctx context.Context, task *ledger.Task) (map[string]any, error) {
	result := map[string]any{}
	if len(task.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", task.Kind, err)
		}
		result["payload"] = payload
	}
	return result, nil
}
