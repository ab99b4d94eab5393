package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apiforge/apiforge/internal/analyzer"
	"github.com/apiforge/apiforge/internal/config"
	"github.com/apiforge/apiforge/internal/ledger"
	"github.com/apiforge/apiforge/internal/oracle"
	"github.com/apiforge/apiforge/internal/placement"
)

// deadOracle fails every completion and counts Close calls.
type deadOracle struct {
	mu     sync.Mutex
	closed int
}

func (o *deadOracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	return "", errors.New("oracle unavailable")
}

func (o *deadOracle) Stream(ctx context.Context, req oracle.Request) (<-chan oracle.Chunk, error) {
	return nil, errors.New("oracle unavailable")
}

func (o *deadOracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
	return nil
}

func generationTask(t *testing.T, store *ledger.Store, id, root string) *ledger.Task {
	t.Helper()
	payload, err := json.Marshal(GenerationPayload{
		Root:       root,
		Descriptor: placement.Descriptor{Method: "POST", Path: "/api/limit/saveUnitLimit"},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	task := &ledger.Task{
		ID:        id,
		ProjectID: "p1",
		Kind:      ledger.KindGeneration,
		Status:    ledger.StatusPending,
		Payload:   payload,
	}
	if err := store.Put(context.Background(), task); err != nil {
		t.Fatalf("Put(%s): %v", id, err)
	}
	return task
}

func TestGenerationHandlerBuildsOraclePerTask(t *testing.T) {
	store := newTestStore(t)
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Generation.MaxRounds = 1
	cfg.Generation.EnableFallback = true
	cfg.Retry = config.RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  5 * time.Millisecond,
		Multiplier:      1.0,
	}

	var mu sync.Mutex
	var oracles []*deadOracle
	h := &GenerationHandler{
		Store: store,
		NewOracle: func() (oracle.Oracle, error) {
			mu.Lock()
			defer mu.Unlock()
			o := &deadOracle{}
			oracles = append(oracles, o)
			return o, nil
		},
		Breakers: oracle.NewBreakerRegistry(),
		Cfg:      cfg,
		Analyzer: analyzer.NewScanner(),
		Resolver: placement.NewResolver(analyzer.NewScanner(), cfg.Placement),
		Locks:    NewPathLockManager(),
	}

	for _, id := range []string{"g1", "g2"} {
		task := generationTask(t, store, id, root)
		if _, err := h.Handle(context.Background(), task); err != nil {
			t.Fatalf("Handle(%s): %v", id, err)
		}
	}

	if len(oracles) != 2 {
		t.Fatalf("oracle constructions = %d, want one per task", len(oracles))
	}
	for i, o := range oracles {
		if o.closed != 1 {
			t.Fatalf("oracle %d closed %d times, want 1", i, o.closed)
		}
	}
}
