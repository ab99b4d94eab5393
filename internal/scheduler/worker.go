package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/apiforge/apiforge/internal/config"
	"github.com/apiforge/apiforge/internal/events"
	"github.com/apiforge/apiforge/internal/ledger"
	"github.com/apiforge/apiforge/internal/logging"
)

// Worker drives scheduling rounds against the ledger. Multiple workers may
// run concurrently against the same store; the exclusive claim guarantees
// each task's side effects execute exactly once.
type Worker struct {
	store     *ledger.Store
	registry  Registry
	bus       *events.Bus
	cfg       config.WorkerConfig
	projectID string
	log       *logrus.Entry
}

func NewWorker(store *ledger.Store, registry Registry, bus *events.Bus, cfg config.WorkerConfig, projectID string) *Worker {
	return &Worker{
		store:     store,
		registry:  registry,
		bus:       bus,
		cfg:       cfg,
		projectID: projectID,
		log:       logging.Logger().WithField("component", "worker"),
	}
}

// Run executes scheduling rounds until a round claims nothing, the round
// safety bound is hit, or the context is cancelled. The bound guards
// against dependency graphs that never drain.
func (w *Worker) Run(ctx context.Context) error {
	kinds := make([]ledger.Kind, len(w.cfg.Kinds))
	for i, k := range w.cfg.Kinds {
		kinds[i] = ledger.Kind(k)
	}

	maxRounds := w.cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}

	for round := 1; round <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		runnable, err := w.store.ListRunnable(ctx, kinds, w.projectID)
		if err != nil {
			return fmt.Errorf("list runnable: %w", err)
		}

		claimed := w.claim(ctx, runnable)
		if len(claimed) == 0 {
			w.log.WithField("round", round).Debug("no claims, stopping")
			return nil
		}
		w.log.WithFields(logrus.Fields{"round": round, "claimed": len(claimed)}).Info("dispatching tasks")

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.concurrency())
		for _, task := range claimed {
			task := task
			g.Go(func() error {
				w.execute(gctx, task)
				return nil
			})
		}
		_ = g.Wait()
	}

	w.log.WithField("max_rounds", maxRounds).Warn("round safety bound reached")
	return nil
}

func (w *Worker) concurrency() int {
	if w.cfg.Concurrency <= 0 {
		return 1
	}
	return w.cfg.Concurrency
}

// claim attempts the exclusive claim on each runnable task. A lost claim is
// not an error, another worker simply got there first.
func (w *Worker) claim(ctx context.Context, runnable []*ledger.Task) []*ledger.Task {
	var claimed []*ledger.Task
	for _, task := range runnable {
		ok, err := w.store.Claim(ctx, task.ID)
		if err != nil {
			w.log.WithError(err).WithField("task", task.ID).Warn("claim failed")
			continue
		}
		if !ok {
			continue
		}
		claimed = append(claimed, task)
		w.publish(events.TopicTask, events.TaskClaimedEvent{
			ID:        task.ID,
			Kind:      string(task.Kind),
			ProjectID: task.ProjectID,
			Timestamp: time.Now(),
		})
	}
	return claimed
}

// execute runs one claimed task to a terminal status. A claimed task is
// never left in_progress: every path ends in a completed or failed record.
func (w *Worker) execute(ctx context.Context, task *ledger.Task) {
	start := time.Now()
	log := w.log.WithFields(logrus.Fields{"task": task.ID, "kind": task.Kind})

	handler, ok := w.registry[task.Kind]
	if !ok {
		w.fail(ctx, task, start, fmt.Errorf("no handler for kind %q", task.Kind), nil)
		return
	}

	result, err := handler.Handle(ctx, task)
	if err != nil {
		log.WithError(err).Warn("task failed")
		w.fail(ctx, task, start, err, result)
		return
	}

	if result == nil {
		result = map[string]any{}
	}
	result["success"] = true
	if err := w.store.SetStatus(ctx, task.ID, ledger.StatusInProgress, ledger.StatusCompleted, result); err != nil {
		log.WithError(err).Error("record completion failed")
		return
	}
	log.WithField("duration", time.Since(start)).Info("task completed")
	w.publish(events.TopicTask, events.TaskCompletedEvent{
		ID:        task.ID,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
}

func (w *Worker) fail(ctx context.Context, task *ledger.Task, start time.Time, cause error, result map[string]any) {
	if result == nil {
		result = map[string]any{}
	}
	result["success"] = false
	result["message"] = cause.Error()

	// Recording the failure must survive the cancellation that may have
	// caused it.
	recordCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		recordCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := w.store.SetStatus(recordCtx, task.ID, ledger.StatusInProgress, ledger.StatusFailed, result); err != nil {
		w.log.WithError(err).WithField("task", task.ID).Error("record failure failed")
	}
	w.publish(events.TopicTask, events.TaskFailedEvent{
		ID:        task.ID,
		Err:       cause,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
}

func (w *Worker) publish(topic string, event events.Event) {
	if w.bus != nil {
		w.bus.Publish(topic, event)
	}
}
