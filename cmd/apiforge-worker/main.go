// Command apiforge-worker runs scheduling rounds against a task ledger,
// executing generation and analysis tasks until the ledger drains.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/apiforge/apiforge/internal/analyzer"
	"github.com/apiforge/apiforge/internal/config"
	"github.com/apiforge/apiforge/internal/events"
	"github.com/apiforge/apiforge/internal/ledger"
	"github.com/apiforge/apiforge/internal/logging"
	"github.com/apiforge/apiforge/internal/oracle"
	"github.com/apiforge/apiforge/internal/placement"
	"github.com/apiforge/apiforge/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "apiforge-worker:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		projectID = flag.String("project", "", "restrict to one project id")
		dbPath    = flag.String("db", "", "ledger database path (overrides config)")
		logLevel  = flag.String("log-level", "", "log level (overrides config)")
	)
	flag.Parse()

	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *dbPath != "" {
		cfg.StorePath = *dbPath
	}
	logging.SetLevel(cfg.LogLevel)
	log := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := ledger.NewStore(ctx, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	providerName := cfg.Generation.Provider
	providerCfg, ok := cfg.Providers[providerName]
	if !ok {
		return fmt.Errorf("unknown provider %q", providerName)
	}
	pm := oracle.NewProcessManager()
	defer func() {
		if err := pm.KillAll(); err != nil {
			log.WithError(err).Warn("killing leftover oracle processes")
		}
	}()

	// Each generation task builds its own oracle so sessions never share a
	// conversation. Construct one up front to surface config errors early.
	newOracle := func() (oracle.Oracle, error) {
		return oracle.New(providerName, providerCfg, pm)
	}
	checkOracle, err := newOracle()
	if err != nil {
		return fmt.Errorf("create oracle: %w", err)
	}
	checkOracle.Close()

	bus := events.NewBus()
	defer bus.Close()
	go logEvents(bus.SubscribeAll(64), log)

	cache := analyzer.NewCache(analyzer.NewScanner())
	resolver := placement.NewResolver(cache, cfg.Placement)

	registry := scheduler.Registry{
		ledger.KindGeneration: &scheduler.GenerationHandler{
			Store:     store,
			NewOracle: newOracle,
			Breakers:  oracle.NewBreakerRegistry(),
			Cfg:       cfg,
			Analyzer:  cache,
			Cache:     cache,
			Resolver:  resolver,
			Locks:     scheduler.NewPathLockManager(),
			Bus:       bus,
		},
		ledger.KindAnalysis: &scheduler.AnalysisHandler{Analyzer: cache},
		ledger.KindSchema:   scheduler.PassthroughHandler{},
		ledger.KindConfig:   scheduler.PassthroughHandler{},
	}

	worker := scheduler.NewWorker(store, registry, bus, cfg.Worker, *projectID)
	return worker.Run(ctx)
}

func logEvents(ch <-chan events.Event, log *logrus.Logger) {
	for e := range ch {
		log.Infof("event %s task=%s", e.EventType(), e.TaskID())
	}
}
