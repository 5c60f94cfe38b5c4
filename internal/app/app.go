// Package app wires configuration, the feature store, the pipeline and the
// REST server together for the command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/brat/internal/classify"
	"github.com/chrissnell/brat/internal/controllers/restserver"
	"github.com/chrissnell/brat/internal/log"
	"github.com/chrissnell/brat/internal/pipeline"
	"github.com/chrissnell/brat/internal/sidecar"
	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/store/memory"
	"github.com/chrissnell/brat/internal/store/postgres"
	"github.com/chrissnell/brat/internal/store/sqlite"
	"github.com/chrissnell/brat/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg      *config.ConfigData
	logger   *zap.SugaredLogger
	registry *prometheus.Registry
	metrics  *pipeline.Metrics
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  pipeline.NewMetrics(registry),
	}
}

// Config returns the loaded configuration.
func (a *App) Config() *config.ConfigData {
	return a.cfg
}

// OpenStore opens the configured feature store.
func (a *App) OpenStore(ctx context.Context) (store.FeatureStore, error) {
	switch a.cfg.Store.Backend {
	case config.BackendSQLite:
		return sqlite.Open(a.cfg.Store.SQLitePath, log.Named("sqlite"))
	case config.BackendPostgres:
		return postgres.Open(ctx, a.cfg.Store.ConnectionString, log.Named("postgres"))
	case config.BackendMemory:
		a.logger.Warn("using the in-memory feature store; results are discarded on exit")
		return memory.New(nil), nil
	}
	return nil, fmt.Errorf("unsupported store backend: %s", a.cfg.Store.Backend)
}

// InitStore creates or upgrades the network schema of the configured store
// and returns how many migrations were applied.
func (a *App) InitStore(ctx context.Context) (int, error) {
	fs, err := a.OpenStore(ctx)
	if err != nil {
		return 0, err
	}
	defer fs.Close()

	m, ok := fs.(store.Migrator)
	if !ok {
		return 0, fmt.Errorf("%s: %w", a.cfg.Store.Backend, store.ErrNotMigratable)
	}
	return m.Migrate(ctx)
}

// Stages selects the passes of a pipeline run.
type Stages struct {
	Hydrology bool
	Classify  bool
	Dams      bool
}

// AllStages runs every pass.
var AllStages = Stages{Hydrology: true, Classify: true, Dams: true}

// RunPipeline opens the store, runs the selected passes and records the
// hydrology settings in the project file when one is configured.
func (a *App) RunPipeline(ctx context.Context, stages Stages) (*pipeline.Summary, error) {
	fs, err := a.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer fs.Close()

	opts := pipeline.Options{
		Region:        a.cfg.Hydrology.Region,
		SnapTolerance: a.cfg.Dams.Tolerance(),
		Classification: classify.Options{
			Workers:     a.cfg.Classification.Workers,
			Management:  a.cfg.Classification.Management,
			ResetLabels: !a.cfg.Classification.KeepLabels,
		},
		SkipHydrology: !stages.Hydrology,
		SkipClassify:  !stages.Classify,
		SkipDams:      !stages.Dams,
	}

	sum, err := pipeline.New(fs, opts, a.metrics, log.Named("pipeline")).Run(ctx)
	if err != nil {
		return sum, err
	}

	if stages.Hydrology {
		if err := a.recordHydrology(); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (a *App) recordHydrology() error {
	h := a.cfg.Hydrology
	if h.ProjectFile == "" {
		return nil
	}

	entry := sidecar.EntryFor(h.Region, h.BaseflowEquation, h.PeakflowEquation)
	err := sidecar.Write(h.ProjectFile, h.NetworkPath, entry)
	if errors.Is(err, sidecar.ErrNoProject) {
		a.logger.Warnw("project file not found, regional curves not recorded", "path", h.ProjectFile)
		return nil
	}
	if err != nil {
		return fmt.Errorf("recording regional curves: %w", err)
	}
	a.logger.Infow("regional curves recorded", "path", h.ProjectFile, "region", entry.Region)
	return nil
}

// Serve runs the REST server until a signal arrives or ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fs, err := a.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer fs.Close()

	ctrl, err := restserver.NewController(ctx, &wg, fs, a.cfg.REST, a.registry, log.Named("rest"))
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	a.logger.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
