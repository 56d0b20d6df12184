// Package app wires configured pipeline instances to their backends.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/searchsync/internal/checkpoint"
	"github.com/syntrixbase/searchsync/internal/config"
	"github.com/syntrixbase/searchsync/internal/health"
	"github.com/syntrixbase/searchsync/internal/index"
	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/internal/pipeline"
	"github.com/syntrixbase/searchsync/internal/resilience"
	"github.com/syntrixbase/searchsync/internal/source"
)

// Backends are the connections owned by one instance.
type Backends struct {
	Source     pipeline.Source
	Index      pipeline.Indexer
	Checkpoint checkpoint.Store
	Close      func(ctx context.Context) error
}

// newBackends is a variable to allow mocking in tests.
var newBackends = openBackends

// newIndex is a variable to allow mocking in tests.
var newIndex = func(cfg config.ElasticsearchConfig, opts resilience.GuardOptions) indexBootstrapper {
	client := index.NewClient(cfg)
	opts.Conn = client
	opts.Recoverable = index.IsRecoverable
	return index.NewIndex(client, cfg.Index, resilience.NewGuard(opts))
}

type indexBootstrapper interface {
	Ensure(ctx context.Context, schema []byte) (bool, error)
}

// Manager builds and runs the pipeline instances.
type Manager struct {
	cfg     *config.Config
	logger  *slog.Logger
	checker *health.Checker

	instances []*pipeline.Instance
	closers   []func(ctx context.Context) error
}

// NewManager creates a Manager for cfg.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger.With("component", "app"),
		checker: health.NewChecker(logger),
	}
}

// Checker returns the health checker the instances report to.
func (m *Manager) Checker() *health.Checker { return m.checker }

// Instances returns the instances built by Init.
func (m *Manager) Instances() []*pipeline.Instance { return m.instances }

// GuardOptions returns the guard settings shared by every client of entity.
func (m *Manager) GuardOptions(entity, client string) resilience.GuardOptions {
	b := m.cfg.Pipeline.Backoff
	return resilience.GuardOptions{
		Name:   client,
		Policy: resilience.Policy{Start: b.Start, Factor: b.Factor, Ceiling: b.Ceiling},
		Logger: m.logger.With("entity", entity),
		OnRetry: func(string, error, time.Duration) {
			metrics.Retries.WithLabelValues(entity, client).Inc()
		},
	}
}

// EnsureIndex creates the destination index with the embedded schema if it is missing.
func (m *Manager) EnsureIndex(ctx context.Context) error {
	idx := newIndex(m.cfg.Elasticsearch, m.GuardOptions("bootstrap", "elasticsearch"))
	created, err := idx.Ensure(ctx, index.Schema())
	if err != nil {
		return fmt.Errorf("ensure index %s: %w", m.cfg.Elasticsearch.Index, err)
	}
	if created {
		m.logger.Warn("index was missing and has been created", "index", m.cfg.Elasticsearch.Index)
	} else {
		m.logger.Info("index exists", "index", m.cfg.Elasticsearch.Index)
	}
	return nil
}

// Init builds one instance per configured entity. Every instance gets its own
// source, index and checkpoint connections.
func (m *Manager) Init() error {
	opts := pipeline.OptionsFromConfig(m.cfg.Pipeline)
	opts.Observer = m.checker
	opts.Logger = m.logger.With("component", "pipeline")

	for _, name := range m.cfg.Pipeline.Entities {
		entity, err := pipeline.EntityByName(name)
		if err != nil {
			return err
		}

		b, err := newBackends(m, entity)
		if err != nil {
			return fmt.Errorf("open backends for %s: %w", name, err)
		}
		if b.Close != nil {
			m.closers = append(m.closers, b.Close)
		}

		cp := checkpoint.New(b.Checkpoint, entity.CheckpointKey, m.logger)
		m.instances = append(m.instances, pipeline.NewInstance(entity, b.Source, b.Index, cp, opts))
		m.checker.RegisterInstance(entity.Name)
		m.logger.Info("instance configured", "entity", entity.Name, "checkpoint_key", entity.CheckpointKey)
	}
	return nil
}

// Run serves health and metrics when configured and runs the instances until
// ctx ends or all of them have stopped.
func (m *Manager) Run(ctx context.Context) error {
	if addr := m.cfg.Observability.Address; addr != "" {
		go func() {
			if err := health.StartServer(ctx, addr, m.checker); err != nil {
				m.logger.Error("health server error", "error", err)
			}
		}()
	}
	return pipeline.NewRunner(m.instances, m.logger).Run(ctx)
}

// Shutdown closes every connection opened by Init.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, c := range m.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

// OpenCheckpoint opens the checkpoint of entity on its own store connection.
func (m *Manager) OpenCheckpoint(entity pipeline.Entity) (*checkpoint.Checkpoint, checkpoint.Store, error) {
	store, err := checkpoint.Open(m.cfg.Checkpoint, m.GuardOptions(entity.Name, m.cfg.Checkpoint.Backend))
	if err != nil {
		return nil, nil, err
	}
	return checkpoint.New(store, entity.CheckpointKey, m.logger), store, nil
}

func openBackends(m *Manager, entity pipeline.Entity) (Backends, error) {
	store, err := checkpoint.Open(m.cfg.Checkpoint, m.GuardOptions(entity.Name, m.cfg.Checkpoint.Backend))
	if err != nil {
		return Backends{}, err
	}

	pg := source.NewClient(m.cfg.Postgres.DSN)
	pgOpts := m.GuardOptions(entity.Name, "postgres")
	pgOpts.Conn = pg
	pgOpts.Recoverable = source.IsRecoverable

	es := index.NewClient(m.cfg.Elasticsearch)
	esOpts := m.GuardOptions(entity.Name, "elasticsearch")
	esOpts.Conn = es
	esOpts.Recoverable = index.IsRecoverable

	return Backends{
		Source:     source.NewStore(pg, m.cfg.Postgres.Schema, resilience.NewGuard(pgOpts)),
		Index:      index.NewIndex(es, m.cfg.Elasticsearch.Index, resilience.NewGuard(esOpts)),
		Checkpoint: store,
		Close: func(ctx context.Context) error {
			return errors.Join(pg.Close(), store.Close(ctx))
		},
	}, nil
}
