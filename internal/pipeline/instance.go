package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/syntrixbase/searchsync/internal/config"
	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/internal/model"
)

// finalCommitTimeout bounds the checkpoint write made after the context ends.
const finalCommitTimeout = 10 * time.Second

// Observer is told about the progress of an instance.
type Observer interface {
	CycleCompleted(entity string, stats CycleStats)
	InstanceFailed(entity string, err error)
}

// CycleStats summarises one producer scan.
type CycleStats struct {
	ID        string
	Windows   int
	Documents int
	Watermark time.Time
	Duration  time.Duration
}

// Options configures an Instance.
type Options struct {
	WindowSize   int
	ExtractChunk int
	LoadChunk    int
	PollInterval time.Duration

	// CommitPolicy is config.CommitDeferred (default) or config.CommitEager.
	CommitPolicy string

	Observer Observer
	Logger   *slog.Logger
}

// OptionsFromConfig maps the pipeline config section to Options.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	return Options{
		WindowSize:   cfg.WindowSize,
		ExtractChunk: cfg.ExtractChunk,
		LoadChunk:    cfg.LoadChunk,
		PollInterval: cfg.PollInterval,
		CommitPolicy: cfg.CommitPolicy,
	}
}

// Instance is the long-lived loop of one entity. It is strictly sequential and
// owns its source, index and checkpoint connections.
type Instance struct {
	entity     Entity
	source     Source
	indexer    Indexer
	checkpoint Committer

	producer *Producer
	enricher Enricher
	merger   *Merger

	loadChunk    int
	pollInterval time.Duration
	eager        bool
	observer     Observer
	logger       *slog.Logger

	// sleep waits between cycles; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInstance wires the stages of entity.
func NewInstance(entity Entity, source Source, indexer Indexer, checkpoint Committer, opts Options) *Instance {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline", "entity", entity.Name)

	if opts.ExtractChunk <= 0 {
		opts.ExtractChunk = config.DefaultPipelineConfig().ExtractChunk
	}
	if opts.LoadChunk <= 0 {
		opts.LoadChunk = config.DefaultPipelineConfig().LoadChunk
	}

	return &Instance{
		entity:       entity,
		source:       source,
		indexer:      indexer,
		checkpoint:   checkpoint,
		producer:     NewProducer(source, entity, opts.WindowSize, logger),
		enricher:     NewEnricher(entity, source, opts.ExtractChunk, logger),
		merger:       NewMerger(source, opts.ExtractChunk),
		loadChunk:    opts.LoadChunk,
		pollInterval: opts.PollInterval,
		eager:        opts.CommitPolicy == config.CommitEager,
		observer:     opts.Observer,
		logger:       logger,
		sleep:        sleepContext,
	}
}

// Entity returns the entity the instance propagates.
func (i *Instance) Entity() Entity { return i.entity }

// Run loads the checkpoint once and runs cycles until ctx ends, sleeping
// PollInterval between them. It returns nil on cancellation and the error of
// the first failed cycle otherwise.
func (i *Instance) Run(ctx context.Context) error {
	i.logger.Info("starting instance", "table", i.entity.Table, "checkpoint_key", i.entity.CheckpointKey, "tag", i.entity.Tag())

	if _, err := i.checkpoint.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return i.fail(err)
	}

	for {
		stats, err := i.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				i.logger.Info("instance stopped")
				return nil
			}
			return i.fail(err)
		}

		metrics.CyclesCompleted.WithLabelValues(i.entity.Name).Inc()
		if i.observer != nil {
			i.observer.CycleCompleted(i.entity.Name, stats)
		}

		if err := i.sleep(ctx, i.pollInterval); err != nil {
			i.logger.Info("instance stopped")
			return nil
		}
	}
}

func (i *Instance) fail(err error) error {
	metrics.InstanceFailures.WithLabelValues(i.entity.Name).Inc()
	if i.observer != nil {
		i.observer.InstanceFailed(i.entity.Name, err)
	}
	if errors.Is(err, model.ErrContract) {
		i.logger.Error("malformed source data, stopping instance", "error", err)
	} else {
		i.logger.Error("instance failed", "error", err)
	}
	return fmt.Errorf("%s: %w", i.entity.Name, err)
}

// RunCycle scans every change after the current checkpoint once and pushes it
// through the chain. The checkpoint only advances past windows that were
// fully loaded.
func (i *Instance) RunCycle(ctx context.Context) (CycleStats, error) {
	start := time.Now()
	stats := CycleStats{ID: uuid.NewString()}
	logger := i.logger.With("cycle_id", stats.ID)

	since := i.checkpoint.Last()
	loader := NewLoader(i.entity.Name, i.indexer, i.checkpoint, i.loadChunk, logger)

	var (
		completed     time.Time
		haveCompleted bool
	)
	windows, err := i.producer.Scan(ctx, since, func(ctx context.Context, window Window) error {
		err := i.enricher.Enrich(ctx, window.Batch, func(ctx context.Context, ids model.Batch[string]) error {
			return i.merger.Merge(ctx, ids, func(ctx context.Context, raws model.Batch[model.RawFilmwork]) error {
				docs, err := TransformBatch(raws)
				if err != nil {
					return err
				}
				return loader.Load(ctx, docs)
			})
		})
		if err != nil {
			return err
		}

		if !window.Closed {
			return nil
		}
		completed, haveCompleted = window.Watermark, true
		if i.eager {
			return loader.Settle(ctx)
		}
		return nil
	})

	stats.Windows = windows
	stats.Documents = loader.Loaded()
	stats.Duration = time.Since(start)

	if err != nil {
		if ctx.Err() != nil && haveCompleted {
			i.settleDetached(ctx, loader, completed, logger)
		}
		return stats, err
	}

	if err := loader.Settle(ctx); err != nil {
		return stats, err
	}
	stats.Watermark = i.checkpoint.Last()

	if windows > 0 {
		logger.Info("cycle finished",
			"windows", stats.Windows,
			"documents", stats.Documents,
			"watermark", stats.Watermark,
			"duration", stats.Duration,
		)
	}
	return stats, nil
}

// settleDetached makes the final commit after ctx was cancelled, provided the
// loader stopped on a window boundary.
func (i *Instance) settleDetached(ctx context.Context, loader *Loader, completed time.Time, logger *slog.Logger) {
	tracked, ok := loader.Tracked()
	if !ok || !tracked.Equal(completed) {
		return
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalCommitTimeout)
	defer cancel()
	if err := loader.Settle(commitCtx); err != nil {
		logger.Warn("final checkpoint commit failed", "watermark", completed, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
