package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/internal/model"
)

// Loader upserts documents and commits the checkpoint one window behind.
//
// The loader tracks the watermark of the last batch it received. A batch with
// a different watermark means every batch of the tracked window has been
// accepted by the index, so the tracked watermark is committed before the new
// one is adopted. Settle commits the tracked watermark itself and is called
// once a window (or the whole scan) is known to be flushed.
type Loader struct {
	entity    string
	indexer   Indexer
	committer Committer
	chunk     int
	logger    *slog.Logger

	tracked  time.Time
	tracking bool
	loaded   int
}

// NewLoader creates a Loader writing at most chunk documents per bulk request.
func NewLoader(entity string, indexer Indexer, committer Committer, chunk int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		entity:    entity,
		indexer:   indexer,
		committer: committer,
		chunk:     chunk,
		logger:    logger.With("stage", "loader"),
	}
}

// Load upserts the documents of in.
func (l *Loader) Load(ctx context.Context, in model.Batch[model.Filmwork]) error {
	if l.tracking && !in.Watermark.Equal(l.tracked) {
		l.logger.Info("produce window finished", "watermark", l.tracked)
		if err := l.commit(ctx, l.tracked); err != nil {
			return err
		}
	}
	l.tracked = in.Watermark
	l.tracking = true

	if len(in.Rows) == 0 {
		return nil
	}
	for _, docs := range chunks(in.Rows, l.chunk) {
		start := time.Now()
		if err := l.indexer.Upsert(ctx, docs); err != nil {
			return fmt.Errorf("upsert %d document(s): %w", len(docs), err)
		}
		metrics.BulkLatency.WithLabelValues(l.entity).Observe(time.Since(start).Seconds())
		metrics.DocumentsLoaded.WithLabelValues(l.entity).Add(float64(len(docs)))
		l.loaded += len(docs)
	}
	return nil
}

// Settle commits the tracked watermark. It must only be called when every
// batch of the tracked window has gone through Load.
func (l *Loader) Settle(ctx context.Context) error {
	if !l.tracking {
		return nil
	}
	return l.commit(ctx, l.tracked)
}

// Tracked returns the watermark of the last loaded batch.
func (l *Loader) Tracked() (time.Time, bool) {
	return l.tracked, l.tracking
}

// Loaded returns the number of documents upserted so far.
func (l *Loader) Loaded() int { return l.loaded }

func (l *Loader) commit(ctx context.Context, t time.Time) error {
	committed, err := l.committer.Commit(ctx, t)
	if err != nil {
		return err
	}
	if committed {
		metrics.CheckpointsCommitted.WithLabelValues(l.entity).Inc()
		metrics.Watermark.WithLabelValues(l.entity).Set(float64(t.Unix()))
	}
	return nil
}
