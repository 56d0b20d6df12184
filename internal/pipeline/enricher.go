package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/searchsync/internal/model"
)

// Enricher maps a window of changed rows to the film work ids to re-index.
// Every batch it forwards carries the watermark of the incoming window.
type Enricher interface {
	Enrich(ctx context.Context, in model.Batch[model.ChangeRow], next func(context.Context, model.Batch[string]) error) error
}

// NewEnricher returns the identity enricher for film works and a link-table
// enricher for tag entities.
func NewEnricher(entity Entity, source Source, chunk int, logger *slog.Logger) Enricher {
	if entity.Link == nil {
		return identityEnricher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &tagEnricher{
		source: source,
		link:   *entity.Link,
		chunk:  chunk,
		logger: logger.With("stage", "enricher"),
	}
}

type identityEnricher struct{}

func (identityEnricher) Enrich(ctx context.Context, in model.Batch[model.ChangeRow], next func(context.Context, model.Batch[string]) error) error {
	return next(ctx, model.Batch[string]{Watermark: in.Watermark, Rows: ids(in.Rows)})
}

type tagEnricher struct {
	source Source
	link   model.Link
	chunk  int
	logger *slog.Logger
}

// Enrich pages the affected film works in chunks. A window that affects no
// film work still forwards one empty batch so its watermark reaches the loader.
func (e *tagEnricher) Enrich(ctx context.Context, in model.Batch[model.ChangeRow], next func(context.Context, model.Batch[string]) error) error {
	tagIDs := ids(in.Rows)

	var (
		after     model.ChangeRow
		forwarded int
	)
	for {
		page, err := e.source.AffectedAggregates(ctx, e.link, tagIDs, after, e.chunk)
		if err != nil {
			return fmt.Errorf("fetch film works linked through %s: %w", e.link.Table, err)
		}
		if len(page) == 0 {
			break
		}

		forwarded += len(page)
		if err := next(ctx, model.Batch[string]{Watermark: in.Watermark, Rows: ids(page)}); err != nil {
			return err
		}
		if len(page) < e.chunk {
			break
		}
		after = page[len(page)-1]
	}

	if forwarded == 0 {
		e.logger.Debug("window affects no film work", "tags", len(tagIDs), "watermark", in.Watermark)
		return next(ctx, model.Batch[string]{Watermark: in.Watermark, Rows: []string{}})
	}
	return nil
}

func ids(rows []model.ChangeRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
