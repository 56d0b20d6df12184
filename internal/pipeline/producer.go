package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/internal/model"
)

// DefaultWindowSize is the number of change rows fetched per round-trip.
const DefaultWindowSize = 500

// Producer scans one source table for rows changed after a watermark.
type Producer struct {
	source     Source
	entity     Entity
	windowSize int
	logger     *slog.Logger
}

// NewProducer creates a Producer. windowSize is independent of the chunk sizes.
func NewProducer(source Source, entity Entity, windowSize int, logger *slog.Logger) *Producer {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		source:     source,
		entity:     entity,
		windowSize: windowSize,
		logger:     logger.With("stage", "producer"),
	}
}

// Window is one fetch of change rows. Closed is false while later windows of
// the same scan carry the same watermark.
type Window struct {
	model.Batch[model.ChangeRow]
	Closed bool
}

// Scan hands every window of rows changed after since to next, oldest first,
// and returns the number of windows. The watermark of a window is the
// updated_at of its last row. Rows that share the watermark but did not fit
// follow in windows of at most the window size with the same watermark, so
// the next query can start strictly after it.
func (p *Producer) Scan(ctx context.Context, since time.Time, next func(context.Context, Window) error) (int, error) {
	cursor := since
	windows := 0

	emit := func(rows []model.ChangeRow, watermark time.Time, closed bool) error {
		windows++
		metrics.WindowsFetched.WithLabelValues(p.entity.Name).Inc()
		metrics.RowsChanged.WithLabelValues(p.entity.Name).Add(float64(len(rows)))
		p.logger.Debug("window fetched", "rows", len(rows), "watermark", watermark, "closed", closed)
		return next(ctx, Window{
			Batch:  model.Batch[model.ChangeRow]{Watermark: watermark, Rows: rows},
			Closed: closed,
		})
	}

	for {
		rows, err := p.source.ChangedRows(ctx, p.entity.Table, cursor, p.windowSize)
		if err != nil {
			return windows, fmt.Errorf("fetch %s changes after %s: %w", p.entity.Table, cursor.Format(time.RFC3339Nano), err)
		}
		if len(rows) == 0 {
			break
		}

		full := len(rows) == p.windowSize
		watermark := rows[len(rows)-1].UpdatedAt

		page, more := rows, full
		for {
			var tied []model.ChangeRow
			if more {
				tied, err = p.source.TiedRows(ctx, p.entity.Table, watermark, page[len(page)-1].ID, p.windowSize)
				if err != nil {
					return windows, fmt.Errorf("fetch %s rows tied at %s: %w", p.entity.Table, watermark.Format(time.RFC3339Nano), err)
				}
			}
			if err := emit(page, watermark, len(tied) == 0); err != nil {
				return windows, err
			}
			if len(tied) == 0 {
				break
			}
			page, more = tied, len(tied) == p.windowSize
		}

		if !full {
			break
		}
		cursor = watermark
	}

	p.logger.Info("produce loop finished", "windows", windows)
	return windows, nil
}
