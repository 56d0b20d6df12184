package pipeline

import (
	"context"
	"fmt"

	"github.com/syntrixbase/searchsync/internal/model"
)

// Merger hydrates film work ids into denormalised rows.
type Merger struct {
	source Source
	chunk  int
}

// NewMerger creates a Merger forwarding at most chunk rows per batch.
func NewMerger(source Source, chunk int) *Merger {
	return &Merger{source: source, chunk: chunk}
}

// Merge runs one hydrate query for the batch and forwards the result in chunks.
// An empty result is forwarded as one empty batch.
func (m *Merger) Merge(ctx context.Context, in model.Batch[string], next func(context.Context, model.Batch[model.RawFilmwork]) error) error {
	rows, err := m.source.Hydrate(ctx, in.Rows)
	if err != nil {
		return fmt.Errorf("hydrate %d film work(s): %w", len(in.Rows), err)
	}

	if len(rows) == 0 {
		return next(ctx, model.Batch[model.RawFilmwork]{Watermark: in.Watermark, Rows: []model.RawFilmwork{}})
	}
	for _, chunk := range chunks(rows, m.chunk) {
		if err := next(ctx, model.Batch[model.RawFilmwork]{Watermark: in.Watermark, Rows: chunk}); err != nil {
			return err
		}
	}
	return nil
}

// chunks splits s into consecutive slices of at most size elements.
func chunks[T any](s []T, size int) [][]T {
	if size <= 0 || len(s) <= size {
		return [][]T{s}
	}
	out := make([][]T, 0, (len(s)+size-1)/size)
	for len(s) > size {
		out = append(out, s[:size:size])
		s = s[size:]
	}
	return append(out, s)
}
