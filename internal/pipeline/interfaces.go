package pipeline

import (
	"context"
	"time"

	"github.com/syntrixbase/searchsync/internal/model"
)

// Source is the read side of the relational store.
type Source interface {
	// ChangedRows returns up to limit rows of table changed after since, ordered by (updated_at, id).
	ChangedRows(ctx context.Context, table string, since time.Time, limit int) ([]model.ChangeRow, error)

	// TiedRows returns up to limit rows of table updated exactly at at, with an id after afterID.
	TiedRows(ctx context.Context, table string, at time.Time, afterID string, limit int) ([]model.ChangeRow, error)

	// AffectedAggregates pages film works linked to tagIDs, keyset-ordered after the cursor.
	AffectedAggregates(ctx context.Context, link model.Link, tagIDs []string, after model.ChangeRow, limit int) ([]model.ChangeRow, error)

	// Hydrate returns one denormalised row per existing film work id.
	Hydrate(ctx context.Context, ids []string) ([]model.RawFilmwork, error)
}

// Indexer is the write side of the search index.
type Indexer interface {
	Upsert(ctx context.Context, docs []model.Filmwork) error
}

// Committer persists the watermark of one instance.
type Committer interface {
	Load(ctx context.Context) (time.Time, error)
	Commit(ctx context.Context, t time.Time) (bool, error)
	Last() time.Time
}
