package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/syntrixbase/searchsync/internal/checkpoint"
	"github.com/syntrixbase/searchsync/internal/model"
)

var (
	t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
	t2 = t0.Add(2 * time.Minute)
	t3 = t0.Add(3 * time.Minute)
)

// fakeSource is an in-memory relational store with the same query semantics
// as source.Store.
type fakeSource struct {
	mu        sync.Mutex
	tables    map[string][]model.ChangeRow
	links     map[string]map[string][]string // link table -> tag id -> film work ids
	filmworks map[string]model.RawFilmwork
	calls     []string
	journal   *journal

	// hydrateErr is returned by the next Hydrate call.
	hydrateErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		tables:    make(map[string][]model.ChangeRow),
		links:     make(map[string]map[string][]string),
		filmworks: make(map[string]model.RawFilmwork),
	}
}

// addFilmwork stores a film work row and its hydrated form.
func (s *fakeSource) addFilmwork(id string, updatedAt time.Time, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[model.AggregateTable] = append(s.tables[model.AggregateTable], model.ChangeRow{ID: id, UpdatedAt: updatedAt})
	s.filmworks[id] = model.RawFilmwork{
		ID:        id,
		Title:     title,
		Type:      "movie",
		Genres:    []model.Genre{},
		Directors: []model.Person{},
		Actors:    []model.Person{},
		Writers:   []model.Person{},
	}
}

// touch updates the updated_at of a film work row.
func (s *fakeSource) touch(table, id string, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[table]
	for i := range rows {
		if rows[i].ID == id {
			rows[i].UpdatedAt = updatedAt
			return
		}
	}
	s.tables[table] = append(rows, model.ChangeRow{ID: id, UpdatedAt: updatedAt})
}

// addTag stores a tag row linked to film works.
func (s *fakeSource) addTag(entity Entity, id string, updatedAt time.Time, filmworks ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[entity.Table] = append(s.tables[entity.Table], model.ChangeRow{ID: id, UpdatedAt: updatedAt})
	links := s.links[entity.Link.Table]
	if links == nil {
		links = make(map[string][]string)
		s.links[entity.Link.Table] = links
	}
	links[id] = append(links[id], filmworks...)
}

func less(a, b model.ChangeRow) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func sorted(rows []model.ChangeRow) []model.ChangeRow {
	out := append([]model.ChangeRow(nil), rows...)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *fakeSource) ChangedRows(_ context.Context, table string, since time.Time, limit int) ([]model.ChangeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("changed %s %s", table, since.Format(time.TimeOnly)))
	if s.journal != nil {
		s.journal.add("fetch %s", since.Format(time.TimeOnly))
	}

	var out []model.ChangeRow
	for _, r := range sorted(s.tables[table]) {
		if r.UpdatedAt.After(since) {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeSource) TiedRows(_ context.Context, table string, at time.Time, afterID string, limit int) ([]model.ChangeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("tied %s %s", table, at.Format(time.TimeOnly)))

	var out []model.ChangeRow
	for _, r := range sorted(s.tables[table]) {
		if len(out) == limit {
			break
		}
		if r.UpdatedAt.Equal(at) && r.ID > afterID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeSource) AffectedAggregates(_ context.Context, link model.Link, tagIDs []string, after model.ChangeRow, limit int) ([]model.ChangeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("affected %s", link.Table))

	ids := make(map[string]bool)
	for _, tag := range tagIDs {
		for _, fw := range s.links[link.Table][tag] {
			ids[fw] = true
		}
	}

	var out []model.ChangeRow
	for _, r := range sorted(s.tables[model.AggregateTable]) {
		if !ids[r.ID] || !less(after, r) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeSource) Hydrate(_ context.Context, ids []string) ([]model.RawFilmwork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("hydrate %d", len(ids)))

	if err := s.hydrateErr; err != nil {
		s.hydrateErr = nil
		return nil, err
	}

	sortedIDs := append([]string(nil), ids...)
	sort.Strings(sortedIDs)
	var out []model.RawFilmwork
	for _, id := range sortedIDs {
		if fw, ok := s.filmworks[id]; ok {
			out = append(out, fw)
		}
	}
	return out, nil
}

// journal records upserts and commits in the order they happen.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// fakeIndex keeps the last upserted document per id.
type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]model.Filmwork
	batches [][]string
	journal *journal

	// fail is returned by the next Upsert call.
	fail error
}

func newFakeIndex(j *journal) *fakeIndex {
	return &fakeIndex{docs: make(map[string]model.Filmwork), journal: j}
}

func (f *fakeIndex) Upsert(_ context.Context, docs []model.Filmwork) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail; err != nil {
		f.fail = nil
		return err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		f.docs[d.ID] = d
		ids[i] = d.ID
	}
	f.batches = append(f.batches, ids)
	if f.journal != nil {
		f.journal.add("upsert %v", ids)
	}
	return nil
}

func (f *fakeIndex) doc(id string) (model.Filmwork, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	return d, ok
}

// journaledCheckpoint is a checkpoint.Checkpoint that records every commit.
type journaledCheckpoint struct {
	*checkpoint.Checkpoint
	journal   *journal
	committed []time.Time
}

func newJournaledCheckpoint(store checkpoint.Store, key string, j *journal) *journaledCheckpoint {
	return &journaledCheckpoint{Checkpoint: checkpoint.New(store, key, nil), journal: j}
}

func (c *journaledCheckpoint) Commit(ctx context.Context, t time.Time) (bool, error) {
	ok, err := c.Checkpoint.Commit(ctx, t)
	if ok {
		c.committed = append(c.committed, t)
		if c.journal != nil {
			c.journal.add("commit %s", t.Format(time.TimeOnly))
		}
	}
	return ok, err
}

var errBoom = errors.New("boom")

// collect returns a next func appending every batch to *out.
func collect[T any](out *[]model.Batch[T]) func(context.Context, model.Batch[T]) error {
	return func(_ context.Context, b model.Batch[T]) error {
		*out = append(*out, b)
		return nil
	}
}

func collectWindows(out *[]Window) func(context.Context, Window) error {
	return func(_ context.Context, w Window) error {
		*out = append(*out, w)
		return nil
	}
}
