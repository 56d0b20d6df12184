package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/syntrixbase/searchsync/internal/model"
	"github.com/syntrixbase/searchsync/internal/resilience"
)

// NilUUID sorts before every other UUID; it starts a keyset scan.
const NilUUID = "00000000-0000-0000-0000-000000000000"

// Store runs the pipeline queries. Every method is one guarded round-trip:
// a recoverable failure retries the whole query.
type Store struct {
	client *Client
	guard  *resilience.Guard
	schema string
}

// NewStore creates a Store over client in schema.
func NewStore(client *Client, schema string, guard *resilience.Guard) *Store {
	return &Store{client: client, guard: guard, schema: schema}
}

func (s *Store) table(name string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(name)
}

// ChangedRows returns up to limit rows of table changed after since, oldest first.
func (s *Store) ChangedRows(ctx context.Context, table string, since time.Time, limit int) ([]model.ChangeRow, error) {
	query := fmt.Sprintf(`
		SELECT id, updated_at
		FROM %s
		WHERE updated_at > $1
		ORDER BY updated_at, id
		LIMIT $2`, s.table(table))

	return resilience.Call(ctx, s.guard, "postgres.changed_rows", func(ctx context.Context) ([]model.ChangeRow, error) {
		return s.changeRows(ctx, query, since, limit)
	})
}

// TiedRows returns up to limit rows of table at exactly at with an id after
// afterID. The producer pages with it through a timestamp group cut by the
// window limit.
func (s *Store) TiedRows(ctx context.Context, table string, at time.Time, afterID string, limit int) ([]model.ChangeRow, error) {
	query := fmt.Sprintf(`
		SELECT id, updated_at
		FROM %s
		WHERE updated_at = $1 AND id > $2
		ORDER BY id
		LIMIT $3`, s.table(table))

	return resilience.Call(ctx, s.guard, "postgres.tied_rows", func(ctx context.Context) ([]model.ChangeRow, error) {
		return s.changeRows(ctx, query, at, afterID, limit)
	})
}

// AffectedAggregates returns up to limit distinct film works linked to any of
// tagIDs, ordered by (updated_at, id) and strictly after the after cursor.
func (s *Store) AffectedAggregates(ctx context.Context, link model.Link, tagIDs []string, after model.ChangeRow, limit int) ([]model.ChangeRow, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT fw.id, fw.updated_at
		FROM %s fw
		JOIN %s l ON l.film_work_id = fw.id
		WHERE l.%s = ANY($1::uuid[])
		  AND (fw.updated_at, fw.id) > ($2, $3::uuid)
		ORDER BY fw.updated_at, fw.id
		LIMIT $4`,
		s.table(model.AggregateTable), s.table(link.Table), pq.QuoteIdentifier(link.Column))

	afterID := after.ID
	if afterID == "" {
		afterID = NilUUID
	}

	return resilience.Call(ctx, s.guard, "postgres.affected_aggregates", func(ctx context.Context) ([]model.ChangeRow, error) {
		return s.changeRows(ctx, query, pq.Array(tagIDs), after.UpdatedAt, afterID, limit)
	})
}

func (s *Store) changeRows(ctx context.Context, query string, args ...any) ([]model.ChangeRow, error) {
	db, err := s.client.DB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.client.observe(err)
	}
	defer rows.Close()

	var out []model.ChangeRow
	for rows.Next() {
		var r model.ChangeRow
		if err := rows.Scan(&r.ID, &r.UpdatedAt); err != nil {
			return nil, s.client.observe(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.client.observe(err)
	}
	return out, nil
}

// Hydrate runs the denormalising join for ids. Film works that no longer
// exist are simply absent from the result.
func (s *Store) Hydrate(ctx context.Context, ids []string) ([]model.RawFilmwork, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := s.hydrateQuery()

	return resilience.Call(ctx, s.guard, "postgres.hydrate", func(ctx context.Context) ([]model.RawFilmwork, error) {
		db, err := s.client.DB()
		if err != nil {
			return nil, err
		}

		rows, err := db.QueryContext(ctx, query, pq.Array(ids))
		if err != nil {
			return nil, s.client.observe(err)
		}
		defer rows.Close()

		var out []model.RawFilmwork
		for rows.Next() {
			fw, err := scanFilmwork(rows)
			if err != nil {
				return nil, s.client.observe(err)
			}
			out = append(out, fw)
		}
		if err := rows.Err(); err != nil {
			return nil, s.client.observe(err)
		}
		return out, nil
	})
}

func (s *Store) hydrateQuery() string {
	return fmt.Sprintf(`
		SELECT
			fw.id,
			fw.rating,
			fw.title,
			fw.description,
			fw.type,
			COALESCE(json_agg(DISTINCT jsonb_build_object('id', g.id, 'name', g.name))
				FILTER (WHERE g.id IS NOT NULL), '[]') AS genres,
			COALESCE(json_agg(DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name))
				FILTER (WHERE p.id IS NOT NULL AND pfw.role = 'director'), '[]') AS directors,
			COALESCE(json_agg(DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name))
				FILTER (WHERE p.id IS NOT NULL AND pfw.role = 'actor'), '[]') AS actors,
			COALESCE(json_agg(DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name))
				FILTER (WHERE p.id IS NOT NULL AND pfw.role = 'writer'), '[]') AS writers
		FROM %s fw
		LEFT JOIN %s pfw ON pfw.film_work_id = fw.id
		LEFT JOIN %s p ON p.id = pfw.person_id
		LEFT JOIN %s gfw ON gfw.film_work_id = fw.id
		LEFT JOIN %s g ON g.id = gfw.genre_id
		WHERE fw.id = ANY($1::uuid[])
		GROUP BY fw.id
		ORDER BY fw.id`,
		s.table(model.AggregateTable),
		s.table("person_film_work"),
		s.table("person"),
		s.table("genre_film_work"),
		s.table("genre"),
	)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFilmwork(row scanner) (model.RawFilmwork, error) {
	var (
		fw                                 model.RawFilmwork
		title, kind, description           sql.NullString
		genres, directors, actors, writers []byte
	)
	if err := row.Scan(&fw.ID, &fw.Rating, &title, &description, &kind,
		&genres, &directors, &actors, &writers); err != nil {
		return model.RawFilmwork{}, err
	}

	fw.Title = title.String
	fw.Type = kind.String
	if description.Valid {
		d := description.String
		fw.Description = &d
	}

	for _, f := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"genres", genres, &fw.Genres},
		{"directors", directors, &fw.Directors},
		{"actors", actors, &fw.Actors},
		{"writers", writers, &fw.Writers},
	} {
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return model.RawFilmwork{}, &model.ContractError{ID: fw.ID, Field: f.name, Reason: err.Error()}
		}
	}
	return fw, nil
}
