// Package pipeline propagates source row changes into the search index.
//
// One Instance runs per source entity. Inside an instance the stages form a
// synchronous push chain:
//
//	Producer -> Enricher -> Merger -> Transformer -> Loader
//
// Each stage hands a batch to the next and only asks for more input once the
// batch has been fully forwarded, so ordering follows source updated_at order.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/syntrixbase/searchsync/internal/model"
)

// Entity describes one source table whose changes re-index film works.
type Entity struct {
	// Name identifies the instance in config, logs and metrics.
	Name string

	// Table is polled for updated_at changes.
	Table string

	// CheckpointKey is the store key of the instance watermark.
	CheckpointKey string

	// Link joins the table to film works. Nil means the table rows are film
	// works themselves and enrichment is the identity.
	Link *model.Link
}

// Tag reports whether changes must be mapped to affected film works.
func (e Entity) Tag() bool { return e.Link != nil }

var (
	FilmworkEntity = Entity{
		Name:          "film_work",
		Table:         model.AggregateTable,
		CheckpointKey: "film_work_data",
	}

	GenreEntity = Entity{
		Name:          "genre",
		Table:         "genre",
		CheckpointKey: "genre_data",
		Link:          &model.Link{Table: "genre_film_work", Column: "genre_id"},
	}

	PersonEntity = Entity{
		Name:          "person",
		Table:         "person",
		CheckpointKey: "person_data",
		Link:          &model.Link{Table: "person_film_work", Column: "person_id"},
	}
)

// Entities returns every known entity.
func Entities() []Entity {
	return []Entity{FilmworkEntity, GenreEntity, PersonEntity}
}

// EntityByName looks an entity up by its Name.
func EntityByName(name string) (Entity, error) {
	names := make([]string, 0, 3)
	for _, e := range Entities() {
		if e.Name == name {
			return e, nil
		}
		names = append(names, e.Name)
	}
	return Entity{}, fmt.Errorf("unknown entity %q (known: %s)", name, strings.Join(names, ", "))
}
