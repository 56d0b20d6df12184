// Package model defines the rows and documents that flow through a sync pipeline.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ChangeRow is an {id, updated_at} pair read from a source table.
type ChangeRow struct {
	ID        string
	UpdatedAt time.Time
}

// Batch is the unit passed from one pipeline stage to the next.
// Watermark is the updated_at of the originating producer window, regardless of
// the rows the batch carries further down the chain.
type Batch[T any] struct {
	Watermark time.Time
	Rows      []T
}

// Genre is a nested genre item of a film work.
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Person is a nested person item of a film work (director, actor or writer).
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawFilmwork is a hydrated film work as returned by the denormalising join.
// Rating is kept as whatever the driver produced (nil, float64, []byte or string).
type RawFilmwork struct {
	ID          string
	Rating      any
	Title       string
	Description *string
	Type        string
	Genres      []Genre
	Directors   []Person
	Actors      []Person
	Writers     []Person
}

// Filmwork is the self-contained document written to the search index.
type Filmwork struct {
	ID             string   `json:"id"`
	Rating         *float64 `json:"imdb_rating"`
	Title          string   `json:"title"`
	Description    *string  `json:"description"`
	Type           string   `json:"filmwork_type"`
	GenresNames    []string `json:"genres_names"`
	Genres         []Genre  `json:"genres"`
	DirectorsNames []string `json:"directors_names"`
	ActorsNames    []string `json:"actors_names"`
	WritersNames   []string `json:"writers_names"`
	Directors      []Person `json:"directors"`
	Actors         []Person `json:"actors"`
	Writers        []Person `json:"writers"`
}

// ErrContract is the sentinel matched by errors.Is for every ContractError.
var ErrContract = errors.New("data contract violation")

// ContractError reports a malformed upstream row. It is never retried.
type ContractError struct {
	ID     string
	Field  string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("film work %s: field %s: %s", e.ID, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrContract) match any ContractError.
func (e *ContractError) Is(target error) bool {
	return target == ErrContract
}
