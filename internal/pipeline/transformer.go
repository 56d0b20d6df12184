package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/syntrixbase/searchsync/internal/model"
)

// Transform derives the index document of a hydrated film work.
// It is pure; a malformed row is reported as a *model.ContractError.
func Transform(raw model.RawFilmwork) (model.Filmwork, error) {
	if raw.ID == "" {
		return model.Filmwork{}, &model.ContractError{Field: "id", Reason: "missing"}
	}

	rating, err := coerceRating(raw.Rating)
	if err != nil {
		return model.Filmwork{}, &model.ContractError{ID: raw.ID, Field: "rating", Reason: err.Error()}
	}

	genres := nonNil(raw.Genres)
	directors := nonNil(raw.Directors)
	actors := nonNil(raw.Actors)
	writers := nonNil(raw.Writers)

	return model.Filmwork{
		ID:             raw.ID,
		Rating:         rating,
		Title:          raw.Title,
		Description:    raw.Description,
		Type:           raw.Type,
		GenresNames:    genreNames(genres),
		Genres:         genres,
		DirectorsNames: personNames(directors),
		ActorsNames:    personNames(actors),
		WritersNames:   personNames(writers),
		Directors:      directors,
		Actors:         actors,
		Writers:        writers,
	}, nil
}

// TransformBatch transforms every row of in, keeping the watermark.
func TransformBatch(in model.Batch[model.RawFilmwork]) (model.Batch[model.Filmwork], error) {
	out := model.Batch[model.Filmwork]{Watermark: in.Watermark, Rows: make([]model.Filmwork, 0, len(in.Rows))}
	for _, raw := range in.Rows {
		doc, err := Transform(raw)
		if err != nil {
			return model.Batch[model.Filmwork]{}, err
		}
		out.Rows = append(out.Rows, doc)
	}
	return out, nil
}

// coerceRating accepts what database/sql scans a numeric column into.
// NULL and empty text are absent.
func coerceRating(v any) (*float64, error) {
	var f float64
	switch r := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = r
	case float32:
		f = float64(r)
	case int64:
		f = float64(r)
	case int:
		f = float64(r)
	case []byte:
		return parseRating(string(r))
	case string:
		return parseRating(r)
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not a finite number: %v", f)
	}
	return &f, nil
}

func parseRating(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return coerceRating(f)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func genreNames(genres []model.Genre) []string {
	out := make([]string, len(genres))
	for i, g := range genres {
		out[i] = g.Name
	}
	return out
}

func personNames(people []model.Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.Name
	}
	return out
}
