package model

// Link is a many-to-many table joining a tag entity to film works.
type Link struct {
	// Table is the link table name, e.g. genre_film_work.
	Table string

	// Column holds the tag id, e.g. genre_id. The film work side is always film_work_id.
	Column string
}

// AggregateTable is the table every pipeline ultimately re-indexes.
const AggregateTable = "film_work"
