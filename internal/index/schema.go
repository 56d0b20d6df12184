package index

import (
	_ "embed"
)

//go:embed schema/movies.json
var moviesSchema []byte

// Schema returns the settings and mappings of the movies index.
func Schema() []byte {
	out := make([]byte, len(moviesSchema))
	copy(out, moviesSchema)
	return out
}
