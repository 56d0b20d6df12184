package checkpoint

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MinWatermark is the watermark of a pipeline that has never committed:
// every source row is newer than it.
var MinWatermark = time.Time{}

// State is the persisted value of one checkpoint key.
type State struct {
	UpdatedAt time.Time
}

type stateJSON struct {
	UpdatedAt string `json:"updated_at"`
}

// stored layouts, newest first. The space-separated ones are written by the
// Python ETL this service replaces.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Marshal encodes s as {"updated_at": "<RFC 3339>"}.
func (s State) Marshal() ([]byte, error) {
	return json.Marshal(stateJSON{UpdatedAt: s.UpdatedAt.Format(time.RFC3339Nano)})
}

// ParseState decodes a stored checkpoint value.
func ParseState(data []byte) (State, error) {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, fmt.Errorf("decode checkpoint state: %w", err)
	}
	t, err := ParseTime(raw.UpdatedAt)
	if err != nil {
		return State{}, err
	}
	return State{UpdatedAt: t}, nil
}

// ParseTime parses a watermark in any of the stored layouts. Values without a
// zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("decode checkpoint state: unrecognised timestamp %q", s)
}
