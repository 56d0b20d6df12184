package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_MarshalRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.FixedZone("MSK", 3*3600))

	data, err := State{UpdatedAt: at}.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"updated_at":"2024-03-01T12:30:45.123456789+03:00"}`, string(data))

	st, err := ParseState(data)
	require.NoError(t, err)
	assert.True(t, st.UpdatedAt.Equal(at))
}

func TestParseState_PythonLayouts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"aware with micros", `{"updated_at": "2021-06-16 20:14:09.221855+00:00"}`,
			time.Date(2021, 6, 16, 20, 14, 9, 221855000, time.UTC)},
		{"aware without fraction", `{"updated_at": "2021-06-16 20:14:09+03:00"}`,
			time.Date(2021, 6, 16, 17, 14, 9, 0, time.UTC)},
		{"datetime.min", `{"updated_at": "0001-01-01 00:00:00"}`, MinWatermark},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseState([]byte(tt.in))
			require.NoError(t, err)
			assert.True(t, st.UpdatedAt.Equal(tt.want), "got %s", st.UpdatedAt)
		})
	}
}

func TestParseState_Errors(t *testing.T) {
	_, err := ParseState([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseState([]byte(`{"updated_at": "yesterday"}`))
	assert.ErrorContains(t, err, "unrecognised timestamp")
}
