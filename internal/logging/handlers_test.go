package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockHandler is a test handler that can be configured to fail
type mockHandler struct {
	enabled bool
	err     error
	seen    int
}

func (h *mockHandler) Enabled(context.Context, slog.Level) bool { return h.enabled }

func (h *mockHandler) Handle(context.Context, slog.Record) error {
	h.seen++
	return h.err
}

func (h *mockHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *mockHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler_FansOut(t *testing.T) {
	buf1, buf2 := &bytes.Buffer{}, &bytes.Buffer{}
	multi := NewMultiHandler(
		slog.NewTextHandler(buf1, nil),
		slog.NewJSONHandler(buf2, nil),
	)

	slog.New(multi).With("entity", "genre").Info("cycle done")

	assert.Contains(t, buf1.String(), "entity=genre")
	assert.Contains(t, buf2.String(), `"entity":"genre"`)
}

func TestMultiHandler_ErrorsDoNotStarveOthers(t *testing.T) {
	first := &mockHandler{enabled: true, err: errors.New("disk full")}
	second := &mockHandler{enabled: true}
	disabled := &mockHandler{enabled: false}

	err := NewMultiHandler(first, disabled, second).Handle(context.Background(), slog.Record{Level: slog.LevelInfo})

	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, second.seen)
	assert.Zero(t, disabled.seen)
}

func TestMultiHandler_Enabled(t *testing.T) {
	ctx := context.Background()
	assert.True(t, NewMultiHandler(&mockHandler{}, &mockHandler{enabled: true}).Enabled(ctx, slog.LevelInfo))
	assert.False(t, NewMultiHandler(&mockHandler{}).Enabled(ctx, slog.LevelInfo))
}

func TestLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	filter := NewLevelFilter(inner, slog.LevelWarn)

	ctx := context.Background()
	assert.False(t, filter.Enabled(ctx, slog.LevelInfo))
	assert.True(t, filter.Enabled(ctx, slog.LevelError))

	logger := slog.New(filter).WithGroup("g").With("k", "v")
	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "g.k=v")

	// Handle itself also enforces the minimum
	assert.NoError(t, filter.Handle(ctx, slog.Record{Level: slog.LevelDebug, Message: "direct"}))
	assert.NotContains(t, buf.String(), "direct")
}
