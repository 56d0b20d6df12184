package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ConsoleHandler writes one human-readable line per record:
//
//	2024-01-19T10:30:00.000Z INFO  [pipeline] window loaded entity=genre rows=500
//
// The component attribute, when present, is lifted into the bracketed prefix.
type ConsoleHandler struct {
	w         io.Writer
	level     slog.Leveler
	component string
	attrs     []slog.Attr
	prefix    string
	mu        *sync.Mutex
}

// NewConsoleHandler creates a console handler; opts may be nil.
func NewConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *ConsoleHandler {
	h := &ConsoleHandler{w: w, level: slog.LevelInfo, mu: &sync.Mutex{}}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format(consoleTimeFormat)...)
	buf = append(buf, ' ')
	buf = appendLevel(buf, r.Level)

	component := h.component
	var rest []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" && h.prefix == "" && a.Value.Kind() == slog.KindString {
			component = a.Value.String()
			return true
		}
		rest = append(rest, a)
		return true
	})

	if component != "" {
		buf = append(buf, '[')
		buf = append(buf, component...)
		buf = append(buf, "] "...)
	}
	buf = append(buf, r.Message...)

	for _, a := range h.attrs {
		buf = appendAttr(buf, "", a)
	}
	for _, a := range rest {
		buf = appendAttr(buf, h.prefix, a)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if a.Key == "component" && h.prefix == "" && a.Value.Kind() == slog.KindString {
			c.component = a.Value.String()
			continue
		}
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

func appendLevel(buf []byte, level slog.Level) []byte {
	s := level.String()
	buf = append(buf, s...)
	for i := len(s); i < 6; i++ {
		buf = append(buf, ' ')
	}
	return buf
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range group {
			buf = appendAttr(buf, p, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return appendValue(buf, a.Value)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendString(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return append(buf, v.Time().Format(time.RFC3339Nano)...)
	default:
		if err, ok := v.Any().(error); ok {
			return appendString(buf, err.Error())
		}
		return appendString(buf, v.String())
	}
}

func appendString(buf []byte, s string) []byte {
	if s == "" {
		return append(buf, `""`...)
	}
	for _, r := range s {
		if r <= ' ' || r == '"' || r == '=' || r == '\\' {
			return strconv.AppendQuote(buf, s)
		}
	}
	return append(buf, s...)
}
