package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// BracketHandler is a slog.Handler that formats records as
// [LEVEL] [SYSTEM] [HH:MM:SS] message key=value key=value.
// The "system" attribute, when present, is lifted into its own bracket.
type BracketHandler struct {
	w         io.Writer
	level     slog.Level
	mu        *sync.Mutex
	useColors bool
	attrs     []slog.Attr
}

// NewBracketHandler creates a bracket-style handler.
func NewBracketHandler(w io.Writer, opts *slog.HandlerOptions) *BracketHandler {
	h := &BracketHandler{
		w:         w,
		level:     slog.LevelInfo,
		mu:        &sync.Mutex{},
		useColors: isTerminal(w),
	}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level.Level()
	}
	return h
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Enabled reports whether the handler handles records at the given level.
func (h *BracketHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes a log record.
func (h *BracketHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	h.paint(&buf, h.levelColor(r.Level))
	buf.WriteString("[" + levelString(r.Level) + "]")
	h.paint(&buf, colorReset)

	system, attrs := h.collectAttrs(r)
	if system != "" {
		buf.WriteString(" [" + system + "]")
	}

	h.paint(&buf, colorGray)
	buf.WriteString(" [" + r.Time.Format("15:04:05") + "]")
	h.paint(&buf, colorReset)

	buf.WriteString(" " + r.Message)

	for _, a := range attrs {
		h.paint(&buf, colorCyan)
		buf.WriteString(" " + a.Key + "=")
		h.paint(&buf, colorReset)
		buf.WriteString(fmt.Sprintf("%v", a.Value.Any()))
	}
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

// WithAttrs returns a handler whose records carry the given attributes.
func (h *BracketHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup is accepted but flattened; group names rarely help line logs.
func (h *BracketHandler) WithGroup(string) slog.Handler {
	return h
}

// collectAttrs merges handler and record attributes, extracting "system".
func (h *BracketHandler) collectAttrs(r slog.Record) (string, []slog.Attr) {
	var system string
	var attrs []slog.Attr

	take := func(a slog.Attr) {
		if a.Key == "system" {
			system = a.Value.String()
			return
		}
		attrs = append(attrs, a)
	}

	for _, a := range h.attrs {
		take(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		take(a)
		return true
	})
	return system, attrs
}

func (h *BracketHandler) paint(buf *strings.Builder, code string) {
	if h.useColors {
		buf.WriteString(code)
	}
}

func (h *BracketHandler) levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorCyan
	default:
		return colorGray
	}
}

func levelString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
