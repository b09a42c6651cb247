// Package applog wraps log/slog with a small line-oriented handler, the way
// the S370-style wrapper in the teacher pack formats records for a
// terminal rather than JSON.
package applog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler formats records as "<time> <level>: <message> <attr>...\n" and
// writes them to out, mirroring util/logger's LogHandler.
type Handler struct {
	out   io.Writer
	mu    *sync.Mutex
	level slog.Leveler
}

// New builds a Handler writing to out at the given minimum level.
func New(out io.Writer, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{out: out, mu: &sync.Mutex{}, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *Handler) WithGroup(_ string) slog.Handler { return h }

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	fields := []string{r.Time.Format("2006/01/02 15:04:05"), r.Level.String() + ":", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, a.String())
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, strings.Join(fields, " ")+"\n")
	return err
}

// NewLogger returns a ready-to-use *slog.Logger writing to stderr at
// LevelInfo, bumped to LevelDebug when verbose is true.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(New(os.Stderr, level))
}
