package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Options controls how the run logger is built.
type Options struct {
	Level   string
	File    string
	NoColor bool
	Writer  io.Writer
}

// ParseLevel maps a flag value onto a slog level. Unknown values fall back to
// info so a typo never silences errors.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing JSON to opts.File when set, and a tint console
// handler otherwise. The returned closer must be called once the run is done.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := ParseLevel(opts.Level)

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
		})
		return slog.New(handler), f.Close, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor || !isTerminal(w),
	})), func() error { return nil }, nil
}

// ConsoleLogger is the logger used before configuration is read.
func ConsoleLogger() *slog.Logger {
	w := os.Stderr
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
