// Package logger configures the process-wide slog logger: tint on a console,
// JSON when asked for or when shipping to a collector.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

type Config struct {
	Level      string
	Format     string
	OutputPath string
}

var level = new(slog.LevelVar)

// ParseLevel maps debug/info/warn/error to a slog level, info otherwise.
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

// Init builds the logger described by cfg and makes it the slog default.
// The returned closer releases the output file, if any.
func Init(cfg Config) (*slog.Logger, func() error, error) {
	level.Set(ParseLevel(cfg.Level))

	var (
		w      io.Writer
		closer = func() error { return nil }
	)
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closer = f.Close
	}

	l := slog.New(NewHandler(w, cfg.Format))
	slog.SetDefault(l)
	return l, closer, nil
}

// NewHandler returns a JSON handler for format "json" and a tint handler
// otherwise, colored only when w is a terminal.
func NewHandler(w io.Writer, format string) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	})
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

func SetLevel(l slog.Level) { level.Set(l) }

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
