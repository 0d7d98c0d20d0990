// Package logging builds the slog logger each role runs with: a stdout
// handler, an optional rotating file, and an optional capped list in the
// coordination store.
package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
)

// RankPlaceholder in a file path is replaced by the worker's rank.
const RankPlaceholder = "{rank}"

// Logger is a configured slog.Logger with a shared, adjustable level.
type Logger struct {
	*slog.Logger
	Level   *slog.LevelVar
	closers []io.Closer
}

// Options are the runtime inputs that do not come from config.
type Options struct {
	Stdout io.Writer
	// Store receives log records when cfg.Store.Key is set.
	Store ports.CoordinationStore
	Rank  int
	Role  string
}

// ParseLevel accepts debug, info, warn (or warning) and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds the logger described by cfg.
func New(cfg config.LoggingConfig, opts Options) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	lv := new(slog.LevelVar)
	lv.Set(level)
	hopts := &slog.HandlerOptions{Level: lv}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}

	l := &Logger{Level: lv}
	var handlers []slog.Handler
	if cfg.Format == "text" {
		handlers = append(handlers, slog.NewTextHandler(stdout, hopts))
	} else {
		handlers = append(handlers, slog.NewJSONHandler(stdout, hopts))
	}

	if cfg.File.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   FilePath(cfg.File.Path, opts.Rank),
			MaxSize:    megabytes(cfg.File.MaxBytes),
			MaxBackups: cfg.File.BackupCount,
		}
		l.closers = append(l.closers, rotator)
		handlers = append(handlers, slog.NewJSONHandler(rotator, hopts))
	}

	if cfg.Store.Key != "" {
		if opts.Store == nil {
			return nil, errors.New("store logging configured without a store")
		}
		w := &listWriter{store: opts.Store, key: cfg.Store.Key, maxEntries: cfg.Store.MaxEntries}
		handlers = append(handlers, slog.NewJSONHandler(w, hopts))
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = Fanout(handlers...)
	}

	logger := slog.New(h)
	if opts.Role != "" {
		logger = logger.With(slog.String("role", opts.Role), slog.Int("rank", opts.Rank))
	}
	l.Logger = logger
	return l, nil
}

// FilePath substitutes the rank into a configured log path.
func FilePath(path string, rank int) string {
	return strings.ReplaceAll(path, RankPlaceholder, strconv.Itoa(rank))
}

// lumberjack rotates by whole megabytes.
func megabytes(n int) int {
	if n <= 0 {
		return 0
	}
	mb := n >> 20
	if mb == 0 {
		mb = 1
	}
	return mb
}

// SetLevel changes the level of every handler.
func (l *Logger) SetLevel(s string) error {
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	l.Level.Set(level)
	return nil
}

// Close closes rotating files.
func (l *Logger) Close() error {
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// listWriter appends each record to a store list capped at maxEntries.
// slog handlers write one record per Write call.
type listWriter struct {
	store      ports.CoordinationStore
	key        string
	maxEntries int64
}

func (w *listWriter) Write(p []byte) (int, error) {
	ctx := context.Background()
	line := bytes.TrimRight(p, "\n")

	n, err := w.store.Push(ctx, w.key, line)
	if err != nil {
		return 0, err
	}
	if w.maxEntries > 0 && n > w.maxEntries {
		if err := w.store.Trim(ctx, w.key, w.maxEntries); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}
