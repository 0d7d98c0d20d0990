// Package supervisor restarts long-running worker loops according to an
// explicit policy.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
)

// Restart names when a finished worker is started again.
type Restart string

const (
	RestartAlways    Restart = "always"
	RestartOnFailure Restart = "on-failure"
	RestartNever     Restart = "never"
)

// Policy controls restarts. Backoff doubles after each consecutive failure
// up to MaxBackoff and resets after a clean run. MaxRestarts of zero means
// unlimited.
type Policy struct {
	Restart     Restart
	Backoff     time.Duration
	MaxBackoff  time.Duration
	MaxRestarts int
}

// PolicyFromConfig converts the supervisor config section.
func PolicyFromConfig(cfg config.SupervisorConfig) Policy {
	return Policy{
		Restart:     Restart(cfg.Restart),
		Backoff:     cfg.Backoff,
		MaxBackoff:  cfg.MaxBackoff,
		MaxRestarts: cfg.MaxRestarts,
	}
}

// Result reports how a supervised worker ended.
type Result struct {
	Restarts int
	// Err is the last worker error when the policy gave up. It is nil after
	// a clean exit or when ctx was cancelled.
	Err error
}

// PanicError is returned in place of a worker panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

// Func is one run of a worker loop.
type Func func(ctx context.Context) error

// Run executes fn until the policy stops restarting it or ctx is done.
func Run(ctx context.Context, name string, fn Func, p Policy, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("worker", name))

	var res Result
	backoff := p.Backoff
	for {
		err := call(ctx, fn)
		if ctx.Err() != nil {
			logger.Info("worker stopped", slog.Int("restarts", res.Restarts))
			return res
		}

		if err == nil {
			if p.Restart != RestartAlways {
				logger.Info("worker finished", slog.Int("restarts", res.Restarts))
				return res
			}
			backoff = p.Backoff
			logger.Info("worker finished, restarting")
		} else {
			logger.Error("worker failed",
				slog.String("error", err.Error()),
				slog.Int("restarts", res.Restarts))
			if pe, ok := err.(*PanicError); ok {
				logger.Debug("worker panic stack", slog.String("stack", string(pe.Stack)))
			}

			if p.Restart == RestartNever || (p.MaxRestarts > 0 && res.Restarts >= p.MaxRestarts) {
				res.Err = err
				return res
			}
		}

		if !sleep(ctx, backoff) {
			logger.Info("worker stopped", slog.Int("restarts", res.Restarts))
			return res
		}
		res.Restarts++

		if err != nil {
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}
	}
}

func call(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
