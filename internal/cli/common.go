package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tjfontaine/record-review-gateway/internal/runtime"
	"github.com/tjfontaine/record-review-gateway/internal/server"
)

// shutdownTimeout bounds graceful shutdown of servers and dependencies.
const shutdownTimeout = 30 * time.Second

// newRuntime builds the runtime for role from the global flags.
func newRuntime(ctx context.Context, opts *RootOptions, role string, extra ...runtime.Option) (*runtime.Runtime, error) {
	if opts.Memory && opts.RedisAddr != "" {
		return nil, errors.New("--memory and --redis are mutually exclusive")
	}
	if opts.KafkaTopic != "" && len(opts.KafkaBrokers) == 0 {
		return nil, errors.New("--kafka-topic requires --kafka-brokers")
	}

	rtOpts := []runtime.Option{runtime.WithFileConfig(opts.ConfigPath)}
	if opts.Memory {
		rtOpts = append(rtOpts, runtime.WithMemoryStore())
	}
	if opts.RedisAddr != "" {
		rtOpts = append(rtOpts, runtime.WithRedisAddr(opts.RedisAddr))
	}
	if len(opts.KafkaBrokers) > 0 {
		rtOpts = append(rtOpts, runtime.WithKafkaEvents(opts.KafkaBrokers, opts.KafkaTopic))
	}
	return runtime.New(ctx, role, append(rtOpts, extra...)...)
}

// shutdown releases the runtime, logging rather than returning failures so
// the worker's own error is what the command reports.
func shutdown(rt *runtime.Runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		rt.Logger().Error("shutdown error", slog.String("error", err.Error()))
	}
}

// serveHTTP runs srv until it fails or ctx is done.
func serveHTTP(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
