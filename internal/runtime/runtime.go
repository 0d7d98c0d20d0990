// Package runtime wires the dependencies every worker role shares (config,
// coordination store, logging, lifecycle events, tracing) and manages
// their lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/logging"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
	"github.com/tjfontaine/record-review-gateway/internal/storage"
	"github.com/tjfontaine/record-review-gateway/internal/storage/archive"
	"github.com/tjfontaine/record-review-gateway/internal/supervisor"
	"github.com/tjfontaine/record-review-gateway/internal/telemetry"
)

// Runtime holds one role's shared dependencies.
type Runtime struct {
	role string

	// Dependencies (injected via options)
	config ports.ConfigProvider
	store  ports.CoordinationStore
	events ports.EventPublisher
	logger *slog.Logger
	stdout io.Writer

	// Internal state
	cfg           *config.Config
	roleLogger    *logging.Logger
	defaultEvents bool
	archive       *archive.Archive
	traceShutdown func(context.Context) error
	reloaders     []func(*config.Config)
	overrides     []func(*config.Config)

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New loads configuration and opens the store, event publisher, and
// tracer for role.
func New(ctx context.Context, role string, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		role:   role,
		logger: slog.Default(),
		stdout: os.Stdout,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if r.config == nil {
		return nil, fmt.Errorf("config provider required (use WithFileConfig or WithConfig)")
	}

	cfg, err := r.config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg = r.applyOverrides(cfg)
	r.cfg = cfg

	if r.store == nil {
		store, err := storage.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		r.store = store
	}

	if err := r.ConfigureLogging(0); err != nil {
		r.store.Close()
		return nil, err
	}

	if r.events == nil {
		publisher, err := eventsFromConfig(cfg, r.logger)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("create event publisher: %w", err)
		}
		r.events = publisher
		r.defaultEvents = cfg.Events.Type != "kafka"
	}

	shutdown, err := telemetry.InitTracer(cfg.Telemetry, role, r.stdout, r.logger)
	if err != nil {
		r.closeAll()
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	r.traceShutdown = shutdown

	return r, nil
}

// ConfigureLogging rebuilds the role logger for rank. Workers call it once
// their rank is known.
func (r *Runtime) ConfigureLogging(rank int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := logging.New(r.cfg.LoggingFor(r.role), logging.Options{
		Stdout: r.stdout,
		Store:  r.store,
		Rank:   rank,
		Role:   r.role,
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	if r.roleLogger != nil {
		r.roleLogger.Close()
	}
	r.roleLogger = l
	r.logger = l.Logger

	if r.defaultEvents {
		if err := r.events.Close(); err != nil {
			r.logger.Warn("failed to close events", slog.String("error", err.Error()))
		}
		publisher, err := eventsFromConfig(r.cfg, r.logger)
		if err != nil {
			return fmt.Errorf("create event publisher: %w", err)
		}
		r.events = publisher
	}
	return nil
}

// Role returns the role name.
func (r *Runtime) Role() string {
	return r.role
}

// Config returns the current configuration.
func (r *Runtime) Config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Logger returns the role logger.
func (r *Runtime) Logger() *slog.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

// Store returns the coordination store.
func (r *Runtime) Store() ports.CoordinationStore {
	return r.store
}

// Events returns the lifecycle event publisher.
func (r *Runtime) Events() ports.EventPublisher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events
}

// Jobs returns a protocol handle bound to this role.
func (r *Runtime) Jobs(opts ...coordinator.Option) *coordinator.Jobs {
	base := []coordinator.Option{
		coordinator.WithPublisher(r.Events()),
		coordinator.WithLogger(r.Logger()),
	}
	return coordinator.NewJobs(r.store, r.role, append(base, opts...)...)
}

// OpenArchive opens the review archive at path. It is closed on Shutdown.
func (r *Runtime) OpenArchive(path string) (*archive.Archive, error) {
	a, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.archive = a
	r.mu.Unlock()
	return a, nil
}

// OnReload registers fn to run with every config that reloads cleanly.
func (r *Runtime) OnReload(fn func(*config.Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloaders = append(r.reloaders, fn)
}

// Start begins watching the config for changes.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	if err := r.config.Watch(r.ctx, r.reload); err != nil {
		// The role runs on its startup config.
		r.Logger().Warn("config watch unavailable", slog.String("error", err.Error()))
	}

	r.Logger().Info("runtime started",
		slog.String("store", r.cfg.Store.Type),
		slog.String("events", r.cfg.Events.Type))
	return nil
}

// reload applies the log level and hands cfg to registered callbacks.
func (r *Runtime) reload(cfg *config.Config) {
	cfg = r.applyOverrides(cfg)

	r.mu.Lock()
	r.cfg = cfg
	reloaders := append([]func(*config.Config){}, r.reloaders...)
	roleLogger := r.roleLogger
	r.mu.Unlock()

	level := cfg.LoggingFor(r.role).Level
	if err := roleLogger.SetLevel(level); err != nil {
		roleLogger.Warn("ignoring log level", slog.String("error", err.Error()))
	}
	for _, fn := range reloaders {
		fn(cfg)
	}
	roleLogger.Info("config reloaded", slog.String("level", level))
}

// applyOverrides returns a copy of cfg with option overrides applied, leaving
// the provider's config untouched.
func (r *Runtime) applyOverrides(cfg *config.Config) *config.Config {
	if len(r.overrides) == 0 {
		return cfg
	}
	c := *cfg
	for _, fn := range r.overrides {
		fn(&c)
	}
	return &c
}

// Supervise runs fn under the configured restart policy and returns the
// error that made the policy give up.
func (r *Runtime) Supervise(ctx context.Context, name string, fn supervisor.Func) error {
	res := supervisor.Run(ctx, name, fn, supervisor.PolicyFromConfig(r.Config().Supervisor), r.Logger())
	if res.Err != nil {
		return fmt.Errorf("%s stopped after %d restarts: %w", name, res.Restarts, res.Err)
	}
	return nil
}

// Shutdown stops the config watch and closes every dependency.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.Logger().Info("shutting down")

	var errs []error
	if r.traceShutdown != nil {
		if err := r.traceShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	if err := r.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeAll releases resources in reverse dependency order. The store is
// closed last because store-backed logging writes through it.
func (r *Runtime) closeAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.archive != nil {
		if err := r.archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}
	if r.events != nil {
		if err := r.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close events: %w", err))
		}
	}
	if r.config != nil {
		if err := r.config.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close config: %w", err))
		}
	}
	if r.roleLogger != nil {
		if err := r.roleLogger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
