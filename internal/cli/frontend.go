package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/record-review-gateway/internal/fetcher"
	"github.com/tjfontaine/record-review-gateway/internal/lookup"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
	"github.com/tjfontaine/record-review-gateway/internal/server"
)

const roleFrontend = "frontend"

// FrontendOptions holds flags for the frontend command.
type FrontendOptions struct {
	*RootOptions
	Port            int
	SkipInitializer bool
}

// NewFrontendCommand creates the frontend command.
func NewFrontendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FrontendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "frontend",
		Short: "Serve review lookups over HTTP",
		Long: `Serve review lookups over HTTP.

GET /{record_id} requests the record and waits for its review. On startup
one initializer per configured fetcher account is queued so fetcher
processes can claim a rank and account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrontend(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (overrides frontend.port)")
	cmd.Flags().BoolVar(&opts.SkipInitializer, "skip-initializers", false, "do not queue fetcher initializers")
	return cmd
}

func runFrontend(ctx context.Context, opts *FrontendOptions) error {
	rt, err := newRuntime(ctx, opts.RootOptions, roleFrontend)
	if err != nil {
		return err
	}
	defer shutdown(rt)

	cfg := rt.Config()
	logger := rt.Logger()
	jobs := rt.Jobs()

	if !opts.SkipInitializer {
		if err := fetcher.PushInitializers(ctx, jobs, cfg.Fetcher.Accounts); err != nil {
			return err
		}
		logger.Info("fetcher initializers queued", slog.Int("count", len(cfg.Fetcher.Accounts)))
	}

	bridge := lookup.NewBridge(jobs, lookup.Config{
		Timeout:      cfg.Frontend.LookupTimeout,
		PollInterval: cfg.Frontend.PollInterval,
	}, logger)
	rt.OnReload(func(c *config.Config) {
		if c.Frontend.LookupTimeout != bridge.Timeout() {
			bridge.SetTimeout(c.Frontend.LookupTimeout)
			logger.Info("lookup timeout changed", slog.Duration("timeout", c.Frontend.LookupTimeout))
		}
	})

	port := opts.Port
	if port == 0 {
		port = cfg.Frontend.Port
	}
	srv := server.New(port, logger, server.Options{Operation: roleFrontend})
	lookup.NewHandler(bridge).Register(srv.Router)

	if err := rt.Start(ctx); err != nil {
		return err
	}
	return rt.Supervise(ctx, "frontend-server", func(ctx context.Context) error {
		return serveHTTP(ctx, srv)
	})
}
