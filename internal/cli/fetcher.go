package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
	"github.com/tjfontaine/record-review-gateway/internal/driver"
	"github.com/tjfontaine/record-review-gateway/internal/fetcher"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
)

const roleFetcher = "fetcher"

// FetcherOptions holds flags for the fetcher command.
type FetcherOptions struct {
	*RootOptions
	Account string
	Rank    int
}

// NewFetcherCommand creates the fetcher command.
func NewFetcherCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetcherOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetcher",
		Short: "Open requested records through client automation",
		Long: `Open requested records through client automation.

Without --account the worker waits for the frontend to hand it a rank and an
account on the initializer queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetcher(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Account, "account", "", "client account to act as (skips the initializer queue)")
	cmd.Flags().IntVar(&opts.Rank, "rank", 0, "process rank used with --account")
	return cmd
}

func runFetcher(ctx context.Context, opts *FetcherOptions) error {
	rt, err := newRuntime(ctx, opts.RootOptions, roleFetcher)
	if err != nil {
		return err
	}
	defer shutdown(rt)

	boot := &coordinator.Initializer{ProcessRank: opts.Rank, EmailAddress: opts.Account}
	if opts.Account == "" {
		rt.Logger().Info("waiting for initializer")
		boot, err = fetcher.WaitForInitializer(ctx, rt.Jobs(), 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	if err := rt.ConfigureLogging(boot.ProcessRank); err != nil {
		return err
	}
	logger := rt.Logger().With(slog.String("account", boot.EmailAddress))
	logger.Info("fetcher initialized")

	cfg := rt.Config()
	trigger, err := newTrigger(cfg.Fetcher.Driver, boot.EmailAddress, logger)
	if err != nil {
		return err
	}

	worker := fetcher.New(rt.Jobs(), trigger, fetcher.Config{
		PollInterval: cfg.Fetcher.PollInterval,
		PollAttempts: cfg.Fetcher.PollAttempts,
	}, logger)

	if err := rt.Start(ctx); err != nil {
		return err
	}
	return rt.Supervise(ctx, roleFetcher, worker.Run)
}

// newTrigger returns the HTTP driver when one is configured and a
// log-only trigger otherwise.
func newTrigger(cfg config.DriverConfig, account string, logger *slog.Logger) (ports.RetrievalTrigger, error) {
	if cfg.BaseURL == "" {
		logger.Warn("no driver configured, records must be opened by hand")
		return &driver.LogTrigger{Logger: logger}, nil
	}
	return driver.NewHTTPTrigger(cfg.BaseURL, account, nil, cfg.Timeout)
}
