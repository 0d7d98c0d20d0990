package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/record-review-gateway/internal/analyzer"
	"github.com/tjfontaine/record-review-gateway/internal/core/ports"
)

const roleAnalyzer = "analyzer"

// NewAnalyzerCommand creates the analyzer command.
func NewAnalyzerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyzer",
		Short: "Turn fetched records into reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyzer(cmd.Context(), rootOpts)
		},
	}
}

func runAnalyzer(ctx context.Context, opts *RootOptions) error {
	rt, err := newRuntime(ctx, opts, roleAnalyzer)
	if err != nil {
		return err
	}
	defer shutdown(rt)

	rank, err := analyzer.ClaimRank(ctx, rt.Jobs())
	if err != nil {
		return err
	}
	if err := rt.ConfigureLogging(rank); err != nil {
		return err
	}
	logger := rt.Logger()

	cfg := rt.Config()
	var archive ports.ReviewArchive
	if path := cfg.Analyzer.Archive.Path; path != "" {
		a, err := rt.OpenArchive(path)
		if err != nil {
			return err
		}
		archive = a
		logger.Info("archiving reviews", slog.String("path", path))
	}

	worker := analyzer.NewWorker(rt.Jobs(), analyzer.NewProducer(nil, nil), archive, analyzer.Config{
		DeadLetter: !cfg.Analyzer.DropFailed,
	}, logger)

	if err := rt.Start(ctx); err != nil {
		return err
	}
	logger.Info("analyzer started")
	return rt.Supervise(ctx, roleAnalyzer, worker.Run)
}
