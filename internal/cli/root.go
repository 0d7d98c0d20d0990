// Package cli defines the reviewer command tree. Each worker role is a
// subcommand so one binary can be deployed for every process.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath   string
	Memory       bool
	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "reviewer",
		Short: "Capture, fetch, and review game records",
		Long: `reviewer runs one role of the record review gateway.

The capture role decodes intercepted client traffic, the fetcher role asks
client automation to open requested records, the analyzer role turns fetched
records into reviews, and the frontend role answers lookups over HTTP. Roles
coordinate only through the shared store.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config.yaml", "path to the YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.Memory, "memory", false, "use an in-process store instead of Redis")
	cmd.PersistentFlags().StringVar(&opts.RedisAddr, "redis", "", "Redis address (overrides redis.addr and store.type)")
	cmd.PersistentFlags().StringSliceVar(&opts.KafkaBrokers, "kafka-brokers", nil, "publish lifecycle events to these Kafka brokers")
	cmd.PersistentFlags().StringVar(&opts.KafkaTopic, "kafka-topic", "", "Kafka topic for lifecycle events (overrides events.kafka.topic)")

	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewFetcherCommand(opts))
	cmd.AddCommand(NewAnalyzerCommand(opts))
	cmd.AddCommand(NewFrontendCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Execute runs the command tree until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
