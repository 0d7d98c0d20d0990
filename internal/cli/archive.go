package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
	"github.com/tjfontaine/record-review-gateway/internal/storage/archive"
)

// ArchiveListOptions holds flags for the archive list command.
type ArchiveListOptions struct {
	*RootOptions
	Database  string
	Limit     int
	Offset    int
	ErrorCode int
	Format    string
}

// NewArchiveCommand creates the archive command group.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect the review archive",
	}
	cmd.AddCommand(newArchiveListCommand(rootOpts))
	return cmd
}

func newArchiveListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived reviews, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveList(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive path (defaults to analyzer.archive.path)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum records to list")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "records to skip")
	cmd.Flags().IntVar(&opts.ErrorCode, "error-code", -1, "only list reviews with this error code")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	return cmd
}

func runArchiveList(cmd *cobra.Command, opts *ArchiveListOptions) error {
	if opts.Format != "text" && opts.Format != "json" {
		return fmt.Errorf("invalid format %q: must be json or text", opts.Format)
	}

	path := opts.Database
	if path == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
		path = cfg.Analyzer.Archive.Path
	}
	if path == "" {
		return fmt.Errorf("no archive configured: set analyzer.archive.path or pass --db")
	}

	a, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer a.Close()

	listOpts := archive.ListOptions{Limit: opts.Limit, Offset: opts.Offset}
	if opts.ErrorCode >= 0 {
		listOpts.ErrorCode = &opts.ErrorCode
	}
	records, err := a.List(cmd.Context(), listOpts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		for i := range records {
			line := struct {
				archive.Record
				Review json.RawMessage `json:"review"`
			}{Record: records[i], Review: records[i].ToReview().Review}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORD\tERROR\tREVIEWED\tARCHIVED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.RecordID, r.ErrorCode,
			time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339),
			time.Unix(r.ArchivedAt, 0).UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
