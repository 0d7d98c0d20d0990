package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/record-review-gateway/internal/capture"
	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
	"github.com/tjfontaine/record-review-gateway/internal/server"
)

const roleCapture = "capture"

// NewCaptureCommand creates the capture command group.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Decode intercepted client traffic",
	}
	cmd.AddCommand(newCaptureServeCommand(rootOpts))
	cmd.AddCommand(newCaptureReplayCommand(rootOpts))
	return cmd
}

func newCaptureServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept frames from the intercepting proxy over HTTP",
		Long: `Accept frames from the intercepting proxy.

The proxy POSTs each frame body to /v1/frames with the X-Frame-Direction
header set to inbound or outbound. Frames must arrive in capture order.
A proxy may instead hold a websocket open on /v1/stream and send each frame
as a JSON text message in the replay format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, rootOpts, roleCapture)
			if err != nil {
				return err
			}
			defer shutdown(rt)

			cfg := rt.Config()
			if port == 0 {
				port = cfg.Capture.Port
			}

			pipeline := capture.NewPipeline(coordinator.NewRecorder(rt.Jobs()), rt.Logger())
			srv := server.New(port, rt.Logger(), server.Options{Operation: roleCapture})
			capture.NewHandler(pipeline).Register(srv.Router)

			if err := rt.Start(ctx); err != nil {
				return err
			}
			return rt.Supervise(ctx, "capture-server", func(ctx context.Context) error {
				return serveHTTP(ctx, srv)
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides capture.port)")
	return cmd
}

func newCaptureReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Feed a recorded frame log through the pipeline",
		Long: `Feed newline-delimited JSON frames through the capture pipeline.

Each line is {"direction":"inbound|outbound","content":"<base64>"} with an
optional "opcode". Use - to read from stdin. Pipeline stats are printed as
JSON when the file is exhausted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, rootOpts, roleCapture)
			if err != nil {
				return err
			}
			defer shutdown(rt)

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			pipeline := capture.NewPipeline(coordinator.NewRecorder(rt.Jobs()), rt.Logger())
			n, err := capture.Replay(ctx, pipeline, in)
			if err != nil {
				return fmt.Errorf("replay stopped after %d frames: %w", n, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pipeline.Stats())
		},
	}
	return cmd
}
