package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/buildkite/blobgate/internal/trace"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

type DownloadCmd struct {
	Name   string `arg:"" help:"Name of the blob to read."`
	Output string `flag:"output" short:"o" help:"File to write to. Defaults to stdout."`
}

func (cmd *DownloadCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "DownloadCmdRun")
	defer span.End()

	log.Info().Str("version", globals.Version).Msg("Running DownloadCmd")

	span.SetAttributes(
		attribute.String("name", cmd.Name),
		attribute.String("output", cmd.Output),
	)

	start := time.Now()

	reader, err := globals.Gateway.OpenReadStream(ctx, cmd.Name)
	if err != nil {
		return trace.NewError(span, "failed to open stream: %w", err)
	}
	defer reader.Close()

	var n int64
	if cmd.Output != "" {
		n, err = writeOutput(cmd.Output, reader)
	} else {
		n, err = io.Copy(globals.Stdout, reader)
	}
	if err != nil {
		return trace.NewError(span, "failed to download %s: %w", cmd.Name, err)
	}

	span.SetAttributes(attribute.Int64("bytes", n))

	if cmd.Output != "" {
		globals.Printer.Success("✅", "Downloaded %s to %s (%s in %s)", cmd.Name, cmd.Output, humanize.Bytes(Int64ToUint64(n)), time.Since(start).String())
	}

	log.Debug().Str("name", cmd.Name).Str("content_type", reader.ContentType()).Int64("bytes", n).Msg("downloaded blob")

	return nil
}

// writeOutput copies r into path. The file is removed if the copy or the
// final close fails, so a partial download is never left behind.
func writeOutput(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return n, err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return n, fmt.Errorf("failed to close output file: %w", err)
	}

	return n, nil
}
