package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/buildkite/blobgate/internal/trace"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

type ListCmd struct {
	Format string `flag:"format" help:"Output format, plain prints one name per line to stdout." enum:"table,plain" default:"table"`
}

func (cmd *ListCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "ListCmdRun")
	defer span.End()

	log.Info().Str("version", globals.Version).Msg("Running ListCmd")

	videos, err := globals.Gateway.Videos(ctx)
	if err != nil {
		return trace.NewError(span, "failed to list videos: %w", err)
	}

	span.SetAttributes(attribute.Int("video_count", len(videos)))

	if cmd.Format == "plain" {
		for _, v := range videos {
			fmt.Fprintln(globals.Stdout, v.Key)
		}
		return nil
	}

	if len(videos) == 0 {
		globals.Printer.Info("📭", "No videos found in container: %s", globals.Gateway.ContainerName())
		return nil
	}

	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			v.Key,
			humanize.Bytes(Int64ToUint64(v.Size)),
			v.ModTime.UTC().Format(time.RFC3339),
		})
	}

	globals.Printer.Info("🎬", "%d videos in container: %s", len(videos), globals.Gateway.ContainerName())
	_, _ = globals.Printer.Table([]string{"Name", "Size", "Modified"}, rows)

	return nil
}
