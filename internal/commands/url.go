package commands

import (
	"context"
	"fmt"

	"github.com/buildkite/blobgate/internal/trace"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

type URLCmd struct {
	Name string `arg:"" help:"Name of the blob to issue a read URL for."`
}

func (cmd *URLCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "URLCmdRun")
	defer span.End()

	log.Info().Str("version", globals.Version).Msg("Running URLCmd")

	span.SetAttributes(attribute.String("name", cmd.Name))

	link, err := globals.Gateway.IssueReadURL(ctx, cmd.Name)
	if err != nil {
		return trace.RecordError(span, err)
	}

	fmt.Fprintln(globals.Stdout, link) // write to stdout

	return nil
}
