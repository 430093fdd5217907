package commands

import (
	"context"
	"fmt"

	"github.com/buildkite/blobgate/internal/trace"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

type DeleteCmd struct {
	Name string `arg:"" help:"Name of the blob to delete."`
}

func (cmd *DeleteCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "DeleteCmdRun")
	defer span.End()

	log.Info().Str("version", globals.Version).Msg("Running DeleteCmd")

	span.SetAttributes(attribute.String("name", cmd.Name))

	result, err := globals.Gateway.Delete(ctx, cmd.Name)
	if err == nil && !result.OK {
		err = result.Error
	}
	if err != nil {
		globals.Printer.Error("❌", "Delete failed: %v", err)
		fmt.Fprintln(globals.Stdout, "false") // write to stdout
		return trace.NewError(span, "delete of %s failed: %w", cmd.Name, err)
	}

	if result.Existed {
		globals.Printer.Success("🗑️", "Deleted %s in %s", cmd.Name, result.TotalDuration.String())
	} else {
		globals.Printer.Warn("🤷", "Nothing to delete, %s does not exist", cmd.Name)
	}

	fmt.Fprintln(globals.Stdout, "true")

	return nil
}
