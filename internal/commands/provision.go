package commands

import (
	"context"

	"github.com/buildkite/blobgate/internal/trace"
	"github.com/rs/zerolog/log"
)

type ProvisionCmd struct{}

func (cmd *ProvisionCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "ProvisionCmdRun")
	defer span.End()

	log.Info().Str("version", globals.Version).Msg("Running ProvisionCmd")

	result, err := globals.Gateway.Provision(ctx)
	if err != nil {
		return trace.NewError(span, "failed to provision: %w", err)
	}

	name := globals.Gateway.ContainerName()

	if result.Created {
		globals.Printer.Info("📦", "Created container: %s", name)
	}

	if result.AccessRestricted {
		globals.Printer.Warn("🔒", "Public access removed from container: %s", name)
	}

	globals.Printer.Success("✅", "Container %s is private", name)

	return nil
}
