package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/buildkite/blobgate"
	"github.com/buildkite/blobgate/internal/commands"
	"github.com/buildkite/blobgate/internal/console"
	"github.com/buildkite/blobgate/internal/trace"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	version           = "dev"
	defaultConfigPath = ".blobgate.yml"

	cli struct {
		Version       kong.VersionFlag
		Debug         bool            `help:"Enable debug mode." default:"false" env:"BLOBGATE_DEBUG"`
		TraceExporter string          `flag:"trace-exporter" help:"The trace exporter to use. Defaults to 'noop'." default:"noop" enum:"noop,grpc" env:"BLOBGATE_TRACE_EXPORTER"`
		Config        kong.ConfigFlag `flag:"config" help:"The path to the CLI configuration file. Defaults to .blobgate.yml" default:"${default_config_path}" env:"BLOBGATE_CONFIG"`

		commands.CommonFlags

		List      commands.ListCmd      `cmd:"" help:"list videos in the container."`
		Upload    commands.UploadCmd    `cmd:"" help:"upload a file."`
		Download  commands.DownloadCmd  `cmd:"" help:"download a blob."`
		Delete    commands.DeleteCmd    `cmd:"" help:"delete a blob."`
		URL       commands.URLCmd       `cmd:"" name:"url" help:"issue a time limited read URL for a blob."`
		Provision commands.ProvisionCmd `cmd:"" help:"create the container and remove public access."`
	}
)

func main() {
	ctx := context.Background()

	// Overloads `cli` with configuration file values.
	cmd := kong.Parse(&cli,
		kong.Vars{"version": version, "default_config_path": defaultConfigPath},
		kong.NamedMapper("yamlfile", kongyaml.YAMLFileMapper),
		kong.Configuration(kongyaml.Loader),
		kong.BindTo(ctx, (*context.Context)(nil)))

	err := Run(ctx, cmd)
	cmd.FatalIfErrorf(err)
}

func Run(ctx context.Context, cmd *kong.Context) error {
	start := time.Now()

	if cli.Debug {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(zerolog.ErrorLevel)
	}

	tp, err := trace.NewProvider(ctx, cli.TraceExporter, "github.com/buildkite/blobgate", version)
	if err != nil {
		return fmt.Errorf("failed to create trace provider: %w", err)
	}
	defer func() {
		_ = tp.Shutdown(ctx)
	}()

	cfg, err := cli.GatewayConfig(version)
	if err != nil {
		return err
	}

	gw, err := blobgate.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	defer gw.Close()

	printer := console.NewPrinter(os.Stderr)

	err = cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Gateway: gw, Printer: printer, Stdout: os.Stdout})
	if err != nil {
		return fmt.Errorf("command %s failed: %w", cmd.Command(), err)
	}

	printer.Info("✅", "%s completed successfully in %s", cmd.Command(), time.Since(start).String())

	return nil
}
