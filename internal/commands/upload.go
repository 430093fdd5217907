package commands

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/buildkite/blobgate/internal/trace"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// videoTypes covers extensions missing from the platform mime tables.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

type UploadCmd struct {
	Name        string `arg:"" help:"Name of the blob to write."`
	File        string `arg:"" help:"Local file to upload." type:"existingfile"`
	ContentType string `flag:"content-type" help:"Content type stamped on the blob. Defaults to one derived from the file extension."`
}

func (cmd *UploadCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "UploadCmdRun")
	defer span.End()

	log.Info().Str("version", globals.Version).Msg("Running UploadCmd")

	contentType := cmd.ContentType
	if contentType == "" {
		contentType = detectContentType(cmd.File)
	}

	span.SetAttributes(
		attribute.String("name", cmd.Name),
		attribute.String("file", cmd.File),
		attribute.String("content_type", contentType),
	)

	f, err := os.Open(cmd.File)
	if err != nil {
		return trace.NewError(span, "failed to open file: %w", err)
	}
	defer f.Close()

	globals.Printer.Info("⬆️", "Uploading %s to %s/%s", cmd.File, globals.Gateway.ContainerName(), cmd.Name)

	result, err := globals.Gateway.Upload(ctx, cmd.Name, f, contentType)
	if err == nil && !result.OK {
		err = result.Error
	}
	if err != nil {
		globals.Printer.Error("❌", "Upload failed: %v", err)
		fmt.Fprintln(globals.Stdout, "false") // write to stdout
		return trace.NewError(span, "upload of %s failed: %w", cmd.Name, err)
	}

	if result.ContainerCreated {
		globals.Printer.Info("📦", "Created container: %s", globals.Gateway.ContainerName())
	}

	t := table.New().Border(lipgloss.NormalBorder()).
		Row("Name", result.Name).
		Row("Content type", result.ContentType).
		Row("Size", humanize.Bytes(Int64ToUint64(result.Transfer.BytesTransferred))).
		Row("Transfer speed", fmt.Sprintf("%.2fMB/s", result.Transfer.TransferSpeed)).
		Row("Duration", result.TotalDuration.String())

	globals.Printer.Info("📊", "Upload summary:\n%s", t.Render())
	globals.Printer.Success("✅", "Uploaded %s", cmd.Name)
	fmt.Fprintln(globals.Stdout, "true")

	return nil
}

func detectContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}
