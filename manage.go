package blobgate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/buildkite/blobgate/internal/trace"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// UploadResult contains detailed information about an upload.
//
// Check OK first. When it is false, Error holds the reason regardless of the
// gateway's ErrorStrategy.
type UploadResult struct {
	// OK reports whether the blob was written.
	OK bool

	// Error is the failure when OK is false.
	Error error

	// Name is the blob name that was written.
	Name string

	// ContentType is the content type stamped on the blob.
	ContentType string

	// ContainerCreated is true when the upload had to create the container.
	ContainerCreated bool

	// Transfer is nil unless the blob was written.
	Transfer *TransferMetrics

	// TotalDuration covers container creation and the transfer.
	TotalDuration time.Duration
}

// DeleteResult contains detailed information about a delete.
type DeleteResult struct {
	// OK is true whether or not the blob existed, and false only when the
	// delete itself failed.
	OK bool

	// Error is the failure when OK is false.
	Error error

	// Name is the blob name that was deleted.
	Name string

	// Existed reports whether there was a blob to delete.
	Existed bool

	TotalDuration time.Duration
}

// ProvisionResult describes the changes Provision made to the container.
type ProvisionResult struct {
	// Created is true when the container did not exist.
	Created bool

	// AccessRestricted is true when public access had to be turned off.
	AccessRestricted bool
}

// TransferMetrics contains metrics about an upload.
type TransferMetrics struct {
	// BytesTransferred is the number of bytes uploaded.
	BytesTransferred int64

	// TransferSpeed is the transfer rate in MB/s.
	TransferSpeed float64

	// Duration is how long the transfer took.
	Duration time.Duration
}

// Upload creates the container if it is missing and then writes the full
// contents of r under name, replacing any blob with that name. contentType is
// stamped on the blob; when empty the backend sniffs it from the content.
//
// Under ErrorStrategySuppress the returned error is always nil and failures
// are reported in the result only.
func (g *Gateway) Upload(ctx context.Context, name string, r io.Reader, contentType string) (UploadResult, error) {
	ctx, span := trace.Start(ctx, "Gateway.Upload")
	defer span.End()

	span.SetAttributes(
		attribute.String("container", g.container.Name()),
		attribute.String("blob_key", name),
		attribute.String("content_type", contentType),
	)

	start := time.Now()
	result := UploadResult{Name: name, ContentType: contentType}

	created, err := g.container.CreateIfNotExists(ctx)
	if err != nil {
		result.Error = fmt.Errorf("failed to ensure container exists: %w", err)
		result.TotalDuration = time.Since(start)
		return result, g.failure(span, "upload", name, result.Error)
	}
	result.ContainerCreated = created

	if created {
		log.Info().Str("container", g.container.Name()).Msg("created container")
	}

	info, err := g.container.Upload(ctx, name, r, contentType)
	if err != nil {
		result.Error = fmt.Errorf("failed to upload %s: %w", name, err)
		result.TotalDuration = time.Since(start)
		return result, g.failure(span, "upload", name, result.Error)
	}

	result.OK = true
	result.Transfer = &TransferMetrics{
		BytesTransferred: info.BytesTransferred,
		TransferSpeed:    info.TransferSpeed,
		Duration:         info.Duration,
	}
	result.TotalDuration = time.Since(start)

	log.Debug().
		Str("container", g.container.Name()).
		Str("blob", name).
		Int64("bytes", info.BytesTransferred).
		Str("transfer_speed", fmt.Sprintf("%.2fMB/s", info.TransferSpeed)).
		Msg("uploaded blob")

	return result, nil
}

// Delete removes the named blob if it exists. A missing blob is not a failure.
//
// Under ErrorStrategySuppress the returned error is always nil and failures
// are reported in the result only.
func (g *Gateway) Delete(ctx context.Context, name string) (DeleteResult, error) {
	ctx, span := trace.Start(ctx, "Gateway.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("container", g.container.Name()),
		attribute.String("blob_key", name),
	)

	start := time.Now()
	result := DeleteResult{Name: name}

	existed, err := g.container.Delete(ctx, name)
	if err != nil {
		result.Error = fmt.Errorf("failed to delete %s: %w", name, err)
		result.TotalDuration = time.Since(start)
		return result, g.failure(span, "delete", name, result.Error)
	}

	result.OK = true
	result.Existed = existed
	result.TotalDuration = time.Since(start)

	log.Debug().
		Str("container", g.container.Name()).
		Str("blob", name).
		Bool("existed", existed).
		Msg("deleted blob")

	return result, nil
}

// Provision creates the container if it is missing and removes any public
// access from it. It is safe to call repeatedly.
func (g *Gateway) Provision(ctx context.Context) (ProvisionResult, error) {
	ctx, span := trace.Start(ctx, "Gateway.Provision")
	defer span.End()

	span.SetAttributes(attribute.String("container", g.container.Name()))

	var result ProvisionResult

	created, err := g.container.CreateIfNotExists(ctx)
	if err != nil {
		return result, trace.NewError(span, "failed to ensure container exists: %w", err)
	}
	result.Created = created

	restricted, err := g.container.RestrictPublicAccess(ctx)
	if err != nil {
		return result, trace.NewError(span, "failed to restrict public access: %w", err)
	}
	result.AccessRestricted = restricted

	log.Info().
		Str("container", g.container.Name()).
		Bool("created", created).
		Bool("access_restricted", restricted).
		Msg("provisioned container")

	return result, nil
}

// failure records err and applies the error strategy.
func (g *Gateway) failure(span oteltrace.Span, op, name string, err error) error {
	_ = trace.RecordError(span, err)

	log.Warn().
		Err(err).
		Str("container", g.container.Name()).
		Str("blob", name).
		Str("error_strategy", string(g.strategy)).
		Msgf("%s failed", op)

	if g.strategy == ErrorStrategyPropagate {
		return err
	}

	return nil
}
