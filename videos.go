package blobgate

import (
	"context"
	"fmt"
	"strings"

	"github.com/buildkite/blobgate/internal/trace"
	"github.com/buildkite/blobgate/store"
	"go.opentelemetry.io/otel/attribute"
)

// IssueReadURL returns the blob's URL with a read-only signed grant appended.
// The grant is scoped to the single blob and expires URLExpiry after issuance;
// two calls never share a signature once the clock has moved on.
//
// The container access policy is not touched, use Provision for that.
//
// Failures are returned as *AccessError.
func (g *Gateway) IssueReadURL(ctx context.Context, name string) (string, error) {
	ctx, span := trace.Start(ctx, "Gateway.IssueReadURL")
	defer span.End()

	span.SetAttributes(
		attribute.String("container", g.container.Name()),
		attribute.String("blob_key", name),
	)

	signed, err := g.container.SignedURL(ctx, name, g.urlExpiry)
	if err != nil {
		return "", trace.RecordError(span, &AccessError{Name: name, Err: err})
	}

	return signed, nil
}

// Videos returns every blob in the container whose name ends with the video
// suffix, in the order the container enumerates them.
//
// Remote failures are returned, an error never yields an empty list.
func (g *Gateway) Videos(ctx context.Context) ([]store.ObjectInfo, error) {
	ctx, span := trace.Start(ctx, "Gateway.Videos")
	defer span.End()

	span.SetAttributes(attribute.String("container", g.container.Name()))

	objects, err := g.container.List(ctx, "")
	if err != nil {
		return nil, trace.NewError(span, "failed to list blobs in %s: %w", g.container.Name(), err)
	}

	videos := make([]store.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, g.videoSuffix) {
			videos = append(videos, obj)
		}
	}

	span.SetAttributes(
		attribute.Int("blob_count", len(objects)),
		attribute.Int("video_count", len(videos)),
	)

	return videos, nil
}

// ListVideos returns the names of the videos in the container. See Videos.
func (g *Gateway) ListVideos(ctx context.Context) ([]string, error) {
	videos, err := g.Videos(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(videos))
	for i, v := range videos {
		names[i] = v.Key
	}

	return names, nil
}

// OpenReadStream opens the named blob for sequential reading from its start.
// The caller owns the returned stream and must close it.
//
// Returns an error matching ErrBlobNotFound if the blob does not exist.
func (g *Gateway) OpenReadStream(ctx context.Context, name string) (store.Reader, error) {
	ctx, span := trace.Start(ctx, "Gateway.OpenReadStream")
	defer span.End()

	span.SetAttributes(
		attribute.String("container", g.container.Name()),
		attribute.String("blob_key", name),
	)

	reader, err := g.container.NewReader(ctx, name)
	if err != nil {
		return nil, trace.RecordError(span, fmt.Errorf("failed to open %s: %w", name, err))
	}

	return reader, nil
}
