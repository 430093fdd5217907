package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/buildkite/blobgate/internal/trace"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob" // Azure Blob Storage driver
	_ "gocloud.dev/blob/fileblob"  // Local file driver for development
	_ "gocloud.dev/blob/memblob"   // In-memory driver for testing
	_ "gocloud.dev/blob/s3blob"    // AWS S3 driver
	"gocloud.dev/gcerrors"
)

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, key string, expiry time.Duration) (string, error)

func (fn SignerFunc) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return fn(ctx, key, expiry)
}

// Bucket implements Container using gocloud.dev.
type Bucket struct {
	bucket      *blob.Bucket
	name        string
	prefix      string
	signer      Signer
	provisioner Provisioner
}

// Ensure Bucket implements the Container interface
var _ Container = (*Bucket)(nil)

type Option func(*Bucket)

// WithName sets the container name reported by Name.
func WithName(name string) Option {
	return func(b *Bucket) { b.name = name }
}

// WithPrefix scopes every key under prefix.
func WithPrefix(prefix string) Option {
	return func(b *Bucket) { b.prefix = normalizePrefix(prefix) }
}

// WithSigner replaces the driver's own URL signing.
func WithSigner(s Signer) Option {
	return func(b *Bucket) { b.signer = s }
}

// WithProvisioner enables container creation and access policy changes.
func WithProvisioner(p Provisioner) Option {
	return func(b *Bucket) { b.provisioner = p }
}

// NewBucket wraps an open gocloud bucket. The Bucket takes ownership and
// closes it on Close.
func NewBucket(bucket *blob.Bucket, opts ...Option) *Bucket {
	b := &Bucket{bucket: bucket}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewGocloudBlob opens a bucket from a gocloud URL.
//
//	azblob://container?storage_account=myaccount
//	s3://bucket-name?region=us-east-1
//	file:///path/to/directory?create_dir=true
//	mem://
func NewGocloudBlob(ctx context.Context, blobURL, prefix string) (*Bucket, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse blob URL: %w", err)
	}

	bucket, err := blob.OpenBucket(ctx, blobURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob bucket: %w", err)
	}

	name := u.Host
	if name == "" {
		name = path.Base(strings.TrimSuffix(u.Path, "/"))
	}
	if name == "" || name == "." || name == "/" {
		name = u.Scheme
	}

	log.Debug().Str("scheme", u.Scheme).Str("container", name).Msg("opened blob bucket")

	return NewBucket(bucket, WithName(name), WithPrefix(prefix)), nil
}

func (b *Bucket) Name() string {
	return b.name
}

// Close closes the underlying bucket connection
func (b *Bucket) Close() error {
	return b.bucket.Close()
}

func (b *Bucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, span := trace.Start(ctx, "Bucket.List")
	defer span.End()

	fullPrefix := b.getFullKey(prefix)

	span.SetAttributes(
		attribute.String("container", b.name),
		attribute.String("prefix", fullPrefix),
	)

	var objects []ObjectInfo

	iter := b.bucket.List(&blob.ListOptions{Prefix: fullPrefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, trace.NewError(span, "failed to list blobs: %w", err)
		}

		if obj.IsDir {
			continue
		}

		objects = append(objects, ObjectInfo{
			Key:     strings.TrimPrefix(obj.Key, b.prefix),
			Size:    obj.Size,
			ModTime: obj.ModTime,
		})
	}

	span.SetAttributes(attribute.Int("object_count", len(objects)))

	return objects, nil
}

func (b *Bucket) NewReader(ctx context.Context, key string) (Reader, error) {
	ctx, span := trace.Start(ctx, "Bucket.NewReader")
	defer span.End()

	if err := ValidateKey(key); err != nil {
		return nil, trace.RecordError(span, err)
	}

	fullKey := b.getFullKey(key)
	span.SetAttributes(attribute.String("blob_key", fullKey))

	reader, err := b.bucket.NewReader(ctx, fullKey, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, trace.NewError(span, "%w: %s: %w", ErrNotFound, key, err)
		}
		return nil, trace.NewError(span, "failed to create blob reader: %w", err)
	}

	span.SetAttributes(attribute.Int64("size", reader.Size()))

	return reader, nil
}

// Upload streams r into key. A failed copy aborts the write so no partial
// blob is committed.
func (b *Bucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) (*TransferInfo, error) {
	ctx, span := trace.Start(ctx, "Bucket.Upload")
	defer span.End()

	if err := ValidateKey(key); err != nil {
		return nil, trace.RecordError(span, err)
	}

	start := time.Now()

	fullKey := b.getFullKey(key)

	// cancelling the writer context before Close discards the upload
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer, err := b.bucket.NewWriter(writeCtx, fullKey, &blob.WriterOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, trace.NewError(span, "failed to create blob writer: %w", err)
	}

	bytesWritten, err := io.Copy(writer, r)
	if err != nil {
		cancel()
		_ = writer.Close()
		return nil, trace.NewError(span, "failed to copy content to blob: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, trace.NewError(span, "failed to close blob writer: %w", err)
	}

	duration := time.Since(start)
	averageSpeed := calculateTransferSpeedMBps(bytesWritten, duration)

	span.SetAttributes(
		attribute.Int64("bytes_transferred", bytesWritten),
		attribute.String("transfer_speed", fmt.Sprintf("%.2fMB/s", averageSpeed)),
		attribute.String("blob_key", fullKey),
		attribute.String("content_type", contentType),
	)

	return &TransferInfo{
		BytesTransferred: bytesWritten,
		TransferSpeed:    averageSpeed,
		Duration:         duration,
	}, nil
}

func (b *Bucket) Delete(ctx context.Context, key string) (bool, error) {
	ctx, span := trace.Start(ctx, "Bucket.Delete")
	defer span.End()

	if err := ValidateKey(key); err != nil {
		return false, trace.RecordError(span, err)
	}

	fullKey := b.getFullKey(key)
	span.SetAttributes(attribute.String("blob_key", fullKey))

	err := b.bucket.Delete(ctx, fullKey)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			span.SetAttributes(attribute.Bool("existed", false))
			return false, nil
		}
		return false, trace.NewError(span, "failed to delete blob: %w", err)
	}

	span.SetAttributes(attribute.Bool("existed", true))

	return true, nil
}

// SignedURL returns a read-only URL for key valid for expiry.
func (b *Bucket) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	ctx, span := trace.Start(ctx, "Bucket.SignedURL")
	defer span.End()

	if err := ValidateKey(key); err != nil {
		return "", trace.RecordError(span, err)
	}

	fullKey := b.getFullKey(key)
	span.SetAttributes(
		attribute.String("blob_key", fullKey),
		attribute.String("expiry", expiry.String()),
	)

	if b.signer != nil {
		signed, err := b.signer.SignedURL(ctx, fullKey, expiry)
		if err != nil {
			return "", trace.NewError(span, "failed to sign blob URL: %w", err)
		}
		return signed, nil
	}

	signed, err := b.bucket.SignedURL(ctx, fullKey, &blob.SignedURLOptions{
		Expiry: expiry,
		Method: http.MethodGet,
	})
	if err != nil {
		return "", trace.NewError(span, "failed to sign blob URL: %w", err)
	}

	return signed, nil
}

// CreateIfNotExists delegates to the provisioner. Without one the bucket is
// assumed to exist once it has been opened.
func (b *Bucket) CreateIfNotExists(ctx context.Context) (bool, error) {
	if b.provisioner == nil {
		return false, nil
	}

	ctx, span := trace.Start(ctx, "Bucket.CreateIfNotExists")
	defer span.End()

	span.SetAttributes(attribute.String("container", b.name))

	created, err := b.provisioner.CreateIfNotExists(ctx)
	if err != nil {
		return false, trace.NewError(span, "failed to create container %s: %w", b.name, err)
	}

	span.SetAttributes(attribute.Bool("created", created))

	return created, nil
}

func (b *Bucket) RestrictPublicAccess(ctx context.Context) (bool, error) {
	if b.provisioner == nil {
		return false, nil
	}

	ctx, span := trace.Start(ctx, "Bucket.RestrictPublicAccess")
	defer span.End()

	span.SetAttributes(attribute.String("container", b.name))

	changed, err := b.provisioner.RestrictPublicAccess(ctx)
	if err != nil {
		return false, trace.NewError(span, "failed to set access policy on %s: %w", b.name, err)
	}

	span.SetAttributes(attribute.Bool("changed", changed))

	return changed, nil
}

// normalizePrefix ensures the prefix has the correct format
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return prefix
}

// getFullKey combines the prefix with the key
func (b *Bucket) getFullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + strings.TrimPrefix(key, "/")
}
