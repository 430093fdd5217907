// Package store provides the blob container abstraction used by the gateway.
//
// Bucket implements Container on top of gocloud.dev/blob, so any registered
// driver can back it. NewAzureBlob adds the Azure specific pieces the portable
// API does not cover: SAS signing from a connection string and container
// provisioning.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// MaxKeyLength is the longest blob name Azure Blob Storage accepts.
const MaxKeyLength = 1024

var (
	// ErrNotFound is returned when a blob does not exist in the container.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for blob names rejected before any remote call.
	ErrInvalidKey = errors.New("invalid blob key")
)

// ObjectInfo describes a blob returned by List.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

type TransferInfo struct {
	BytesTransferred int64
	TransferSpeed    float64 // in MB/s
	Duration         time.Duration
}

// Reader is an open blob stream. *blob.Reader satisfies it.
type Reader interface {
	io.ReadCloser
	Size() int64
	ContentType() string
}

// Signer issues time limited read URLs for a blob.
type Signer interface {
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Provisioner manages the lifecycle of the container itself.
type Provisioner interface {
	// CreateIfNotExists creates the container, reporting whether it was created.
	CreateIfNotExists(ctx context.Context) (bool, error)

	// RestrictPublicAccess removes anonymous access from the container,
	// reporting whether the policy changed.
	RestrictPublicAccess(ctx context.Context) (bool, error)
}

// Container is a single named blob container.
type Container interface {
	Signer
	Provisioner

	// Name returns the container name used for logging and tracing.
	Name() string

	// List returns every blob whose key starts with prefix, in the order the
	// backend enumerates them.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// NewReader opens key for sequential reading. Returns ErrNotFound if the
	// blob does not exist. The caller closes the reader.
	NewReader(ctx context.Context, key string) (Reader, error)

	// Upload writes the full contents of r to key, replacing any existing blob.
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (*TransferInfo, error)

	// Delete removes key if present, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	Close() error
}

// ValidateKey checks a blob name before it is sent to the backend.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}

	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key too long (max %d characters)", ErrInvalidKey, MaxKeyLength)
	}

	return nil
}

// calculateTransferSpeedMBps calculates transfer speed in MB/s (decimal megabytes)
// using the formula: bytes / duration_in_seconds / 1,000,000
func calculateTransferSpeedMBps(bytes int64, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(bytes) / duration.Seconds() / 1000 / 1000
}
