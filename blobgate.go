// Package blobgate provides a gateway for video files held in a single blob
// storage container.
//
// The main entry point is New, which creates a Gateway bound to one container.
// The Gateway is safe for concurrent use by multiple goroutines: it holds only
// immutable configuration and the storage client.
//
// Basic usage:
//
//	gw, err := blobgate.New(ctx, blobgate.Config{
//	    ConnectionString: os.Getenv("AzureStorageSettings__BLOB_CONNECTION_STRING"),
//	    ContainerName:    "videos",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gw.Close()
//
//	// List the videos in the container
//	names, err := gw.ListVideos(ctx)
//
//	// Hand a browser a 15 minute read URL
//	link, err := gw.IssueReadURL(ctx, "intro.mp4")
package blobgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buildkite/blobgate/store"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultURLExpiry is the lifetime of URLs returned by IssueReadURL.
	DefaultURLExpiry = 15 * time.Minute

	// DefaultVideoSuffix is the name suffix ListVideos filters on.
	DefaultVideoSuffix = ".mp4"
)

// Sentinel errors for common scenarios
var (
	// ErrInvalidConfiguration is returned when configuration validation fails
	// during gateway creation.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrBlobNotFound is returned by OpenReadStream when the blob does not exist.
	ErrBlobNotFound = store.ErrNotFound
)

// AccessError is returned by IssueReadURL when a signed URL cannot be issued.
type AccessError struct {
	Name string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("failed to issue read URL for %s: %v", e.Name, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// ErrorStrategy controls how Upload and Delete report failures.
type ErrorStrategy string

const (
	// ErrorStrategySuppress reports failures only through the result, the
	// returned error is always nil. Failures are logged at warn level.
	ErrorStrategySuppress ErrorStrategy = "suppress"

	// ErrorStrategyPropagate reports failures through the result and also
	// returns the error.
	ErrorStrategyPropagate ErrorStrategy = "propagate"
)

// ParseErrorStrategy converts a flag or config value to an ErrorStrategy.
// An empty string selects ErrorStrategySuppress.
func ParseErrorStrategy(s string) (ErrorStrategy, error) {
	switch ErrorStrategy(s) {
	case "", ErrorStrategySuppress:
		return ErrorStrategySuppress, nil
	case ErrorStrategyPropagate:
		return ErrorStrategyPropagate, nil
	default:
		return "", fmt.Errorf("%w: unknown error strategy %q", ErrInvalidConfiguration, s)
	}
}

// Config holds all configuration for creating a Gateway.
//
// Exactly one backend is used, checked in order: Container, ConnectionString,
// BucketURL.
type Config struct {
	// ConnectionString is the Azure storage account connection string
	// (AzureStorageSettings:BLOB_CONNECTION_STRING). It must include the
	// account key for IssueReadURL to work.
	ConnectionString string

	// ContainerName is the Azure container (AzureStorageSettings:BLOB_CONTAINER_NAME).
	// Required with ConnectionString.
	ContainerName string

	// BucketURL opens any gocloud.dev bucket, for example "file:///tmp/videos".
	// s3:// URLs accept region, endpoint and use_path_style query parameters
	// and support Provision. Used when ConnectionString is empty.
	BucketURL string

	// Container is a pre-built container, it takes precedence over the fields above.
	Container store.Container

	// ErrorStrategy controls Upload and Delete failure reporting.
	// Defaults to ErrorStrategySuppress.
	ErrorStrategy ErrorStrategy

	// URLExpiry is the lifetime of issued read URLs. Defaults to DefaultURLExpiry.
	URLExpiry time.Duration

	// VideoSuffix is the case sensitive suffix ListVideos keeps.
	// Defaults to DefaultVideoSuffix.
	VideoSuffix string

	// Version is appended to the user agent of storage requests.
	Version string
}

// Gateway mediates every container operation needed to stream and manage videos.
type Gateway struct {
	container   store.Container
	strategy    ErrorStrategy
	urlExpiry   time.Duration
	videoSuffix string
}

// New validates cfg, opens the configured container and returns a ready to
// use Gateway. No remote call is made; the container is assumed to exist
// until Upload or Provision creates it.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	strategy, err := ParseErrorStrategy(string(cfg.ErrorStrategy))
	if err != nil {
		return nil, err
	}

	if cfg.URLExpiry < 0 {
		return nil, fmt.Errorf("%w: url expiry must not be negative", ErrInvalidConfiguration)
	}

	if cfg.URLExpiry == 0 {
		cfg.URLExpiry = DefaultURLExpiry
	}

	if cfg.VideoSuffix == "" {
		cfg.VideoSuffix = DefaultVideoSuffix
	}

	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	container := cfg.Container

	switch {
	case container != nil:
		// provided by the caller
	case cfg.ConnectionString != "":
		if cfg.ContainerName == "" {
			return nil, fmt.Errorf("%w: container name is required with a connection string", ErrInvalidConfiguration)
		}

		container, err = store.NewAzureBlob(ctx, store.AzureOptions{
			ConnectionString: cfg.ConnectionString,
			ContainerName:    cfg.ContainerName,
			HTTPClient:       store.NewHTTPClient(cfg.Version),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
	case strings.HasPrefix(cfg.BucketURL, "s3://"):
		container, err = store.NewS3Blob(ctx, cfg.BucketURL, cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
	case cfg.BucketURL != "":
		container, err = store.NewGocloudBlob(ctx, cfg.BucketURL, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
	default:
		return nil, fmt.Errorf("%w: a connection string or bucket URL is required", ErrInvalidConfiguration)
	}

	log.Debug().
		Str("container", container.Name()).
		Str("error_strategy", string(strategy)).
		Dur("url_expiry", cfg.URLExpiry).
		Msg("created blob gateway")

	return &Gateway{
		container:   container,
		strategy:    strategy,
		urlExpiry:   cfg.URLExpiry,
		videoSuffix: cfg.VideoSuffix,
	}, nil
}

// ContainerName returns the name of the container the gateway is bound to.
func (g *Gateway) ContainerName() string {
	return g.container.Name()
}

// ErrorStrategy returns the configured Upload and Delete failure reporting.
func (g *Gateway) ErrorStrategy() ErrorStrategy {
	return g.strategy
}

// Close releases the underlying storage client.
func (g *Gateway) Close() error {
	return g.container.Close()
}
