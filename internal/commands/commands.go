package commands

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/buildkite/blobgate"
	"github.com/buildkite/blobgate/configuration"
	"github.com/buildkite/blobgate/internal/console"
	"github.com/buildkite/blobgate/store"
	"github.com/rs/zerolog/log"
)

// Gateway is the subset of *blobgate.Gateway the commands use.
type Gateway interface {
	ContainerName() string
	Videos(ctx context.Context) ([]store.ObjectInfo, error)
	IssueReadURL(ctx context.Context, name string) (string, error)
	OpenReadStream(ctx context.Context, name string) (store.Reader, error)
	Upload(ctx context.Context, name string, r io.Reader, contentType string) (blobgate.UploadResult, error)
	Delete(ctx context.Context, name string) (blobgate.DeleteResult, error)
	Provision(ctx context.Context) (blobgate.ProvisionResult, error)
}

var _ Gateway = (*blobgate.Gateway)(nil)

type CommonFlags struct {
	Settings         string        `flag:"settings" help:"The appsettings file holding AzureStorageSettings." default:"appsettings.json" env:"BLOBGATE_SETTINGS"`
	ConnectionString string        `flag:"connection-string" help:"The storage account connection string, overrides the settings file." env:"AzureStorageSettings__BLOB_CONNECTION_STRING"`
	ContainerName    string        `flag:"container-name" help:"The blob container name, overrides the settings file." env:"AzureStorageSettings__BLOB_CONTAINER_NAME"`
	BucketURL        string        `flag:"bucket-url" help:"A gocloud bucket URL used instead of Azure, e.g. file:///tmp/videos." env:"BLOBGATE_BUCKET_URL"`
	Dir              string        `flag:"dir" help:"Serve videos from a local directory instead of Azure, created if missing." env:"BLOBGATE_DIR"`
	SigningKey       string        `flag:"signing-key" help:"File holding the HMAC key used to sign read URLs for --dir." env:"BLOBGATE_SIGNING_KEY"`
	BaseURL          string        `flag:"base-url" help:"URL the signed read URLs for --dir are built on." env:"BLOBGATE_BASE_URL"`
	ErrorStrategy    string        `flag:"error-strategy" help:"How upload and delete failures are reported." enum:"suppress,propagate" default:"suppress" env:"BLOBGATE_ERROR_STRATEGY"`
	URLExpiry        time.Duration `flag:"url-expiry" help:"Lifetime of issued read URLs." default:"15m" env:"BLOBGATE_URL_EXPIRY"`
}

type Globals struct {
	Debug   bool
	Version string
	Gateway Gateway
	Printer *console.Printer
	Stdout  io.Writer
}

// GatewayConfig resolves the gateway configuration. Flags and their
// environment variables win over the settings file.
func (c CommonFlags) GatewayConfig(version string) (blobgate.Config, error) {
	settings, err := configuration.Load(c.Settings)
	if err != nil {
		return blobgate.Config{}, fmt.Errorf("failed to load settings: %w", err)
	}

	return c.gatewayConfig(version, settings.AzureStorage())
}

func (c CommonFlags) gatewayConfig(version string, azure configuration.AzureStorageSettings) (blobgate.Config, error) {
	if c.ConnectionString != "" {
		azure.ConnectionString = c.ConnectionString
	}
	if c.ContainerName != "" {
		azure.ContainerName = c.ContainerName
	}

	strategy, err := blobgate.ParseErrorStrategy(c.ErrorStrategy)
	if err != nil {
		return blobgate.Config{}, err
	}

	cfg := blobgate.Config{
		ErrorStrategy: strategy,
		URLExpiry:     c.URLExpiry,
		Version:       version,
	}

	switch {
	case c.BucketURL != "":
		log.Debug().Str("bucket_url", c.BucketURL).Msg("using bucket URL")
		cfg.BucketURL = c.BucketURL
	case c.Dir != "":
		if (c.SigningKey == "") != (c.BaseURL == "") {
			return blobgate.Config{}, fmt.Errorf("%w: --signing-key and --base-url must be set together", blobgate.ErrInvalidConfiguration)
		}

		bucketURL, err := store.FileBucketURL(c.Dir, store.FileOptions{
			CreateDir:     true,
			BaseURL:       c.BaseURL,
			SecretKeyPath: c.SigningKey,
		})
		if err != nil {
			return blobgate.Config{}, fmt.Errorf("%w: %w", blobgate.ErrInvalidConfiguration, err)
		}

		log.Debug().Str("dir", c.Dir).Str("bucket_url", bucketURL).Msg("using local directory")
		cfg.BucketURL = bucketURL
	default:
		if err := azure.Validate(); err != nil {
			return blobgate.Config{}, fmt.Errorf("%w: set it in %s or pass --connection-string and --container-name", err, c.Settings)
		}
		cfg.ConnectionString = azure.ConnectionString
		cfg.ContainerName = azure.ContainerName
	}

	return cfg, nil
}

// Int64ToUint64 converts an int64 to uint64, handling negative values and max int64
func Int64ToUint64(x int64) uint64 {
	if x < 0 {
		return 0
	}
	if x == math.MaxInt64 {
		return math.MaxUint64
	}
	return uint64(x)
}
