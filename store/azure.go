package store

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/rs/zerolog/log"
	"gocloud.dev/blob/azureblob"
)

// AzureOptions configures an Azure Blob Storage container.
type AzureOptions struct {
	// ConnectionString is the storage account connection string. It must
	// carry an AccountKey for SAS signing.
	ConnectionString string

	// ContainerName is the container holding the blobs.
	ContainerName string

	// Prefix optionally scopes every key inside the container.
	Prefix string

	// HTTPClient is used for every request to the storage service, the SDK
	// default is used when nil.
	HTTPClient *http.Client
}

// azureContainer provides the container operations which gocloud.dev does
// not expose: SAS generation and container provisioning.
type azureContainer struct {
	client *container.Client
}

// NewAzureBlob creates a Bucket backed by an Azure Blob Storage container
// resolved from a connection string.
func NewAzureBlob(ctx context.Context, opts AzureOptions) (*Bucket, error) {
	if opts.ConnectionString == "" {
		return nil, fmt.Errorf("azure connection string cannot be empty")
	}

	if opts.ContainerName == "" {
		return nil, fmt.Errorf("azure container name cannot be empty")
	}

	clientOpts := &container.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Telemetry: policy.TelemetryOptions{ApplicationID: "blobgate"},
		},
	}
	if opts.HTTPClient != nil {
		clientOpts.Transport = opts.HTTPClient
	}

	client, err := container.NewClientFromConnectionString(opts.ConnectionString, opts.ContainerName, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure container client: %w", err)
	}

	bucket, err := azureblob.OpenBucket(ctx, client, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open azure bucket: %w", err)
	}

	log.Debug().Str("container", opts.ContainerName).Str("url", client.URL()).Msg("configured azure blob store")

	az := &azureContainer{client: client}

	return NewBucket(bucket,
		WithName(opts.ContainerName),
		WithPrefix(opts.Prefix),
		WithSigner(az),
		WithProvisioner(az),
	), nil
}

// SignedURL builds a blob scoped, read only SAS URL signed with the account
// key from the connection string. The grant has no start time so it is valid
// on storage nodes whose clocks lag this host.
func (a *azureContainer) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	blobClient := a.client.NewBlobClient(key)

	signed, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().UTC().Add(expiry), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate SAS URL: %w", err)
	}

	return signed, nil
}

// CreateIfNotExists creates the container with no public access.
func (a *azureContainer) CreateIfNotExists(ctx context.Context) (bool, error) {
	_, err := a.client.Create(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// RestrictPublicAccess turns off anonymous access, keeping any stored
// access policies in place.
func (a *azureContainer) RestrictPublicAccess(ctx context.Context) (bool, error) {
	current, err := a.client.GetAccessPolicy(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get access policy: %w", err)
	}

	if current.BlobPublicAccess == nil {
		return false, nil
	}

	_, err = a.client.SetAccessPolicy(ctx, &container.SetAccessPolicyOptions{
		ContainerACL: current.SignedIdentifiers,
	})
	if err != nil {
		return false, fmt.Errorf("failed to set access policy: %w", err)
	}

	return true, nil
}
