package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithymiddleware "github.com/aws/smithy-go/middleware"
	"github.com/rs/zerolog/log"
	"gocloud.dev/blob/s3blob"
)

// S3Options holds configuration for an S3 container and can be constructed
// from an S3 URL in a similar way to gocloud.dev.
// Example S3 URLs:
//
//	s3://my-bucket
//	s3://my-bucket/prefix
//	s3://my-bucket?region=us-east-1
//	s3://my-bucket/prefix?region=us-east-1&endpoint=http://localhost:9000&use_path_style=true
type S3Options struct {
	S3Endpoint   string
	Bucket       string
	Region       string
	Prefix       string
	UsePathStyle bool
}

func S3OptionsFromURL(s3url string) (*S3Options, error) {
	u, err := url.Parse(s3url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse S3 URL: %w", err)
	}

	if u.Scheme != "s3" {
		return nil, fmt.Errorf("invalid S3 URL scheme %q: must be s3", u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid S3 URL %q: missing bucket", s3url)
	}

	opts := &S3Options{
		Bucket:     u.Hostname(),
		Prefix:     strings.Trim(u.Path, "/"),
		Region:     u.Query().Get("region"),
		S3Endpoint: u.Query().Get("endpoint"),
	}

	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	if u.Query().Get("use_path_style") == "true" {
		opts.UsePathStyle = true
	}

	return opts, nil
}

// s3Container provisions the S3 bucket behind a Bucket. Reads, writes and
// presigned URLs go through gocloud.dev.
type s3Container struct {
	client *s3.Client
	opts   *S3Options
}

// NewS3Blob creates a Bucket backed by S3 or an S3 compatible service using
// the default AWS credential chain. The SDK keeps its own HTTP client so
// AWS_CA_BUNDLE and proxy settings apply; version is added to the user agent.
func NewS3Blob(ctx context.Context, s3url, version string) (*Bucket, error) {
	opts, err := S3OptionsFromURL(s3url)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithAPIOptions([]func(*smithymiddleware.Stack) error{
			awsmiddleware.AddUserAgentKeyValue("blobgate", version),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Debug().
		Str("bucket", opts.Bucket).
		Str("region", opts.Region).
		Str("prefix", opts.Prefix).
		Str("endpoint", opts.S3Endpoint).
		Msg("configured S3 bucket")

	client := s3.NewFromConfig(cfg,
		func(o *s3.Options) {
			o.Region = opts.Region
			if opts.UsePathStyle {
				o.UsePathStyle = true
			}

			// used for local testing or custom S3 endpoints
			if opts.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(opts.S3Endpoint)
			}
		})

	bucket, err := s3blob.OpenBucket(ctx, client, opts.Bucket, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open S3 bucket: %w", err)
	}

	s3c := &s3Container{client: client, opts: opts}

	return NewBucket(bucket,
		WithName(opts.Bucket),
		WithPrefix(opts.Prefix),
		WithProvisioner(s3c),
	), nil
}

// CreateIfNotExists creates the bucket in the configured region.
func (c *s3Container) CreateIfNotExists(ctx context.Context) (bool, error) {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(c.opts.Bucket),
	}

	// us-east-1 rejects an explicit location constraint
	if c.opts.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.opts.Region),
		}
	}

	_, err := c.client.CreateBucket(ctx, input)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create bucket: %w", err)
	}

	return true, nil
}

// RestrictPublicAccess turns on every public access block setting.
func (c *s3Container) RestrictPublicAccess(ctx context.Context) (bool, error) {
	current, err := c.client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{
		Bucket: aws.String(c.opts.Bucket),
	})
	if err != nil && !isAPIError(err, "NoSuchPublicAccessBlockConfiguration") {
		return false, fmt.Errorf("failed to get public access block: %w", err)
	}

	if err == nil && fullyBlocked(current.PublicAccessBlockConfiguration) {
		return false, nil
	}

	_, err = c.client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(c.opts.Bucket),
		PublicAccessBlockConfiguration: &types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to put public access block: %w", err)
	}

	return true, nil
}

func fullyBlocked(cfg *types.PublicAccessBlockConfiguration) bool {
	if cfg == nil {
		return false
	}

	return aws.ToBool(cfg.BlockPublicAcls) &&
		aws.ToBool(cfg.BlockPublicPolicy) &&
		aws.ToBool(cfg.IgnorePublicAcls) &&
		aws.ToBool(cfg.RestrictPublicBuckets)
}

func isAPIError(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
