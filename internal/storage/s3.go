package storage

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/swiftgate/swiftgate/internal/config"
)

// S3Backend implements Backend against an upstream S3-compatible store.
// Containers map to buckets of the same name; the account is not part of the address.
type S3Backend struct {
	client *s3.Client
}

// NewS3Backend creates a backend using the AWS SDK
func NewS3Backend(cfg config.UpstreamConfig) (*S3Backend, error) {
	if cfg.Endpoint == "" {
		return nil, NewError("InvalidEndpoint", "S3 endpoint is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg := aws.Config{
		Region: region,
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		awsCfg.Credentials = aws.AnonymousCredentials{}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
	})

	return &S3Backend{client: client}, nil
}

// Name identifies the driver
func (b *S3Backend) Name() string {
	return "s3"
}

// HeadContainer checks that the upstream bucket exists. Upstream ACLs are not mirrored.
func (b *S3Backend) HeadContainer(ctx context.Context, account, container string) (*ContainerInfo, error) {
	if container == "" {
		return nil, ErrInvalidPath
	}

	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(container),
	})
	if err != nil {
		return nil, mapS3Error(err, ErrContainerNotFound)
	}

	return &ContainerInfo{
		Account: account,
		Name:    container,
	}, nil
}

// HeadObject probes an upstream object. S3 has no manifest objects, so the result is never segmented.
func (b *S3Backend) HeadObject(ctx context.Context, account, container, key string) (*ObjectInfo, error) {
	if container == "" || key == "" {
		return nil, ErrInvalidPath
	}

	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error(err, ErrObjectNotFound)
	}

	return &ObjectInfo{
		Key:  key,
		Size: aws.ToInt64(out.ContentLength),
		ETag: aws.ToString(out.ETag),
	}, nil
}

// DeleteObject deletes an upstream object, forwarding the version id when present
func (b *S3Backend) DeleteObject(ctx context.Context, account, container, key string, opts DeleteOptions) error {
	if container == "" || key == "" {
		return ErrInvalidPath
	}

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	}
	if opts.VersionID != "" {
		input.VersionId = aws.String(opts.VersionID)
	}

	if _, err := b.client.DeleteObject(ctx, input); err != nil {
		return mapS3Error(err, ErrObjectNotFound)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing
func (b *S3Backend) Close() error {
	return nil
}

// mapS3Error converts SDK errors into storage errors by HTTP status
func mapS3Error(err error, notFound *StorageError) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return errorForStatus(respErr.HTTPStatusCode(), notFound, err)
	}

	logrus.WithError(err).Debug("Upstream S3 request failed without a response")
	return wrap(ErrBackendUnavailable, 0, err)
}
