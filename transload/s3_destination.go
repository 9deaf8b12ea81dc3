package transload

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/bitrise-io/go-utils/v2/log"
)

const defaultRegion = "us-east-1"

// S3Params ...
type S3Params struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
	Credentials  *Credentials
	// PartSize is the multipart chunk size in bytes, manager.DefaultUploadPartSize when 0.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel, manager.DefaultUploadConcurrency when 0.
	Concurrency int
}

// S3Destination uploads through the S3 transfer manager.
type S3Destination struct {
	client   *s3.Client
	uploader *manager.Uploader
	logger   log.Logger
}

// NewS3Destination builds a client scoped to params. It never reads or writes process wide
// credential state besides the SDK's default lookup chain when no credentials are given.
func NewS3Destination(ctx context.Context, params S3Params, logger log.Logger) (*S3Destination, error) {
	if params.PartSize != 0 && params.PartSize < manager.MinUploadPartSize {
		return nil, fmt.Errorf("part size must be at least %d bytes, got %d", manager.MinUploadPartSize, params.PartSize)
	}

	cfg, err := loadAWSConfig(ctx, params.Region, params.Credentials, logger)
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}

	client := s3.NewFromConfig(*cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
		}
		o.UsePathStyle = params.UsePathStyle
	})

	return NewS3DestinationFromClient(client, params.PartSize, params.Concurrency, logger), nil
}

// NewS3DestinationFromClient wraps an already configured client.
func NewS3DestinationFromClient(client *s3.Client, partSize int64, concurrency int, logger log.Logger) *S3Destination {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if partSize > 0 {
			u.PartSize = partSize
		}
		if concurrency > 0 {
			u.Concurrency = concurrency
		}
	})

	return &S3Destination{
		client:   client,
		uploader: uploader,
		logger:   logger,
	}
}

// Upload ...
func (d *S3Destination) Upload(ctx context.Context, spec ObjectSpec, body io.Reader) (UploadOutput, error) {
	input := putObjectInput(spec, body)
	headers, ignored := spec.PassThroughHeaders()
	for _, key := range ignored {
		d.logger.Warnf("Upload option %s is not supported by S3, ignoring it", key)
	}

	d.logger.Debugf("Uploading to s3://%s/%s", spec.Bucket, spec.Key)
	out, err := d.uploader.Upload(ctx, input, withHeaders(headers))
	if err != nil {
		var apiError smithy.APIError
		if errors.As(err, &apiError) {
			d.logger.Debugf("S3 rejected the upload: %s (%s)", apiError.ErrorCode(), apiError.ErrorMessage())
		}
		return UploadOutput{}, fmt.Errorf("upload object: %w", err)
	}

	return UploadOutput{
		Location:  out.Location,
		ETag:      aws.ToString(out.ETag),
		VersionID: aws.ToString(out.VersionID),
	}, nil
}

func withHeaders(headers map[string]string) func(*manager.Uploader) {
	return func(u *manager.Uploader) {
		if len(headers) == 0 {
			return
		}
		apiOptions := make([]func(*middleware.Stack) error, 0, len(headers))
		for name, value := range headers {
			apiOptions = append(apiOptions, smithyhttp.AddHeaderValue(name, value))
		}
		clientOptions := make([]func(*s3.Options), 0, len(u.ClientOptions)+1)
		clientOptions = append(clientOptions, u.ClientOptions...)
		u.ClientOptions = append(clientOptions, s3.WithAPIOptions(apiOptions...))
	}
}

func putObjectInput(spec ObjectSpec, body io.Reader) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Body:     body,
		Bucket:   aws.String(spec.Bucket),
		Key:      aws.String(spec.Key),
		Metadata: spec.Metadata,
		Expires:  spec.Expires,
	}
	if spec.ContentLength >= 0 {
		input.ContentLength = aws.Int64(spec.ContentLength)
	}
	if spec.ACL != "" {
		input.ACL = types.ObjectCannedACL(spec.ACL)
	}
	if spec.ServerSideEncryption != "" {
		input.ServerSideEncryption = types.ServerSideEncryption(spec.ServerSideEncryption)
	}
	if spec.StorageClass != "" {
		input.StorageClass = types.StorageClass(spec.StorageClass)
	}
	input.ContentType = optionalString(spec.ContentType)
	input.CacheControl = optionalString(spec.CacheControl)
	input.ContentDisposition = optionalString(spec.ContentDisposition)
	input.ContentEncoding = optionalString(spec.ContentEncoding)
	input.ContentLanguage = optionalString(spec.ContentLanguage)
	input.SSEKMSKeyId = optionalString(spec.SSEKMSKeyID)
	input.Tagging = optionalString(spec.Tagging)
	input.WebsiteRedirectLocation = optionalString(spec.WebsiteRedirectLocation)

	return input
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func loadAWSConfig(
	ctx context.Context,
	region string,
	creds *Credentials,
	logger log.Logger,
) (*aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	if creds != nil && creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		logger.Debugf("aws credentials provided, using them...")
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load default config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	return &cfg, nil
}
