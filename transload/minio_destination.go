package transload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/minio/minio-go/v7"
	miniocredentials "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"
)

const (
	minMinioPartSize     = 5 * 1024 * 1024
	defaultMinioPartSize = 16 * 1024 * 1024
)

// MinioParams configures an S3 compatible store reached through minio-go.
type MinioParams struct {
	// Endpoint is host[:port] or a full http(s) URL; a URL scheme overrides Secure.
	Endpoint    string
	Region      string
	Secure      bool
	Credentials *Credentials
	// PartSize bounds the memory used per part when the length is unknown, 16 MiB when 0.
	PartSize int64
}

// MinioDestination uploads to MinIO and other S3 compatible services.
type MinioDestination struct {
	client   *minio.Client
	partSize int64
	logger   log.Logger
}

// NewMinioDestination ...
func NewMinioDestination(params MinioParams, logger log.Logger) (*MinioDestination, error) {
	if params.Endpoint == "" {
		return nil, fmt.Errorf("endpoint must not be empty")
	}
	if params.PartSize != 0 && params.PartSize < minMinioPartSize {
		return nil, fmt.Errorf("part size must be at least %d bytes, got %d", minMinioPartSize, params.PartSize)
	}

	host, secure, err := splitEndpoint(params.Endpoint, params.Secure)
	if err != nil {
		return nil, err
	}

	region := params.Region
	if region == "" {
		region = defaultRegion
	}

	opts := &minio.Options{
		Secure:       secure,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
		Creds:        minioCredentials(params.Credentials, logger),
	}

	client, err := minio.New(host, opts)
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	partSize := params.PartSize
	if partSize == 0 {
		partSize = defaultMinioPartSize
	}

	return &MinioDestination{
		client:   client,
		partSize: partSize,
		logger:   logger,
	}, nil
}

// Upload ...
func (d *MinioDestination) Upload(ctx context.Context, spec ObjectSpec, body io.Reader) (UploadOutput, error) {
	opts, err := putObjectOptions(spec, d.partSize)
	if err != nil {
		return UploadOutput{}, err
	}
	_, ignored := spec.PassThroughHeaders()
	for _, key := range ignored {
		d.logger.Warnf("Upload option %s is not supported by minio, ignoring it", key)
	}

	d.logger.Debugf("Uploading to %s/%s/%s", d.client.EndpointURL(), spec.Bucket, spec.Key)
	info, err := d.client.PutObject(ctx, spec.Bucket, spec.Key, body, spec.ContentLength, opts)
	if err != nil {
		var errResp minio.ErrorResponse
		if errors.As(err, &errResp) {
			d.logger.Debugf("minio rejected the upload: %s (%s)", errResp.Code, errResp.Message)
		}
		return UploadOutput{}, fmt.Errorf("put object: %w", err)
	}

	location := info.Location
	if location == "" {
		location = d.objectURL(spec.Bucket, spec.Key)
	}

	return UploadOutput{
		Location:  location,
		ETag:      info.ETag,
		VersionID: info.VersionID,
	}, nil
}

// minioCredentials treats credentials without a key pair like omitted ones, the same way the
// S3 destination does.
func minioCredentials(creds *Credentials, logger log.Logger) *miniocredentials.Credentials {
	if creds != nil && creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		logger.Debugf("minio credentials provided, using them...")
		return miniocredentials.NewStaticV4(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	}
	return miniocredentials.NewEnvAWS()
}

func (d *MinioDestination) objectURL(bucket, key string) string {
	endpoint := d.client.EndpointURL()
	if endpoint == nil {
		return ""
	}
	u := *endpoint
	u.Path = "/" + bucket + "/" + key
	return u.String()
}

func putObjectOptions(spec ObjectSpec, partSize int64) (minio.PutObjectOptions, error) {
	opts := minio.PutObjectOptions{
		ContentType:             spec.ContentType,
		ContentEncoding:         spec.ContentEncoding,
		ContentDisposition:      spec.ContentDisposition,
		ContentLanguage:         spec.ContentLanguage,
		CacheControl:            spec.CacheControl,
		StorageClass:            spec.StorageClass,
		WebsiteRedirectLocation: spec.WebsiteRedirectLocation,
		PartSize:                uint64(partSize),
	}
	if spec.Expires != nil {
		opts.Expires = *spec.Expires
	}

	headers, _ := spec.PassThroughHeaders()
	if len(spec.Metadata) > 0 || spec.ACL != "" || len(headers) > 0 {
		opts.UserMetadata = make(map[string]string, len(spec.Metadata)+len(headers)+1)
		for k, v := range spec.Metadata {
			opts.UserMetadata[k] = v
		}
		// x-amz-* names are sent as headers as they are, not as x-amz-meta-*.
		for k, v := range headers {
			opts.UserMetadata[k] = v
		}
		if spec.ACL != "" {
			opts.UserMetadata["x-amz-acl"] = spec.ACL
		}
	}

	if spec.Tagging != "" {
		values, err := url.ParseQuery(spec.Tagging)
		if err != nil {
			return minio.PutObjectOptions{}, fmt.Errorf("parse tagging: %w", err)
		}
		opts.UserTags = make(map[string]string, len(values))
		for k := range values {
			opts.UserTags[k] = values.Get(k)
		}
	}

	switch spec.ServerSideEncryption {
	case "":
	case "AES256":
		opts.ServerSideEncryption = encrypt.NewSSE()
	case "aws:kms":
		sse, err := encrypt.NewSSEKMS(spec.SSEKMSKeyID, nil)
		if err != nil {
			return minio.PutObjectOptions{}, fmt.Errorf("server side encryption: %w", err)
		}
		opts.ServerSideEncryption = sse
	default:
		return minio.PutObjectOptions{}, fmt.Errorf("unsupported server side encryption: %s", spec.ServerSideEncryption)
	}

	return opts, nil
}

func splitEndpoint(endpoint string, secure bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), secure, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme: %s", u.Scheme)
	}
}
