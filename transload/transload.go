// Package transload streams an HTTP(S) resource straight into an object storage bucket.
// The response body is handed to the storage upload as it arrives; the object is never
// materialised on disk or held in memory as a whole.
package transload

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// Credentials are static, request scoped storage credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Params ...
type Params struct {
	SourceURL string
	Bucket    string
	Key       string

	UploadOptions UploadOptions
	Credentials   *Credentials

	// Region, Endpoint, UsePathStyle and PartSize configure the S3 destination built
	// for this call. They are ignored when Destination is set.
	Region       string
	Endpoint     string
	UsePathStyle bool
	PartSize     int64

	Destination Destination
}

// Result describes the stored object. ContentLength and ContentType are the source's
// header values, empty when the source did not send them.
type Result struct {
	Location         string `json:"location"`
	ContentLength    string `json:"content_length,omitempty"`
	ContentType      string `json:"content_type,omitempty"`
	ETag             string `json:"etag,omitempty"`
	VersionID        string `json:"version_id,omitempty"`
	BytesTransferred int64  `json:"bytes_transferred"`
}

// CompletionHandler receives the outcome of TransferAsync: either a non-nil error and a zero
// Result, or a nil error and the stored object's Result.
type CompletionHandler func(Result, error)

// TransferAsync runs Transfer in its own goroutine and calls onComplete exactly once.
func TransferAsync(ctx context.Context, params Params, logger log.Logger, onComplete CompletionHandler) {
	go func() {
		result, err := Transfer(ctx, params, logger)
		onComplete(result, err)
	}()
}

// Transfer fetches params.SourceURL and streams the body into params.Bucket/params.Key.
// Failures of the fetch or the upload are *TransferError values; invalid params are
// reported before any request is made.
func Transfer(ctx context.Context, params Params, logger log.Logger) (Result, error) {
	if err := validateParams(params); err != nil {
		return Result{}, fmt.Errorf("validate params: %w", err)
	}

	destination := params.Destination
	if destination == nil {
		s3Destination, err := NewS3Destination(ctx, S3Params{
			Region:       params.Region,
			Endpoint:     params.Endpoint,
			UsePathStyle: params.UsePathStyle,
			Credentials:  params.Credentials,
			PartSize:     params.PartSize,
		}, logger)
		if err != nil {
			return Result{}, fmt.Errorf("create s3 destination: %w", err)
		}
		destination = s3Destination
	}

	logger.Debugf("Fetching %s", params.SourceURL)
	source, err := newFetcher(logger).fetch(ctx, params.SourceURL)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := source.Body.Close(); err != nil {
			logger.Debugf("Failed to close source body: %s", err)
		}
	}()
	logger.Debugf("Source responded, content-length: %q, content-type: %q", source.ContentLength, source.ContentType)

	spec, err := resolveObjectSpec(params.Bucket, params.Key, source, params.UploadOptions)
	if err != nil {
		return Result{}, fmt.Errorf("resolve upload options: %w", err)
	}

	stats := NewStats()
	out, err := destination.Upload(ctx, spec, stats.Reader(source.Body))
	if err != nil {
		return Result{}, newTransferError(UploadFailure, err)
	}
	if out.Location == "" {
		return Result{}, newTransferError(MissingLocation, nil)
	}

	logger.Donef("Transferred %s to %s in %s (%s/s)",
		units.HumanSize(float64(stats.Bytes())), out.Location, stats.Elapsed().Round(time.Millisecond), units.HumanSize(stats.BytesPerSecond()))

	return Result{
		Location:         out.Location,
		ContentLength:    source.ContentLength,
		ContentType:      source.ContentType,
		ETag:             out.ETag,
		VersionID:        out.VersionID,
		BytesTransferred: stats.Bytes(),
	}, nil
}

func validateParams(params Params) error {
	if params.SourceURL == "" {
		return fmt.Errorf("source URL must not be empty")
	}
	u, err := url.Parse(params.SourceURL)
	if err != nil {
		return fmt.Errorf("parse source URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("source URL has no host")
	}

	if params.Bucket == "" {
		return fmt.Errorf("bucket must not be empty")
	}
	if params.Key == "" {
		return fmt.Errorf("key must not be empty")
	}

	return params.UploadOptions.Validate()
}
