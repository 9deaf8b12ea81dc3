package transload

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// SourceResponse is a source that answered with HTTP 200 and whose body is still unread.
// ContentLength and ContentType hold the raw header values, empty when the source omitted them.
type SourceResponse struct {
	StatusCode    int
	ContentLength string
	ContentType   string
	Body          io.ReadCloser
}

type fetcher struct {
	httpClient *retryablehttp.Client
	logger     log.Logger
}

func newFetcher(logger log.Logger) fetcher {
	client := retryhttp.NewClient(logger)
	client.RetryMax = 0
	client.CheckRetry = noRetryPolicy
	if transport, ok := client.HTTPClient.Transport.(*http.Transport); ok {
		// Keep the body byte-identical to what the source serves.
		transport.DisableCompression = true
	}

	return fetcher{
		httpClient: client,
		logger:     logger,
	}
}

func noRetryPolicy(ctx context.Context, _ *http.Response, _ error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

// fetch returns as soon as the response headers are in. On success the caller owns the body.
func (f fetcher) fetch(ctx context.Context, sourceURL string) (SourceResponse, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return SourceResponse{}, newTransferError(NetworkFailure, fmt.Errorf("create request: %w", err))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return SourceResponse{}, newTransferError(NetworkFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		f.discard(resp.Body)
		f.logger.Debugf("Source responded with HTTP %d", resp.StatusCode)
		return SourceResponse{}, &TransferError{Kind: BadSourceStatus, StatusCode: resp.StatusCode}
	}

	return SourceResponse{
		StatusCode:    resp.StatusCode,
		ContentLength: resp.Header.Get("Content-Length"),
		ContentType:   resp.Header.Get("Content-Type"),
		Body:          resp.Body,
	}, nil
}

func (f fetcher) discard(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, io.LimitReader(body, 4096)); err != nil {
		f.logger.Debugf("Failed to drain response body: %s", err)
	}
	if err := body.Close(); err != nil {
		f.logger.Debugf("Failed to close response body: %s", err)
	}
}
