// Package hub downloads model artifacts from a HuggingFace-style file host.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ErrFetch indicates an artifact could not be downloaded. The fetcher owns
// its own retries; a returned error is final for that call.
var ErrFetch = errors.New("artifact fetch failed")

// Fetcher retrieves a single artifact file from a model repository.
type Fetcher interface {
	Fetch(ctx context.Context, repo, filename string) ([]byte, error)
}

// HTTPFetcher fetches artifacts over HTTP from an endpoint laid out like
// huggingface.co: <endpoint>/<repo>/resolve/main/<filename>.
type HTTPFetcher struct {
	client   *http.Client
	endpoint string
	log      *zap.Logger
}

// NewHTTPFetcher creates a fetcher for the given endpoint. Transient failures
// are retried with backoff before a final error is reported.
func NewHTTPFetcher(endpoint string, log *zap.Logger) *HTTPFetcher {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	return &HTTPFetcher{
		client:   retryClient.StandardClient(),
		endpoint: endpoint,
		log:      log,
	}
}

// Fetch downloads one file from repo and returns its bytes.
func (f *HTTPFetcher) Fetch(ctx context.Context, repo, filename string) ([]byte, error) {
	fileURL, err := url.JoinPath(f.endpoint, repo, "resolve", "main", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: bad artifact URL for %s/%s: %v", ErrFetch, repo, filename, err)
	}

	f.log.Info("downloading artifact",
		zap.String("repo", repo),
		zap.String("file", filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrFetch, repo, filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s/%s: status %d", ErrFetch, repo, filename, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s/%s: %v", ErrFetch, repo, filename, err)
	}

	f.log.Info("downloaded artifact",
		zap.String("repo", repo),
		zap.String("file", filename),
		zap.Int("bytes", len(data)))
	return data, nil
}
