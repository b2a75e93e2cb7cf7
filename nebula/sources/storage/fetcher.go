package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"nebula/nebula/utils/logging"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// Fetcher reads attachment bytes back from their durable URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads attachments and keeps recent ones in a byte-bounded cache.
type HTTPFetcher struct {
	client   *http.Client
	cache    *ristretto.Cache
	maxBytes int64
}

// NewHTTPFetcher caches up to cacheBytes of attachments and refuses any
// single object over maxObjectBytes.
func NewHTTPFetcher(client *http.Client, cacheBytes, maxObjectBytes int64) (*HTTPFetcher, error) {
	if client == nil {
		client = http.DefaultClient
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     cacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("attachment cache: %w", err)
	}
	return &HTTPFetcher{client: client, cache: cache, maxBytes: maxObjectBytes}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if v, ok := f.cache.Get(url); ok {
		if data, ok := v.([]byte); ok {
			return data, nil
		}
	}
	defer logging.LogDuration(ctx, "HTTPFetcher.Fetch")()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch attachment: bad status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch attachment: larger than %d bytes", f.maxBytes)
	}
	if !f.cache.Set(url, data, int64(len(data))) {
		logging.AppLogger.Debug("attachment not cached", zap.String("url", url))
	}
	return data, nil
}

// Wait blocks until pending cache writes are visible.
func (f *HTTPFetcher) Wait() {
	f.cache.Wait()
}

func (f *HTTPFetcher) Close() {
	f.cache.Close()
}
