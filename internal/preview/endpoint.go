package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/matheus3301/twin/internal/ogmeta"
)

// EndpointFetcher asks a remote metadata service (POST {url}) instead of
// scraping pages from this process.
type EndpointFetcher struct {
	endpoint string
	client   *http.Client
}

// NewEndpointFetcher creates a fetcher for endpoint. A nil client uses http.DefaultClient.
func NewEndpointFetcher(endpoint string, client *http.Client) *EndpointFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &EndpointFetcher{endpoint: endpoint, client: client}
}

// Fetch implements Fetcher.
func (f *EndpointFetcher) Fetch(ctx context.Context, rawURL string) (*ogmeta.Metadata, error) {
	body, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("metadata endpoint: status %d", resp.StatusCode)
	}
	var md ogmeta.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &md, nil
}
