package roon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/franz/music-reconciler/internal/util"
)

// RequestTimeout bounds a single bridge request; the bridge itself may be
// paging through a slow library
const RequestTimeout = 30 * time.Second

// BridgeClient talks to a local browse bridge that holds the actual session
// with the source library and exposes its album list as paged JSON
type BridgeClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBridgeClient creates a client for the bridge at the given base URL
func NewBridgeClient(baseURL string) *BridgeClient {
	return &BridgeClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
	}
}

type albumPage struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
}

// Albums fetches one page of the album listing
func (c *BridgeClient) Albums(ctx context.Context, offset, count int) ([]Item, int, error) {
	urlStr := fmt.Sprintf("%s/albums?offset=%d&count=%d", c.baseURL, offset, count)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list albums: %w", err)
	}
	defer resp.Body.Close()

	// The bridge reports an expired browse cursor as 410 Gone
	if resp.StatusCode == http.StatusGone {
		return nil, 0, util.ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, &util.HTTPError{StatusCode: resp.StatusCode, URL: urlStr}
	}

	var page albumPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, 0, fmt.Errorf("failed to decode album page: %w", err)
	}

	return page.Items, page.Total, nil
}

// Refresh asks the bridge to re-establish its browse session
func (c *BridgeClient) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/refresh", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &util.HTTPError{StatusCode: resp.StatusCode, URL: c.baseURL + "/refresh"}
	}
	return nil
}
