package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bft-labs/walsync/internal/domain"
	"github.com/bft-labs/walsync/internal/ports"
)

const watermarkEndpoint = "/v1/sync/watermark"

// WatermarkClient implements ports.WatermarkSource by pulling the
// remote's durable position from the sync service.
type WatermarkClient struct {
	client     ports.HTTPClient
	serviceURL string
	authKey    string
	storeID    string
}

// NewWatermarkClient creates a watermark pull client.
func NewWatermarkClient(client ports.HTTPClient, serviceURL, authKey, storeID string) *WatermarkClient {
	return &WatermarkClient{client: client, serviceURL: serviceURL, authKey: authKey, storeID: storeID}
}

// Fetch pulls the current remote watermark.
func (c *WatermarkClient) Fetch(ctx context.Context) (domain.Watermark, error) {
	u := c.serviceURL + watermarkEndpoint + "?store=" + url.QueryEscape(c.storeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Watermark{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Watermark{}, fmt.Errorf("pull watermark: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.Watermark{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var w domain.Watermark
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return domain.Watermark{}, fmt.Errorf("decode watermark: %w", err)
	}
	return w, nil
}
