package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DataClient is the REST client for the Polymarket Data-API, which exposes
// read-only global trade history.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new Data-API client.
//
// baseURL is the Data-API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetRecentTrades returns the most recent trades across all markets, newest
// first. Malformed records are dropped individually.
func (d *DataClient) GetRecentTrades(ctx context.Context, limit int) ([]APITrade, error) {
	if limit <= 0 {
		limit = 200
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/trades?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("polymarket/data: get trades: %w", err)
	}

	var trades []APITrade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode trades: %w", err)
	}

	out := trades[:0]
	for _, t := range trades {
		if t.ConditionID == "" && t.Asset == "" {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
