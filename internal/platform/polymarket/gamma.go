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

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListActiveMarkets returns currently tradable markets with order books
// enabled, in Gamma's own ordering. tagID optionally restricts the listing
// to one tag.
func (g *GammaClient) ListActiveMarkets(ctx context.Context, limit int, tagID string) ([]domain.Market, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("archived", "false")
	params.Set("enableOrderBook", "true")
	params.Set("limit", strconv.Itoa(limit))
	if tagID != "" {
		params.Set("tag_id", tagID)
	}

	path := "/markets?" + params.Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	if len(apiMarkets) > limit {
		apiMarkets = apiMarkets[:limit]
	}

	markets := make([]domain.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToDomainMarket())
	}

	return markets, nil
}

// GetMarket returns a single market by its ID.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(id))

	body, err := g.doGet(ctx, path)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}

	return apiMarket.ToDomainMarket(), nil
}

// Tag is one Gamma market tag.
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// ListTags returns a page of market tags.
func (g *GammaClient) ListTags(ctx context.Context, limit, offset int) ([]Tag, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := g.doGet(ctx, "/tags?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list tags: %w", err)
	}

	var tags []Tag
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode tags: %w", err)
	}

	out := tags[:0]
	for _, t := range tags {
		if t.ID == "" {
			continue
		}
		if t.Label == "" {
			t.Label = t.Slug
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTagBySlug looks up a single tag by its slug, e.g. "politics".
func (g *GammaClient) GetTagBySlug(ctx context.Context, slug string) (Tag, error) {
	if slug == "" {
		return Tag{}, fmt.Errorf("polymarket/gamma: %w: empty tag slug", domain.ErrNotFound)
	}

	body, err := g.doGet(ctx, "/tags/slug/"+url.PathEscape(slug))
	if err != nil {
		return Tag{}, fmt.Errorf("polymarket/gamma: get tag %s: %w", slug, err)
	}

	var tag Tag
	if err := json.Unmarshal(body, &tag); err != nil {
		return Tag{}, fmt.Errorf("polymarket/gamma: decode tag: %w", err)
	}
	if tag.ID == "" {
		return Tag{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}
	return tag, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
