// Package opinion is a read-only client for the Opinion exchange Open API.
//
// All endpoints require only an API key. When no key is configured the
// client degrades gracefully: listings are empty and quotes are neutral, so
// upstream scanners simply find nothing to pair.
package opinion

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

// pageSize is the Open API's maximum page size for market listings.
const pageSize = 20

// Client is the Opinion Open API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Opinion client. apiKey may be empty; read methods
// then return empty results instead of failing.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether the client has credentials to talk to the API.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// ListActiveMarkets returns up to limit activated binary markets, paging
// through the listing endpoint (page size capped at 20 by the API).
func (c *Client) ListActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if !c.Configured() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	size := limit
	if size > pageSize {
		size = pageSize
	}

	var markets []domain.Market
	for page := 1; len(markets) < limit; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("size", strconv.Itoa(size))
		params.Set("status", "activated")
		params.Set("marketType", "0")

		body, err := c.doGet(ctx, "/openapi/market?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("opinion: list markets page %d: %w", page, err)
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("opinion: decode listing: %w", err)
		}
		var pg marketPage
		if len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, &pg); err != nil {
				return nil, fmt.Errorf("opinion: decode listing page: %w", err)
			}
		}
		if len(pg.List) == 0 {
			break
		}

		for i := range pg.List {
			markets = append(markets, pg.List[i].ToDomainMarket())
			if len(markets) >= limit {
				break
			}
		}
		if len(pg.List) < size {
			break
		}
	}
	return markets, nil
}

// GetOrderBook returns the book for one outcome token. A missing token id
// or missing credentials yields an empty book.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	if tokenID == "" || !c.Configured() {
		return domain.OrderBook{}, nil
	}

	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/openapi/token/orderbook?"+params.Encode())
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("opinion: get book %s: %w", tokenID, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.OrderBook{}, fmt.Errorf("opinion: decode book: %w", err)
	}
	var book apiBook
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &book); err != nil {
			return domain.OrderBook{}, fmt.Errorf("opinion: decode book levels: %w", err)
		}
	}
	return book.toDomain(), nil
}

// GetQuote reduces both outcome books of a market to the best buyable
// YES/NO prices. Without credentials it returns the neutral quote (price 1,
// zero liquidity) so arbitrage math self-filters the pair.
func (c *Client) GetQuote(ctx context.Context, market domain.Market) (domain.PriceQuote, error) {
	if !c.Configured() {
		return domain.PriceQuote{YesPrice: 1.0, NoPrice: 1.0}, nil
	}

	yesBook, err := c.GetOrderBook(ctx, market.YesTokenID)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	noBook, err := c.GetOrderBook(ctx, market.NoTokenID)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	return domain.PriceQuote{
		YesPrice:     bestBuyPrice(yesBook),
		NoPrice:      bestBuyPrice(noBook),
		YesLiquidity: nearTouchLiquidity(yesBook),
		NoLiquidity:  nearTouchLiquidity(noBook),
	}, nil
}

func bestBuyPrice(book domain.OrderBook) float64 {
	if ask, ok := book.BestAsk(); ok {
		return ask.Price
	}
	return 1.0
}

func nearTouchLiquidity(book domain.OrderBook) float64 {
	var total float64
	for i, lvl := range book.Asks {
		if i >= 5 {
			break
		}
		total += lvl.Size
	}
	for i, lvl := range book.Bids {
		if i >= 5 {
			break
		}
		total += lvl.Size
	}
	return total
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
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

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
