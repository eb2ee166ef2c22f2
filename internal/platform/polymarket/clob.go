package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// ClobClient is a read-only client for the Polymarket CLOB REST API. Public
// endpoints (order books, prices) need no credentials.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetOrderBook returns the current order book for one outcome token. An
// empty token ID, and a token the venue does not know, both yield an empty
// book rather than an error, so callers can quote markets with missing or
// stale token metadata uniformly.
func (c *ClobClient) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	if tokenID == "" {
		return domain.OrderBook{}, nil
	}

	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/book?"+params.Encode())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.OrderBook{}, nil
		}
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	return book.ToDomainBook(), nil
}

// GetQuote fetches both outcome books of a market and reduces them to the
// best buyable YES/NO prices with near-touch liquidity.
func (c *ClobClient) GetQuote(ctx context.Context, market domain.Market) (domain.PriceQuote, error) {
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

// bestBuyPrice is the best ask, or 1.0 when the ask side is empty.
func bestBuyPrice(book domain.OrderBook) float64 {
	if ask, ok := book.BestAsk(); ok {
		return ask.Price
	}
	return 1.0
}

// nearTouchLiquidity sums the sizes of the top five levels on each side.
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

func (c *ClobClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

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
