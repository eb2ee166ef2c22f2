// Package perp is a read-only market-data client for a USDT-margined
// futures exchange with a Binance-compatible REST surface. It provides the
// underlying prices, funding rates, and candles the hedge scanner prices
// against; no trading endpoints are wrapped.
package perp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// Client is the futures market-data client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new perp client.
//
// baseURL is the futures API root, e.g. "https://fapi.binance.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchMarkPrice returns the current mark price for a symbol, falling back
// to the last traded price when the mark is unavailable.
func (c *Client) FetchMarkPrice(ctx context.Context, symbol string) (float64, error) {
	var idx premiumIndex
	if err := c.getJSON(ctx, "/fapi/v1/premiumIndex", url.Values{"symbol": {symbol}}, &idx); err == nil {
		if idx.MarkPrice.OK && idx.MarkPrice.Value > 0 {
			return idx.MarkPrice.Value, nil
		}
		if idx.IndexPrice.OK && idx.IndexPrice.Value > 0 {
			return idx.IndexPrice.Value, nil
		}
	}

	var tick tickerPrice
	if err := c.getJSON(ctx, "/fapi/v1/ticker/price", url.Values{"symbol": {symbol}}, &tick); err != nil {
		return 0, fmt.Errorf("perp: mark price for %s: %w", symbol, err)
	}
	if !tick.Price.OK || tick.Price.Value <= 0 {
		return 0, fmt.Errorf("perp: mark price unavailable for %s", symbol)
	}
	return tick.Price.Value, nil
}

// FetchFundingRate returns the current funding rate for a symbol, or nil
// when the exchange does not report one. Errors are treated as unsupported.
func (c *Client) FetchFundingRate(ctx context.Context, symbol string) *float64 {
	var idx premiumIndex
	if err := c.getJSON(ctx, "/fapi/v1/premiumIndex", url.Values{"symbol": {symbol}}, &idx); err != nil {
		return nil
	}
	if !idx.LastFundingRate.OK {
		return nil
	}
	rate := idx.LastFundingRate.Value
	return &rate
}

// FetchCloses returns up to limit close prices for a symbol at the given
// timeframe ("1m", "1h", "1d", ...), oldest first.
func (c *Client) FetchCloses(ctx context.Context, symbol, timeframe string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 500
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	var candles []kline
	if err := c.getJSON(ctx, "/fapi/v1/klines", params, &candles); err != nil {
		return nil, fmt.Errorf("perp: klines for %s %s: %w", symbol, timeframe, err)
	}

	closes := make([]float64, 0, len(candles))
	for _, k := range candles {
		if k.close.OK && k.close.Value > 0 {
			closes = append(closes, k.close.Value)
		}
	}
	return closes, nil
}

// FetchRealizedVol computes the annualized realized volatility of a symbol
// from historical closes. lookbackDays bounds the window, maxCandles bounds
// the request size. ok is false when there is not enough data.
func (c *Client) FetchRealizedVol(ctx context.Context, symbol, timeframe string, lookbackDays, maxCandles int) (float64, bool) {
	barSec, err := TimeframeSeconds(timeframe)
	if err != nil {
		return 0, false
	}

	need := int(float64(lookbackDays) * 24 * 3600 / barSec)
	if maxCandles > 0 && need > maxCandles {
		need = maxCandles
	}
	if need < 2 {
		need = 2
	}

	closes, err := c.FetchCloses(ctx, symbol, timeframe, need)
	if err != nil {
		return 0, false
	}
	return RealizedVolFromCloses(closes, barSec)
}

// TimeframeSeconds converts a candle interval like "15m", "4h" or "1d" to
// its duration in seconds.
func TimeframeSeconds(timeframe string) (float64, error) {
	tf := strings.TrimSpace(timeframe)
	if len(tf) < 2 {
		return 0, fmt.Errorf("perp: bad timeframe %q", timeframe)
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("perp: bad timeframe %q", timeframe)
	}
	var unit float64
	switch tf[len(tf)-1] {
	case 'm':
		unit = 60
	case 'h':
		unit = 3600
	case 'd':
		unit = 24 * 3600
	case 'w':
		unit = 7 * 24 * 3600
	default:
		return 0, fmt.Errorf("perp: bad timeframe %q", timeframe)
	}
	return float64(n) * unit, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
