package perp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchMarkPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/premiumIndex", r.URL.Path)
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"BTCUSDT","markPrice":"64123.50","lastFundingRate":"0.0001"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	price, err := c.FetchMarkPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 64123.50, price)
}

func TestFetchMarkPriceFallsBackToTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/premiumIndex":
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		case "/fapi/v1/ticker/price":
			w.Write([]byte(`{"symbol":"ETHUSDT","price":"3200.25"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	price, err := c.FetchMarkPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 3200.25, price)
}

func TestFetchFundingRateUnsupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such symbol", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	assert.Nil(t, c.FetchFundingRate(context.Background(), "XYZUSDT"))
}

func TestFetchFundingRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUSDT","markPrice":"64000","lastFundingRate":"-0.00025"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	rate := c.FetchFundingRate(context.Background(), "BTCUSDT")
	require.NotNil(t, rate)
	assert.Equal(t, -0.00025, *rate)
}

func TestFetchCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/klines", r.URL.Path)
		require.Equal(t, "1h", r.URL.Query().Get("interval"))
		w.Write([]byte(`[
			[1700000000000, "100.0", "101.0", "99.0", "100.5", "12.3"],
			[1700003600000, "100.5", "102.0", "100.0", "101.2", "15.1"],
			[1700007200000, "101.2", "101.5", "bad", "not-a-price", "9.9"]
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	closes, err := c.FetchCloses(context.Background(), "BTCUSDT", "1h", 10)
	require.NoError(t, err)
	// The malformed close is dropped, not fatal.
	assert.Equal(t, []float64{100.5, 101.2}, closes)
}
