package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrderBookUnknownTokenYieldsEmptyBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") == "known" {
			w.Write([]byte(`{"bids": [{"price": "0.40", "size": "100"}], "asks": [{"price": "0.45", "size": "50"}]}`))
			return
		}
		http.Error(w, `{"error": "no orderbook exists"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL)

	book, err := c.GetOrderBook(context.Background(), "unknown")
	require.NoError(t, err, "an unknown token is an empty book, not an error")
	assert.Empty(t, book.Bids)
	assert.Empty(t, book.Asks)

	book, err = c.GetOrderBook(context.Background(), "known")
	require.NoError(t, err)
	require.Len(t, book.Asks, 1)
	assert.InDelta(t, 0.45, book.Asks[0].Price, 1e-9)
}

func TestGetOrderBookServerErrorStillErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClobClient(srv.URL).GetOrderBook(context.Background(), "tok1")
	require.Error(t, err)
}
