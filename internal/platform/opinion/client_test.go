package opinion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

func TestListActiveMarketsPaged(t *testing.T) {
	var pagesServed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/openapi/market", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("apikey"))
		require.Equal(t, "activated", r.URL.Query().Get("status"))
		require.Equal(t, "20", r.URL.Query().Get("size"))

		page := r.URL.Query().Get("page")
		pagesServed = append(pagesServed, page)

		n := 20
		if page == "2" {
			n = 5 // short page ends the listing
		}
		list := make([]map[string]any, 0, n)
		for i := 0; i < n; i++ {
			list = append(list, map[string]any{
				"marketId":    (len(pagesServed)-1)*20 + i,
				"marketTitle": "Market " + page + "-" + strconv.Itoa(i),
				"yesTokenId":  "y",
				"noTokenId":   "n",
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"list": list}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	markets, err := c.ListActiveMarkets(context.Background(), 50)
	require.NoError(t, err)

	assert.Len(t, markets, 25)
	assert.Equal(t, []string{"1", "2"}, pagesServed)
	assert.Equal(t, domain.PlatformOpinion, markets[0].Platform)
	assert.Equal(t, "0", markets[0].ID)
}

func TestListActiveMarketsWithoutKey(t *testing.T) {
	c := NewClient("http://unused.invalid", "")
	markets, err := c.ListActiveMarkets(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, markets)
}

func TestGetOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/openapi/token/orderbook", r.URL.Path)
		require.Equal(t, "tok1", r.URL.Query().Get("token_id"))
		w.Write([]byte(`{"result": {
			"bids": [{"price": "0.40", "size": "100"}, {"price": "oops", "size": "1"}],
			"asks": [[0.6, 50]]
		}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	book, err := c.GetOrderBook(context.Background(), "tok1")
	require.NoError(t, err)

	require.Len(t, book.Bids, 1)
	assert.Equal(t, 0.40, book.Bids[0].Price)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, 50.0, book.Asks[0].Size)
}

func TestGetOrderBookMissingToken(t *testing.T) {
	c := NewClient("http://unused.invalid", "test-key")
	book, err := c.GetOrderBook(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, book.Empty())
}

func TestGetQuoteNeutralWithoutKey(t *testing.T) {
	c := NewClient("http://unused.invalid", "")
	q, err := c.GetQuote(context.Background(), domain.Market{YesTokenID: "y", NoTokenID: "n"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, q.YesPrice)
	assert.Equal(t, 1.0, q.NoPrice)
	assert.Zero(t, q.YesLiquidity)
	assert.Zero(t, q.NoLiquidity)
}
