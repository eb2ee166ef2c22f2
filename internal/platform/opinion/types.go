package opinion

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// envelope is the standard Open API response wrapper.
type envelope struct {
	Result json.RawMessage `json:"result"`
}

// flexID unmarshals an identifier sent either as a JSON string or a number.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	*f = ""
	return nil
}

// flexNum unmarshals a JSON number or numeric string. OK reports whether a
// usable value was present.
type flexNum struct {
	Value float64
	OK    bool
}

func (f *flexNum) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.Value, f.OK = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		f.Value, f.OK = v, true
	}
	return nil
}

// marketPage is the result payload of GET /openapi/market.
type marketPage struct {
	List []APIMarket `json:"list"`
}

// APIMarket represents a market entry from the Opinion Open API.
type APIMarket struct {
	MarketID    flexID `json:"marketId"`
	MarketTitle string `json:"marketTitle"`
	YesTokenID  flexID `json:"yesTokenId"`
	NoTokenID   flexID `json:"noTokenId"`
}

// ToDomainMarket converts an APIMarket to a domain.Market.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		Platform:   domain.PlatformOpinion,
		ID:         string(m.MarketID),
		Title:      m.MarketTitle,
		YesTokenID: string(m.YesTokenID),
		NoTokenID:  string(m.NoTokenID),
	}
	if dm.Title == "" {
		dm.Title = dm.ID
	}
	return dm
}

// apiBook is the result payload of GET /openapi/token/orderbook.
type apiBook struct {
	Bids []apiLevel `json:"bids"`
	Asks []apiLevel `json:"asks"`
}

// apiLevel is one book level, tolerant of {price,size} objects with number
// or string values as well as [price, size] arrays. Malformed levels parse
// to ok=false and are dropped.
type apiLevel struct {
	price float64
	size  float64
	ok    bool
}

func (l *apiLevel) UnmarshalJSON(data []byte) error {
	var obj struct {
		Price    flexNum `json:"price"`
		Size     flexNum `json:"size"`
		Quantity flexNum `json:"quantity"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		size := obj.Size
		if !size.OK {
			size = obj.Quantity
		}
		if obj.Price.OK && size.OK {
			l.price, l.size, l.ok = obj.Price.Value, size.Value, true
		}
		return nil
	}
	var arr []flexNum
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil
	}
	if len(arr) >= 2 && arr[0].OK && arr[1].OK {
		l.price, l.size, l.ok = arr[0].Value, arr[1].Value, true
	}
	return nil
}

func (b *apiBook) toDomain() domain.OrderBook {
	return domain.OrderBook{
		Bids: toLevels(b.Bids),
		Asks: toLevels(b.Asks),
	}
}

func toLevels(raw []apiLevel) []domain.Level {
	levels := make([]domain.Level, 0, len(raw))
	for _, l := range raw {
		if !l.ok {
			continue
		}
		levels = append(levels, domain.Level{Price: l.price, Size: l.size})
	}
	return levels
}
