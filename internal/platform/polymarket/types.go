package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexString unmarshals from a JSON string or number. Anything else is
// swallowed as the empty string so one odd field never fails a whole listing.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// flexFloat unmarshals from a JSON number or numeric string. OK reports
// whether a usable value was present; malformed values are dropped silently.
type flexFloat struct {
	Value float64
	OK    bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
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

// tokenIDList unmarshals Gamma's clobTokenIds field, which is usually a
// stringified JSON array ("[\"123\",\"456\"]") but sometimes a plain array.
type tokenIDList []string

func (t *tokenIDList) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		*t = ids
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		*t = nil
		return nil
	}
	*t = ids
	return nil
}

// tagList unmarshals Gamma tags, sent either as plain strings or as
// objects with label/slug fields.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var plain []string
	if err := json.Unmarshal(data, &plain); err == nil {
		*t = plain
		return nil
	}
	var objs []struct {
		Label string `json:"label"`
		Slug  string `json:"slug"`
	}
	if err := json.Unmarshal(data, &objs); err != nil {
		*t = nil
		return nil
	}
	tags := make([]string, 0, len(objs))
	for _, o := range objs {
		switch {
		case o.Label != "":
			tags = append(tags, o.Label)
		case o.Slug != "":
			tags = append(tags, o.Slug)
		}
	}
	*t = tags
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Field names in Gamma have drifted across versions, so volume/liquidity and
// end-date fields are sets of candidates resolved in ToDomainMarket.
type APIMarket struct {
	ID          string     `json:"id"`
	ConditionID string     `json:"conditionId"`
	Question    string     `json:"question"`
	Title       string     `json:"title"`
	Name        string     `json:"name"`
	Category    flexString `json:"category"`
	Tags        tagList    `json:"tags"`
	Active      flexBool   `json:"active"`
	Closed      flexBool   `json:"closed"`

	Volume24hClob flexFloat `json:"volume24hrClob"`
	Volume24h     flexFloat `json:"volume24hr"`

	LiquidityClob flexFloat `json:"liquidityClob"`
	LiquidityNum  flexFloat `json:"liquidityNum"`
	Liquidity     flexFloat `json:"liquidity"`

	EndDate     flexString `json:"endDate"`
	EndTime     flexString `json:"endTime"`
	CloseDate   flexString `json:"closeDate"`
	ResolveTime flexString `json:"resolveTime"`

	ClobTokenIDs tokenIDList `json:"clobTokenIds"`
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		Platform:    domain.PlatformPolymarket,
		ID:          m.ID,
		ConditionID: m.ConditionID,
		Tags:        []string(m.Tags),
	}
	if dm.ID == "" {
		dm.ID = m.ConditionID
	}

	switch {
	case m.Question != "":
		dm.Title = m.Question
	case m.Title != "":
		dm.Title = m.Title
	case m.Name != "":
		dm.Title = m.Name
	default:
		dm.Title = dm.ID
	}

	dm.Category = string(m.Category)
	if dm.Category == "" && len(dm.Tags) > 0 {
		dm.Category = dm.Tags[0]
	}

	for _, v := range []flexFloat{m.Volume24hClob, m.Volume24h} {
		if v.OK {
			dm.Volume24h = v.Value
			break
		}
	}
	for _, v := range []flexFloat{m.LiquidityClob, m.LiquidityNum, m.Liquidity} {
		if v.OK {
			dm.Liquidity = v.Value
			break
		}
	}
	for _, d := range []flexString{m.EndDate, m.EndTime, m.CloseDate, m.ResolveTime} {
		if d != "" {
			dm.EndDate = string(d)
			break
		}
	}

	if len(m.ClobTokenIDs) >= 2 {
		dm.YesTokenID = m.ClobTokenIDs[0]
		dm.NoTokenID = m.ClobTokenIDs[1]
	}

	return dm
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBook is an order book as returned by the CLOB REST API.
type APIBook struct {
	AssetID string    `json:"asset_id"`
	Market  string    `json:"market"`
	Bids    []wsLevel `json:"bids"`
	Asks    []wsLevel `json:"asks"`
}

// ToDomainBook converts an APIBook to a domain.OrderBook, dropping levels
// that fail to parse.
func (b *APIBook) ToDomainBook() domain.OrderBook {
	return domain.OrderBook{
		Bids: toLevels(b.Bids),
		Asks: toLevels(b.Asks),
	}
}

// --------------------------------------------------------------------------
// Data-API DTOs
// --------------------------------------------------------------------------

// APITrade represents a trade record from the Polymarket Data-API.
type APITrade struct {
	ConditionID     string     `json:"conditionId"`
	Asset           string     `json:"asset"`
	Side            string     `json:"side"`
	Size            flexFloat  `json:"size"`
	Price           flexFloat  `json:"price"`
	Timestamp       flexFloat  `json:"timestamp"`
	Title           string     `json:"title"`
	Outcome         flexString `json:"outcome"`
	TransactionHash flexString `json:"transactionHash"`
	ProxyWallet     flexString `json:"proxyWallet"`
	Pseudonym       flexString `json:"pseudonym"`
}

// ToDomainTrade converts an APITrade to a domain.TradeEvent.
func (t *APITrade) ToDomainTrade() domain.TradeEvent {
	size := t.Size.Value
	price := t.Price.Value
	return domain.TradeEvent{
		ConditionID: t.ConditionID,
		TokenID:     t.Asset,
		Side:        t.Side,
		Size:        size,
		Price:       price,
		Notional:    size * price,
		Timestamp:   int64(t.Timestamp.Value),
		Title:       t.Title,
		Outcome:     string(t.Outcome),
		TxHash:      string(t.TransactionHash),
		Wallet:      string(t.ProxyWallet),
		Pseudonym:   string(t.Pseudonym),
	}
}

// --------------------------------------------------------------------------
// WebSocket wire format
// --------------------------------------------------------------------------

// wsCommand is the subscription payload sent on the MARKET channel.
type wsCommand struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

// MarketSubscribeCommand builds the MARKET-channel subscription frame for
// the given outcome token ids.
func MarketSubscribeCommand(assetIDs []string) ([]byte, error) {
	return json.Marshal(wsCommand{Type: "MARKET", AssetIDs: assetIDs})
}

// wsLevel is one price level on the wire. Levels arrive either as objects
// {"price": "0.49", "size": "100"} or as two-element arrays [price, size];
// prices and sizes may be numbers or numeric strings. Malformed levels set
// ok=false and are dropped by the caller without failing the frame.
type wsLevel struct {
	price float64
	size  float64
	ok    bool
}

func (l *wsLevel) UnmarshalJSON(data []byte) error {
	var obj struct {
		Price *flexFloat `json:"price"`
		Size  *flexFloat `json:"size"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Price != nil && obj.Price.OK && obj.Size != nil && obj.Size.OK {
			l.price, l.size, l.ok = obj.Price.Value, obj.Size.Value, true
		}
		return nil
	}
	var arr []flexFloat
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil
	}
	if len(arr) >= 2 && arr[0].OK && arr[1].OK {
		l.price, l.size, l.ok = arr[0].Value, arr[1].Value, true
	}
	return nil
}

func toLevels(raw []wsLevel) []domain.Level {
	levels := make([]domain.Level, 0, len(raw))
	for _, l := range raw {
		if !l.ok {
			continue
		}
		levels = append(levels, domain.Level{Price: l.price, Size: l.size})
	}
	return levels
}

// wsFrame is the union of every MARKET-channel message shape we care about.
// None of the fields are guaranteed; classification happens in
// ParseStreamMessages.
type wsFrame struct {
	EventType string    `json:"event_type"`
	AssetID   string    `json:"asset_id"`
	Market    string    `json:"market"`
	Bids      []wsLevel `json:"bids"`
	Asks      []wsLevel `json:"asks"`
	Buys      []wsLevel `json:"buys"`
	Sells     []wsLevel `json:"sells"`

	Side      flexString `json:"side"`
	Size      flexFloat  `json:"size"`
	Price     flexFloat  `json:"price"`
	Timestamp flexFloat  `json:"timestamp"`
}

// BookSnapshot is a full order book replacement for one token.
type BookSnapshot struct {
	TokenID string
	Book    domain.OrderBook
}

// StreamEvent is one decoded MARKET-channel event: exactly one of Book or
// Trade is set.
type StreamEvent struct {
	Book  *BookSnapshot
	Trade *domain.TradeEvent
}

// ParseStreamMessages decodes a raw WebSocket frame into stream events. The
// server sends either a single JSON object or an array of them per frame;
// both are accepted. Book snapshots are recognized by event_type "book" or
// by the presence of bids/asks/buys/sells; last_trade_price events carry a
// millisecond timestamp that is converted to seconds. Unknown event types
// (price_change, tick_size_change) and malformed entries are skipped.
func ParseStreamMessages(raw []byte) []StreamEvent {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil
	}

	var frames []wsFrame
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &frames); err != nil {
			return nil
		}
	} else {
		var one wsFrame
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil
		}
		frames = []wsFrame{one}
	}

	var events []StreamEvent
	for i := range frames {
		f := &frames[i]

		if f.EventType == "book" || f.Bids != nil || f.Asks != nil || f.Buys != nil || f.Sells != nil {
			if f.AssetID == "" {
				continue
			}
			bids := f.Bids
			if len(bids) == 0 {
				bids = f.Buys
			}
			asks := f.Asks
			if len(asks) == 0 {
				asks = f.Sells
			}
			events = append(events, StreamEvent{Book: &BookSnapshot{
				TokenID: f.AssetID,
				Book: domain.OrderBook{
					Bids: toLevels(bids),
					Asks: toLevels(asks),
				},
			}})
			continue
		}

		if f.EventType == "last_trade_price" {
			if !f.Size.OK || !f.Price.OK {
				continue
			}
			size := f.Size.Value
			price := f.Price.Value
			var ts int64
			if f.Timestamp.OK {
				ts = int64(f.Timestamp.Value) / 1000
			}
			events = append(events, StreamEvent{Trade: &domain.TradeEvent{
				ConditionID: f.Market,
				TokenID:     f.AssetID,
				Side:        string(f.Side),
				Size:        size,
				Price:       price,
				Notional:    size * price,
				Timestamp:   ts,
				Title:       f.Market,
			}})
		}
	}
	return events
}
