package perp

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexNum unmarshals a JSON number or numeric string. The futures API sends
// most prices as strings.
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

// premiumIndex is the response of GET /fapi/v1/premiumIndex.
type premiumIndex struct {
	Symbol          string  `json:"symbol"`
	MarkPrice       flexNum `json:"markPrice"`
	IndexPrice      flexNum `json:"indexPrice"`
	LastFundingRate flexNum `json:"lastFundingRate"`
}

// tickerPrice is the response of GET /fapi/v1/ticker/price.
type tickerPrice struct {
	Symbol string  `json:"symbol"`
	Price  flexNum `json:"price"`
}

// kline is one candle from GET /fapi/v1/klines, sent as a positional array
// [openTime, open, high, low, close, volume, ...]. Only the close is kept.
type kline struct {
	close flexNum
}

func (k *kline) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	if len(fields) > 4 {
		_ = json.Unmarshal(fields[4], &k.close)
	}
	return nil
}
