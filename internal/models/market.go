// Package models defines the canonical data structures for quotebar
package models

import (
	"time"
)

// Quote holds a normalized real-time price snapshot for a single symbol.
// All price fields are expressed in final display currency; minor-unit
// conversion (pence to pounds) has already been applied by the adapter
// that produced the quote, exactly once.
type Quote struct {
	Symbol             string  `json:"symbol"`
	Price              float64 `json:"price"` // session-applicable price (pre/regular/post)
	RegularMarketPrice float64 `json:"regular_market_price"`
	PreviousClose      float64 `json:"previous_close"`
	PreMarketPrice     float64 `json:"pre_market_price,omitempty"`
	PostMarketPrice    float64 `json:"post_market_price,omitempty"`
	Change             float64 `json:"change"`
	ChangePct          float64 `json:"change_p"`
	Volume             int64   `json:"volume,omitempty"`
	Currency           string  `json:"currency,omitempty"`
	MarketState        string  `json:"market_state,omitempty"` // PRE, REGULAR, POST, CLOSED
	Timestamp          int64   `json:"timestamp"`              // epoch seconds, exchange time when the provider supplies one
	Source             string  `json:"source,omitempty"`       // provider identifier
}

// HistoricalPoint is one element of a daily close series. Within a series
// timestamps are strictly ascending and PreviousClose chains to the prior
// point's price; the first point carries its own session open (or its own
// price when no open is available) as an approximation of previous close.
type HistoricalPoint struct {
	Symbol        string  `json:"symbol,omitempty"`
	Timestamp     int64   `json:"timestamp"` // epoch seconds
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
}

// Candle is a single OHLCV bar. Timestamp marshals as RFC 3339, which is
// the shape the charting client expects.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// SymbolResult is the per-symbol outcome of a feed request. Exactly one of
// Quote, History, Candles, or Err is populated.
type SymbolResult struct {
	Symbol  string            `json:"symbol"`
	Quote   *Quote            `json:"quote,omitempty"`
	History []HistoricalPoint `json:"history,omitempty"`
	Candles []Candle          `json:"candles,omitempty"`
	Err     *FetchError       `json:"error,omitempty"`
}

// OK reports whether the result carries data rather than a failure.
func (r SymbolResult) OK() bool {
	return r.Err == nil
}

// KeyStatus reports the outcome of verifying one provider's credentials.
type KeyStatus struct {
	Provider string `json:"provider"`
	OK       bool   `json:"ok"`
	Detail   string `json:"detail,omitempty"`
}
