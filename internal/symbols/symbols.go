// Package symbols normalizes user-facing tickers into the forms each
// upstream provider expects and flags minor-unit (LSE pence) symbols.
package symbols

import "strings"

// Ref is a resolved symbol reference, derived deterministically from the
// ticker suffix. It is a value; derive a fresh one per request.
type Ref struct {
	Raw      string // ticker as the caller wrote it, trimmed
	Ticker   string // canonical form: uppercased, ".LON" folded to ".L"
	Base     string // ticker without any exchange suffix
	Exchange string // "US", "LSE", or "" when the suffix is unrecognized
	Pence    bool   // provider quotes prices in minor units (GBX); divide by 100 for display
}

// Normalize resolves a raw ticker into a Ref. It is pure and never fails:
// unknown suffixes fall through to the non-minor-unit path with an empty
// exchange tag, and bare tickers are treated as US-listed.
func Normalize(raw string) Ref {
	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)

	switch {
	case strings.HasSuffix(upper, ".LON"):
		base := strings.TrimSuffix(upper, ".LON")
		return Ref{Raw: trimmed, Ticker: base + ".L", Base: base, Exchange: "LSE", Pence: true}
	case strings.HasSuffix(upper, ".L"):
		base := strings.TrimSuffix(upper, ".L")
		return Ref{Raw: trimmed, Ticker: upper, Base: base, Exchange: "LSE", Pence: true}
	case strings.Contains(upper, "."):
		base := upper[:strings.Index(upper, ".")]
		return Ref{Raw: trimmed, Ticker: upper, Base: base, Exchange: ""}
	default:
		return Ref{Raw: trimmed, Ticker: upper, Base: upper, Exchange: "US"}
	}
}

// YahooSymbol returns the ticker form Yahoo Finance expects ("AV.L").
func (r Ref) YahooSymbol() string {
	return r.Ticker
}

// FinnhubSymbol returns the ticker form Finnhub expects. Finnhub follows
// the same dot-suffix convention as Yahoo.
func (r Ref) FinnhubSymbol() string {
	return r.Ticker
}

// AlphaVantageSymbol returns the ticker form Alpha Vantage expects. LSE
// issues use the long ".LON" suffix ("AV.LON").
func (r Ref) AlphaVantageSymbol() string {
	if r.Exchange == "LSE" {
		return r.Base + ".LON"
	}
	return r.Ticker
}

// StooqSymbol returns the ticker form Stooq expects: lowercased bare base
// plus a market suffix derived from the exchange tag ("av.uk", "aapl.us").
// Unrecognized exchanges pass the canonical ticker through lowercased.
func (r Ref) StooqSymbol() string {
	switch r.Exchange {
	case "LSE":
		return strings.ToLower(r.Base) + ".uk"
	case "US":
		return strings.ToLower(r.Base) + ".us"
	default:
		return strings.ToLower(r.Ticker)
	}
}

// DisplayPrice converts a raw provider price into display units. For pence
// quoted symbols this is the single dividing-by-100 step; callers must
// apply it exactly once per raw value.
func (r Ref) DisplayPrice(v float64) float64 {
	if r.Pence {
		return v / 100
	}
	return v
}
