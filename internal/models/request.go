package models

import "time"

// RequestKind selects the operation a request performs.
type RequestKind string

const (
	RequestQuote      RequestKind = "quote"
	RequestHistorical RequestKind = "historical"
	RequestOHLC       RequestKind = "ohlc"
	RequestKeyTest    RequestKind = "keyTest"
)

// Request is the descriptor handed to the feed by the CLI layer.
type Request struct {
	Kind             RequestKind
	Symbols          []string
	StartDate        time.Time // historical only; zero means default range
	EndDate          time.Time // historical only; zero means today
	Period           string    // ohlc only; default "1mo"
	Interval         string    // ohlc only; default "1d"
	ProviderOverride []string  // replaces the configured priority when set
}

// Response is the canonical outcome of a handled request, one entry per
// requested symbol. Period and Interval echo the normalized granularity for
// ohlc requests; Keys is populated for keyTest requests only.
type Response struct {
	Kind     RequestKind    `json:"kind"`
	Period   string         `json:"period,omitempty"`
	Interval string         `json:"interval,omitempty"`
	Results  []SymbolResult `json:"results,omitempty"`
	Keys     []KeyStatus    `json:"keys,omitempty"`
}

// Failed reports whether any per-symbol result or key check failed.
func (r *Response) Failed() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return true
		}
	}
	for _, k := range r.Keys {
		if !k.OK {
			return true
		}
	}
	return false
}
