// Package format renders canonical feed responses into the shapes the
// desktop client consumes: line-oriented text for the menu bar, compact
// JSON otherwise.
package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stockbar/quotebar/internal/models"
)

// FailedMarker is the sentinel the menu bar expects for an unresolved symbol.
const FailedMarker = "FETCH_FAILED"

// Render returns the stdout payload for a handled response. OHLC responses
// always render as chart envelopes regardless of asJSON; the charting client
// parses nothing else.
func Render(resp *models.Response, asJSON bool) (string, error) {
	if resp.Kind == models.RequestOHLC {
		return ohlcEnvelopes(resp)
	}
	if asJSON {
		return canonicalJSON(resp)
	}

	switch resp.Kind {
	case models.RequestQuote:
		return quoteLines(resp.Results), nil
	case models.RequestHistorical:
		return historyLines(resp.Results), nil
	case models.RequestKeyTest:
		return keyLines(resp.Keys), nil
	default:
		return canonicalJSON(resp)
	}
}

// ftoa renders a price in the shortest decimal form that round-trips,
// matching what the menu bar already parses.
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quoteLines(results []models.SymbolResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if !r.OK() || r.Quote == nil {
			lines = append(lines, r.Symbol+","+FailedMarker)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s,%s,%s",
			r.Symbol, ftoa(r.Quote.Price), ftoa(r.Quote.PreviousClose)))
	}
	return strings.Join(lines, "\n")
}

func historyLines(results []models.SymbolResult) string {
	var lines []string
	for _, r := range results {
		if !r.OK() || len(r.History) == 0 {
			lines = append(lines, r.Symbol+","+FailedMarker)
			continue
		}
		for _, p := range r.History {
			day := time.Unix(p.Timestamp, 0).UTC().Format("2006-01-02")
			lines = append(lines, fmt.Sprintf("%s,%s,%s,%s",
				r.Symbol, day, ftoa(p.Price), ftoa(p.PreviousClose)))
		}
	}
	return strings.Join(lines, "\n")
}

func keyLines(keys []models.KeyStatus) string {
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		switch {
		case k.OK && k.Detail != "":
			lines = append(lines, fmt.Sprintf("%s: ok (%s)", k.Provider, k.Detail))
		case k.OK:
			lines = append(lines, k.Provider+": ok")
		default:
			lines = append(lines, fmt.Sprintf("%s: FAILED (%s)", k.Provider, k.Detail))
		}
	}
	return strings.Join(lines, "\n")
}

// ohlcEnvelope is the chart payload contract: data is always a list and
// error is always present, null on success.
type ohlcEnvelope struct {
	Success  bool            `json:"success"`
	Symbol   string          `json:"symbol"`
	Period   string          `json:"period"`
	Interval string          `json:"interval"`
	Data     []models.Candle `json:"data"`
	Error    *string         `json:"error"`
}

// ohlcEnvelopes emits one envelope per requested symbol, one per line.
func ohlcEnvelopes(resp *models.Response) (string, error) {
	lines := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		env := ohlcEnvelope{
			Success:  r.OK(),
			Symbol:   strings.ToUpper(r.Symbol),
			Period:   resp.Period,
			Interval: resp.Interval,
			Data:     r.Candles,
		}
		if env.Data == nil {
			env.Data = []models.Candle{}
		}
		if r.Err != nil {
			msg := r.Err.Error()
			env.Error = &msg
		}
		data, err := json.Marshal(env)
		if err != nil {
			return "", fmt.Errorf("failed to marshal ohlc envelope: %w", err)
		}
		lines = append(lines, string(data))
	}
	return strings.Join(lines, "\n"), nil
}

func canonicalJSON(resp *models.Response) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}
	return string(data), nil
}
