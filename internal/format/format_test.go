package format

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbar/quotebar/internal/models"
)

func TestRender_QuoteText(t *testing.T) {
	resp := &models.Response{
		Kind: models.RequestQuote,
		Results: []models.SymbolResult{
			{Symbol: "AAPL", Quote: &models.Quote{Symbol: "AAPL", Price: 231.5, PreviousClose: 229.5}},
			{Symbol: "NOPE", Err: models.NewFetchError(models.ErrorKindNoData, "yahoo", "no quote")},
		},
	}

	out, err := Render(resp, false)
	require.NoError(t, err)
	assert.Equal(t, "AAPL,231.5,229.5\nNOPE,FETCH_FAILED", out)
}

func TestRender_QuoteTextShortestForm(t *testing.T) {
	resp := &models.Response{
		Kind: models.RequestQuote,
		Results: []models.SymbolResult{
			{Symbol: "MSFT", Quote: &models.Quote{Symbol: "MSFT", Price: 100, PreviousClose: 99.875}},
		},
	}

	out, err := Render(resp, false)
	require.NoError(t, err)
	assert.Equal(t, "MSFT,100,99.875", out)
}

func TestRender_QuoteJSON(t *testing.T) {
	resp := &models.Response{
		Kind: models.RequestQuote,
		Results: []models.SymbolResult{
			{Symbol: "AAPL", Quote: &models.Quote{Symbol: "AAPL", Price: 231.5, PreviousClose: 229.5, Timestamp: 1766167200}},
		},
	}

	out, err := Render(resp, true)
	require.NoError(t, err)
	assert.False(t, strings.Contains(out, "\n"), "canonical JSON is a single compact line")

	var decoded models.Response
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, models.RequestQuote, decoded.Kind)
	require.Len(t, decoded.Results, 1)
	assert.Equal(t, 231.5, decoded.Results[0].Quote.Price)
}

func TestRender_HistoryText(t *testing.T) {
	resp := &models.Response{
		Kind: models.RequestHistorical,
		Results: []models.SymbolResult{
			{
				Symbol: "AAPL",
				History: []models.HistoricalPoint{
					{Symbol: "AAPL", Timestamp: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC).Unix(), Price: 100.5, PreviousClose: 100.25},
					{Symbol: "AAPL", Timestamp: time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC).Unix(), Price: 102, PreviousClose: 100.5},
				},
			},
		},
	}

	out, err := Render(resp, false)
	require.NoError(t, err)
	assert.Equal(t, "AAPL,2026-02-10,100.5,100.25\nAAPL,2026-02-11,102,100.5", out)
}

func TestRender_HistoryTextFailedSymbol(t *testing.T) {
	resp := &models.Response{
		Kind: models.RequestHistorical,
		Results: []models.SymbolResult{
			{Symbol: "NOPE", Err: models.NewFetchError(models.ErrorKindNoData, "yahoo", "no data")},
		},
	}

	out, err := Render(resp, false)
	require.NoError(t, err)
	assert.Equal(t, "NOPE,FETCH_FAILED", out)
}

func TestRender_OHLCEnvelope(t *testing.T) {
	resp := &models.Response{
		Kind:     models.RequestOHLC,
		Period:   "1d",
		Interval: "5m",
		Results: []models.SymbolResult{
			{
				Symbol: "aapl",
				Candles: []models.Candle{
					{
						Timestamp: time.Date(2026, 2, 11, 14, 30, 0, 0, time.UTC),
						Open:      230.1,
						High:      231.2,
						Low:       229.8,
						Close:     230.5,
						Volume:    1200,
					},
				},
			},
		},
	}

	out, err := Render(resp, false)
	require.NoError(t, err)
	assert.Equal(t, `{"success":true,"symbol":"AAPL","period":"1d","interval":"5m",`+
		`"data":[{"timestamp":"2026-02-11T14:30:00Z","open":230.1,"high":231.2,`+
		`"low":229.8,"close":230.5,"volume":1200}],"error":null}`, out)
}

func TestRender_OHLCEnvelopeFailure(t *testing.T) {
	resp := &models.Response{
		Kind:     models.RequestOHLC,
		Period:   "1mo",
		Interval: "1d",
		Results: []models.SymbolResult{
			{Symbol: "NOPE", Err: models.NewFetchError(models.ErrorKindNoData, "yahoo", "no chart data for NOPE")},
		},
	}

	out, err := Render(resp, false)
	require.NoError(t, err)
	assert.Equal(t, `{"success":false,"symbol":"NOPE","period":"1mo","interval":"1d",`+
		`"data":[],"error":"yahoo: no_data: no chart data for NOPE"}`, out)
}

func TestRender_OHLCIgnoresJSONFlag(t *testing.T) {
	resp := &models.Response{
		Kind:     models.RequestOHLC,
		Period:   "1mo",
		Interval: "1d",
		Results:  []models.SymbolResult{{Symbol: "AAPL", Candles: []models.Candle{}}},
	}

	out, err := Render(resp, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `{"success":`), "ohlc always renders the envelope")
}

func TestRender_OHLCOneEnvelopePerSymbol(t *testing.T) {
	resp := &models.Response{
		Kind:     models.RequestOHLC,
		Period:   "1mo",
		Interval: "1d",
		Results: []models.SymbolResult{
			{Symbol: "AAPL", Candles: []models.Candle{}},
			{Symbol: "MSFT", Candles: []models.Candle{}},
		},
	}

	out, err := Render(resp, false)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"symbol":"AAPL"`)
	assert.Contains(t, lines[1], `"symbol":"MSFT"`)
}

func TestRender_KeyText(t *testing.T) {
	resp := &models.Response{
		Kind: models.RequestKeyTest,
		Keys: []models.KeyStatus{
			{Provider: "yahoo", OK: true, Detail: "no key required"},
			{Provider: "finnhub", OK: true},
			{Provider: "alphavantage", OK: false, Detail: "alphavantage: auth_invalid: status 401"},
		},
	}

	out, err := Render(resp, false)
	require.NoError(t, err)
	assert.Equal(t, "yahoo: ok (no key required)\nfinnhub: ok\n"+
		"alphavantage: FAILED (alphavantage: auth_invalid: status 401)", out)
}
