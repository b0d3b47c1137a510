package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stockbar/quotebar/internal/models"
	"github.com/stockbar/quotebar/internal/symbols"
)

const quoteFixture = `{"quoteResponse":{"result":[{"symbol":"AAPL","currency":"USD","marketState":"REGULAR","regularMarketPrice":231.59,"regularMarketPreviousClose":229.87,"regularMarketChange":1.72,"regularMarketChangePercent":0.748,"regularMarketVolume":41250000,"regularMarketTime":1766167200}],"error":null}}`

const penceQuoteFixture = `{"quoteResponse":{"result":[{"symbol":"BARC.L","currency":"GBp","marketState":"CLOSED","regularMarketPrice":215.5,"regularMarketPreviousClose":213.0,"regularMarketChange":2.5,"regularMarketChangePercent":1.17,"regularMarketTime":1766167200}],"error":null}}`

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(
		WithBaseURL(server.URL),
		WithRateLimit(time.Millisecond),
	)
	return client, server
}

func TestClient_FetchQuote_ParsesResponse(t *testing.T) {
	var gotPath, gotUA string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(quoteFixture))
	})
	defer server.Close()

	quote, err := client.FetchQuote(context.Background(), symbols.Normalize("AAPL"))
	if err != nil {
		t.Fatalf("FetchQuote failed: %v", err)
	}

	if gotPath != "/v7/finance/quote" {
		t.Errorf("expected quote endpoint, got %s", gotPath)
	}
	if gotUA != userAgent {
		t.Errorf("expected spoofed user agent, got %q", gotUA)
	}
	if quote.Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %s", quote.Symbol)
	}
	if quote.Price != 231.59 {
		t.Errorf("expected price 231.59, got %v", quote.Price)
	}
	if quote.PreviousClose != 229.87 {
		t.Errorf("expected previous close 229.87, got %v", quote.PreviousClose)
	}
	if quote.Volume != 41250000 {
		t.Errorf("expected volume 41250000, got %d", quote.Volume)
	}
	if quote.Timestamp != 1766167200 {
		t.Errorf("expected timestamp 1766167200, got %d", quote.Timestamp)
	}
	if quote.Source != ProviderName {
		t.Errorf("expected source yahoo, got %s", quote.Source)
	}
}

func TestClient_FetchQuote_ConvertsPence(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(penceQuoteFixture))
	})
	defer server.Close()

	quote, err := client.FetchQuote(context.Background(), symbols.Normalize("BARC.L"))
	if err != nil {
		t.Fatalf("FetchQuote failed: %v", err)
	}

	if quote.Price != 2.155 {
		t.Errorf("expected price 2.155 after pence conversion, got %v", quote.Price)
	}
	if quote.PreviousClose != 2.13 {
		t.Errorf("expected previous close 2.13, got %v", quote.PreviousClose)
	}
	if quote.Change != 0.025 {
		t.Errorf("expected change 0.025, got %v", quote.Change)
	}
	if quote.Currency != "GBP" {
		t.Errorf("expected currency GBP after conversion, got %s", quote.Currency)
	}
}

func TestClient_FetchQuoteBatch(t *testing.T) {
	var gotSymbols string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotSymbols = r.URL.Query().Get("symbols")
		// MSFT is requested but missing from the response
		w.Write([]byte(quoteFixture))
	})
	defer server.Close()

	refs := []symbols.Ref{symbols.Normalize("AAPL"), symbols.Normalize("MSFT")}
	quotes, err := client.FetchQuoteBatch(context.Background(), refs)
	if err != nil {
		t.Fatalf("FetchQuoteBatch failed: %v", err)
	}

	if gotSymbols != "AAPL,MSFT" {
		t.Errorf("expected symbols AAPL,MSFT, got %s", gotSymbols)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	if quotes["AAPL"] == nil {
		t.Fatal("expected AAPL in batch result")
	}
	if _, ok := quotes["MSFT"]; ok {
		t.Error("unresolved MSFT should be absent from batch result")
	}
}

func TestClient_FetchQuote_NoData(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[],"error":null}}`))
	})
	defer server.Close()

	_, err := client.FetchQuote(context.Background(), symbols.Normalize("NOPE"))
	if err == nil {
		t.Fatal("expected error for empty result")
	}

	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fe.Kind != models.ErrorKindNoData {
		t.Errorf("expected no_data, got %s", fe.Kind)
	}
}

func TestClient_RateLimited(t *testing.T) {
	requests := 0
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	_, err := client.FetchQuote(context.Background(), symbols.Normalize("AAPL"))
	if err == nil {
		t.Fatal("expected error for 429")
	}

	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fe.Kind != models.ErrorKindRateLimited {
		t.Errorf("expected rate_limited, got %s", fe.Kind)
	}
	if fe.RetryAfter != 30*time.Second {
		t.Errorf("expected retry after 30s, got %v", fe.RetryAfter)
	}
	if requests != 1 {
		t.Errorf("429 must not be retried, got %d requests", requests)
	}
}

func TestClient_AuthError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer server.Close()

	_, err := client.FetchQuote(context.Background(), symbols.Normalize("AAPL"))

	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fe.Kind != models.ErrorKindAuthInvalid {
		t.Errorf("expected auth_invalid, got %s", fe.Kind)
	}
}

func TestClient_RetriesServerError(t *testing.T) {
	requests := 0
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := client.FetchQuote(context.Background(), symbols.Normalize("AAPL"))
	if err == nil {
		t.Fatal("expected error for 500")
	}

	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fe.Kind != models.ErrorKindUnknown {
		t.Errorf("expected unknown, got %s", fe.Kind)
	}
	if requests != 2 {
		t.Errorf("expected 2 attempts for 500, got %d", requests)
	}
}

func TestClient_Timeout(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithRateLimit(time.Millisecond),
		WithTimeout(100*time.Millisecond),
	)

	_, err := client.FetchQuote(context.Background(), symbols.Normalize("AAPL"))

	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fe.Kind != models.ErrorKindTimeout {
		t.Errorf("expected timeout, got %s", fe.Kind)
	}
	if requests != 1 {
		t.Errorf("timeout must not be retried, got %d requests", requests)
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})
	defer server.Close()

	_, err := client.FetchQuote(context.Background(), symbols.Normalize("AAPL"))

	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fe.Kind != models.ErrorKindUnknown {
		t.Errorf("expected unknown, got %s", fe.Kind)
	}
}

const chartFixture = `{"chart":{"result":[{"meta":{"currency":"USD","symbol":"AAPL"},"timestamp":[1765980000,1766066400,1766152800],"indicators":{"quote":[{"open":[100.0,null,104.0],"high":[102.0,null,106.0],"low":[99.0,null,103.5],"close":[101.5,null,105.25],"volume":[1000,null,1200]}]}}],"error":null}}`

func TestClient_FetchHistory(t *testing.T) {
	var gotQuery string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartFixture))
	})
	defer server.Close()

	start := time.Unix(1765900000, 0)
	end := time.Unix(1766200000, 0)
	points, err := client.FetchHistory(context.Background(), symbols.Normalize("AAPL"), start, end)
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}

	if gotQuery == "" {
		t.Fatal("expected query parameters")
	}

	// Null close bar is dropped
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Timestamp != 1765980000 || points[1].Timestamp != 1766152800 {
		t.Errorf("unexpected timestamps: %d, %d", points[0].Timestamp, points[1].Timestamp)
	}
	if points[0].Price != 101.5 {
		t.Errorf("expected first price 101.5, got %v", points[0].Price)
	}
	// First point falls back to its own open, later points chain
	if points[0].PreviousClose != 100.0 {
		t.Errorf("expected first previous close 100.0, got %v", points[0].PreviousClose)
	}
	if points[1].PreviousClose != 101.5 {
		t.Errorf("expected chained previous close 101.5, got %v", points[1].PreviousClose)
	}
}

func TestClient_FetchHistory_NotFound(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})
	defer server.Close()

	_, err := client.FetchHistory(context.Background(), symbols.Normalize("NOPE"), time.Now().AddDate(0, -1, 0), time.Now())

	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fe.Kind != models.ErrorKindNoData {
		t.Errorf("expected no_data, got %s", fe.Kind)
	}
}

func TestClient_FetchCandles(t *testing.T) {
	var gotRange, gotInterval string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.URL.Query().Get("range")
		gotInterval = r.URL.Query().Get("interval")
		w.Write([]byte(chartFixture))
	})
	defer server.Close()

	candles, err := client.FetchCandles(context.Background(), symbols.Normalize("AAPL"), "1d", "5m")
	if err != nil {
		t.Fatalf("FetchCandles failed: %v", err)
	}

	if gotRange != "1d" || gotInterval != "5m" {
		t.Errorf("expected range=1d interval=5m, got range=%s interval=%s", gotRange, gotInterval)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if !candles[0].Timestamp.Equal(time.Unix(1765980000, 0)) {
		t.Errorf("unexpected first candle time: %v", candles[0].Timestamp)
	}
	if candles[0].Open != 100.0 || candles[0].Close != 101.5 {
		t.Errorf("unexpected first candle: %+v", candles[0])
	}
	if candles[1].Volume != 1200 {
		t.Errorf("expected volume 1200, got %d", candles[1].Volume)
	}
}
