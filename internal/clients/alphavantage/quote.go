package alphavantage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/stockbar/quotebar/internal/models"
	"github.com/stockbar/quotebar/internal/symbols"
)

type globalQuote struct {
	Symbol        string      `json:"01. symbol"`
	Open          flexFloat64 `json:"02. open"`
	High          flexFloat64 `json:"03. high"`
	Low           flexFloat64 `json:"04. low"`
	Price         flexFloat64 `json:"05. price"`
	Volume        flexInt64   `json:"06. volume"`
	LatestDay     string      `json:"07. latest trading day"`
	PreviousClose flexFloat64 `json:"08. previous close"`
	Change        flexFloat64 `json:"09. change"`
	ChangePct     string      `json:"10. change percent"`
}

type globalQuoteResponse struct {
	envelope
	GlobalQuote globalQuote `json:"Global Quote"`
}

// FetchQuote implements interfaces.QuoteFetcher
func (c *Client) FetchQuote(ctx context.Context, ref symbols.Ref) (*models.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", ref.AlphaVantageSymbol())

	var r globalQuoteResponse
	if err := c.query(ctx, params, &r); err != nil {
		return nil, models.AsFetchError(ProviderName, err)
	}
	if fe := r.envelope.classify(); fe != nil {
		return nil, fe
	}

	// Unknown symbols come back as a 200 with an empty Global Quote object
	if r.GlobalQuote.Symbol == "" && r.GlobalQuote.Price == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no quote for %s", ref.Ticker))
	}

	ts := time.Now().Unix()
	if day, err := time.Parse("2006-01-02", r.GlobalQuote.LatestDay); err == nil {
		ts = day.Unix()
	}

	q := &models.Quote{
		Symbol:             ref.Ticker,
		RegularMarketPrice: ref.DisplayPrice(float64(r.GlobalQuote.Price)),
		PreviousClose:      ref.DisplayPrice(float64(r.GlobalQuote.PreviousClose)),
		Change:             ref.DisplayPrice(float64(r.GlobalQuote.Change)),
		ChangePct:          parseChangePercent(r.GlobalQuote.ChangePct),
		Volume:             int64(r.GlobalQuote.Volume),
		Timestamp:          ts,
		Source:             ProviderName,
	}
	q.Price = q.RegularMarketPrice
	return q, nil
}

// CheckKey implements interfaces.KeyChecker with one cheap canary quote
func (c *Client) CheckKey(ctx context.Context) error {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", "IBM")

	var r globalQuoteResponse
	if err := c.query(ctx, params, &r); err != nil {
		return err
	}
	if fe := r.envelope.classify(); fe != nil {
		return fe
	}
	return nil
}
