package alphavantage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/stockbar/quotebar/internal/models"
	"github.com/stockbar/quotebar/internal/symbols"
)

type dailyBar struct {
	Open   flexFloat64 `json:"1. open"`
	High   flexFloat64 `json:"2. high"`
	Low    flexFloat64 `json:"3. low"`
	Close  flexFloat64 `json:"4. close"`
	Volume flexInt64   `json:"5. volume"`
}

type dailyResponse struct {
	envelope
	Series map[string]dailyBar `json:"Time Series (Daily)"`
}

// compact covers roughly the last hundred trading days
const compactWindow = 95 * 24 * time.Hour

// FetchHistory implements interfaces.HistoryFetcher. Alpha Vantage returns
// the whole series keyed by date, so previous_close is chained across the
// full series before the range filter is applied.
func (c *Client) FetchHistory(ctx context.Context, ref symbols.Ref, start, end time.Time) ([]models.HistoricalPoint, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", ref.AlphaVantageSymbol())
	if time.Since(start) > compactWindow {
		params.Set("outputsize", "full")
	}

	var r dailyResponse
	if err := c.query(ctx, params, &r); err != nil {
		return nil, models.AsFetchError(ProviderName, err)
	}
	if fe := r.envelope.classify(); fe != nil {
		return nil, fe
	}
	if len(r.Series) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no history for %s", ref.Ticker))
	}

	dates := make([]string, 0, len(r.Series))
	for d := range r.Series {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	startDay := start.UTC().Format("2006-01-02")
	endDay := end.UTC().Format("2006-01-02")

	points := make([]models.HistoricalPoint, 0, len(dates))
	prevClose := 0.0
	for _, d := range dates {
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		bar := r.Series[d]
		price := ref.DisplayPrice(float64(bar.Close))

		pc := prevClose
		if pc == 0 {
			pc = ref.DisplayPrice(float64(bar.Open))
		}
		if pc == 0 {
			pc = price
		}
		prevClose = price

		if d < startDay || d > endDay {
			continue
		}
		points = append(points, models.HistoricalPoint{
			Symbol:        ref.Ticker,
			Timestamp:     day.Unix(),
			Price:         price,
			PreviousClose: pc,
		})
	}
	if len(points) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no history for %s between %s and %s", ref.Ticker, startDay, endDay))
	}

	return points, nil
}
