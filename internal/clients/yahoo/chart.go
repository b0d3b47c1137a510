package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/stockbar/quotebar/internal/models"
	"github.com/stockbar/quotebar/internal/symbols"
)

type chartEnvelope struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

// chartResult carries the bar arrays. Individual slots are null when the
// exchange reported no trade for that bar, hence the pointer elements.
type chartResult struct {
	Meta struct {
		Currency string `json:"currency"`
		Symbol   string `json:"symbol"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// chart fetches bars for one symbol with the given query parameters.
func (c *Client) chart(ctx context.Context, ref symbols.Ref, params url.Values) (*chartResult, error) {
	path := "/v8/finance/chart/" + url.PathEscape(ref.YahooSymbol())

	var envelope chartEnvelope
	if err := c.get(ctx, path, params, &envelope); err != nil {
		return nil, models.AsFetchError(ProviderName, err)
	}

	if envelope.Chart.Error != nil {
		return nil, classifyAPIError(envelope.Chart.Error.Code, envelope.Chart.Error.Description)
	}
	if len(envelope.Chart.Result) == 0 || len(envelope.Chart.Result[0].Timestamp) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no bars for %s", ref.Ticker))
	}

	return &envelope.Chart.Result[0], nil
}

// FetchHistory implements interfaces.HistoryFetcher. Points come back in
// ascending time order with previous_close chained from the prior point.
func (c *Client) FetchHistory(ctx context.Context, ref symbols.Ref, start, end time.Time) ([]models.HistoricalPoint, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.Unix()))
	params.Set("interval", "1d")
	params.Set("includePrePost", "false")

	result, err := c.chart(ctx, ref, params)
	if err != nil {
		return nil, err
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no bars for %s", ref.Ticker))
	}
	bars := result.Indicators.Quote[0]

	points := make([]models.HistoricalPoint, 0, len(result.Timestamp))
	opens := make([]float64, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(bars.Close) || bars.Close[i] == nil {
			continue
		}
		var open float64
		if i < len(bars.Open) && bars.Open[i] != nil {
			open = ref.DisplayPrice(*bars.Open[i])
		}
		opens = append(opens, open)
		points = append(points, models.HistoricalPoint{
			Symbol:    ref.Ticker,
			Timestamp: ts,
			Price:     ref.DisplayPrice(*bars.Close[i]),
		})
	}
	if len(points) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no bars for %s", ref.Ticker))
	}

	if points[0].Timestamp > points[len(points)-1].Timestamp {
		for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
			points[i], points[j] = points[j], points[i]
			opens[i], opens[j] = opens[j], opens[i]
		}
	}

	for i := range points {
		if i == 0 {
			points[0].PreviousClose = opens[0]
			if points[0].PreviousClose == 0 {
				points[0].PreviousClose = points[0].Price
			}
			continue
		}
		points[i].PreviousClose = points[i-1].Price
	}

	return points, nil
}

// FetchCandles implements interfaces.CandleFetcher. Bars with a null
// open/high/low/close slot are dropped rather than zero-filled.
func (c *Client) FetchCandles(ctx context.Context, ref symbols.Ref, period, interval string) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("range", period)
	params.Set("interval", interval)
	params.Set("includePrePost", "false")

	result, err := c.chart(ctx, ref, params)
	if err != nil {
		return nil, err
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no bars for %s", ref.Ticker))
	}
	bars := result.Indicators.Quote[0]

	candles := make([]models.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(bars.Open) || i >= len(bars.High) || i >= len(bars.Low) || i >= len(bars.Close) {
			break
		}
		if bars.Open[i] == nil || bars.High[i] == nil || bars.Low[i] == nil || bars.Close[i] == nil {
			continue
		}
		var volume int64
		if i < len(bars.Volume) && bars.Volume[i] != nil {
			volume = *bars.Volume[i]
		}
		candles = append(candles, models.Candle{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      ref.DisplayPrice(*bars.Open[i]),
			High:      ref.DisplayPrice(*bars.High[i]),
			Low:       ref.DisplayPrice(*bars.Low[i]),
			Close:     ref.DisplayPrice(*bars.Close[i]),
			Volume:    volume,
		})
	}
	if len(candles) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no bars for %s", ref.Ticker))
	}

	return candles, nil
}
