package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/stockbar/quotebar/internal/models"
	"github.com/stockbar/quotebar/internal/symbols"
)

type quoteEnvelope struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol                     string  `json:"symbol"`
	Currency                   string  `json:"currency"`
	MarketState                string  `json:"marketState"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketChange        float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
	RegularMarketTime          int64   `json:"regularMarketTime"`
	PreMarketPrice             float64 `json:"preMarketPrice"`
	PostMarketPrice            float64 `json:"postMarketPrice"`
}

// quoteResults fetches the raw quote rows for one or more provider-form symbols.
func (c *Client) quoteResults(ctx context.Context, providerSymbols []string) ([]quoteResult, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(providerSymbols, ","))

	var envelope quoteEnvelope
	if err := c.get(ctx, "/v7/finance/quote", params, &envelope); err != nil {
		return nil, models.AsFetchError(ProviderName, err)
	}

	if envelope.QuoteResponse.Error != nil {
		return nil, classifyAPIError(envelope.QuoteResponse.Error.Code, envelope.QuoteResponse.Error.Description)
	}

	return envelope.QuoteResponse.Result, nil
}

// toQuote converts a raw quote row into the normalized model. Pence-quoted
// instruments are converted to major units here and nowhere else.
func (c *Client) toQuote(ref symbols.Ref, r quoteResult) *models.Quote {
	ts := r.RegularMarketTime
	if ts == 0 {
		ts = time.Now().Unix()
	}

	currency := r.Currency
	if ref.Pence {
		currency = "GBP"
	}

	q := &models.Quote{
		Symbol:             ref.Ticker,
		RegularMarketPrice: ref.DisplayPrice(r.RegularMarketPrice),
		PreviousClose:      ref.DisplayPrice(r.RegularMarketPreviousClose),
		PreMarketPrice:     ref.DisplayPrice(r.PreMarketPrice),
		PostMarketPrice:    ref.DisplayPrice(r.PostMarketPrice),
		Change:             ref.DisplayPrice(r.RegularMarketChange),
		ChangePct:          r.RegularMarketChangePercent,
		Volume:             r.RegularMarketVolume,
		Currency:           currency,
		MarketState:        r.MarketState,
		Timestamp:          ts,
		Source:             ProviderName,
	}
	q.Price = q.RegularMarketPrice
	return q
}

// FetchQuote implements interfaces.QuoteFetcher
func (c *Client) FetchQuote(ctx context.Context, ref symbols.Ref) (*models.Quote, error) {
	results, err := c.quoteResults(ctx, []string{ref.YahooSymbol()})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no quote for %s", ref.Ticker))
	}

	return c.toQuote(ref, results[0]), nil
}

// FetchQuoteBatch implements interfaces.BatchQuoteFetcher. The returned map is
// keyed by canonical ticker; symbols Yahoo did not resolve are simply absent.
func (c *Client) FetchQuoteBatch(ctx context.Context, refs []symbols.Ref) (map[string]*models.Quote, error) {
	if len(refs) == 0 {
		return map[string]*models.Quote{}, nil
	}

	providerSymbols := make([]string, 0, len(refs))
	byForm := make(map[string]symbols.Ref, len(refs))
	for _, ref := range refs {
		form := ref.YahooSymbol()
		providerSymbols = append(providerSymbols, form)
		byForm[strings.ToUpper(form)] = ref
	}

	results, err := c.quoteResults(ctx, providerSymbols)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no quotes for %s", strings.Join(providerSymbols, ",")))
	}

	quotes := make(map[string]*models.Quote, len(results))
	for _, r := range results {
		ref, ok := byForm[strings.ToUpper(r.Symbol)]
		if !ok {
			c.logger.Debug().Str("symbol", r.Symbol).Msg("Unrequested symbol in batch response")
			continue
		}
		quotes[ref.Ticker] = c.toQuote(ref, r)
	}

	return quotes, nil
}
