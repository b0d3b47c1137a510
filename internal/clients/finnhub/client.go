// Package finnhub provides a client for the Finnhub quote API
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/stockbar/quotebar/internal/common"
	"github.com/stockbar/quotebar/internal/interfaces"
	"github.com/stockbar/quotebar/internal/models"
	"github.com/stockbar/quotebar/internal/symbols"
)

const (
	ProviderName     = "finnhub"
	DefaultBaseURL   = "https://finnhub.io"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 500 * time.Millisecond
)

// Client talks to the Finnhub REST API. Quotes only; the free tier has no
// usable candle endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the minimum spacing between requests
func WithRateLimit(minInterval time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Finnhub client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(DefaultRateLimit), 1),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name implements interfaces.Provider
func (c *Client) Name() string {
	return ProviderName
}

// get performs a rate-limited GET request with the API token attached
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)

	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Dur("elapsed", elapsed).Msg("Finnhub request failed")
		return models.ClassifyTransportError(ProviderName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ClassifyTransportError(ProviderName, err)
	}

	c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Finnhub request")

	if resp.StatusCode != http.StatusOK {
		return models.ClassifyHTTPResponse(ProviderName, resp, body)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return models.NewFetchError(models.ErrorKindUnknown, ProviderName,
			fmt.Sprintf("malformed response: %v", err))
	}

	return nil
}

// quoteResponse is Finnhub's /quote shape. Unknown symbols come back as a
// 200 with every field zeroed.
type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePct     float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// FetchQuote implements interfaces.QuoteFetcher
func (c *Client) FetchQuote(ctx context.Context, ref symbols.Ref) (*models.Quote, error) {
	params := url.Values{}
	params.Set("symbol", ref.FinnhubSymbol())

	var r quoteResponse
	if err := c.get(ctx, "/api/v1/quote", params, &r); err != nil {
		return nil, models.AsFetchError(ProviderName, err)
	}

	if r.Current == 0 && r.Timestamp == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no quote for %s", ref.Ticker))
	}

	ts := r.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}

	q := &models.Quote{
		Symbol:             ref.Ticker,
		RegularMarketPrice: ref.DisplayPrice(r.Current),
		PreviousClose:      ref.DisplayPrice(r.PreviousClose),
		Change:             ref.DisplayPrice(r.Change),
		ChangePct:          r.ChangePct,
		Timestamp:          ts,
		Source:             ProviderName,
	}
	q.Price = q.RegularMarketPrice
	return q, nil
}

// CheckKey implements interfaces.KeyChecker with one cheap canary quote
func (c *Client) CheckKey(ctx context.Context) error {
	var r quoteResponse
	params := url.Values{}
	params.Set("symbol", "AAPL")
	return c.get(ctx, "/api/v1/quote", params, &r)
}

// Ensure Client implements the provider capabilities
var (
	_ interfaces.QuoteFetcher = (*Client)(nil)
	_ interfaces.KeyChecker   = (*Client)(nil)
)
