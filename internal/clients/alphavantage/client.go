// Package alphavantage provides a client for the Alpha Vantage API
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stockbar/quotebar/internal/common"
	"github.com/stockbar/quotebar/internal/interfaces"
	"github.com/stockbar/quotebar/internal/models"
)

// flexFloat64 handles Alpha Vantage's string-encoded numbers ("231.5900")
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var num int64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexInt64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexInt64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into int64", string(data))
}

const (
	ProviderName     = "alphavantage"
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = time.Second // free tier allows 5 requests per minute
)

// Client talks to the Alpha Vantage REST API. Quotes and daily history; the
// intraday endpoints are premium-only.
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

// NewClient creates a new Alpha Vantage client
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

// query performs a rate-limited GET against /query with the API key attached
func (c *Client) query(ctx context.Context, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn().Err(err).Str("function", params.Get("function")).Dur("elapsed", elapsed).Msg("Alpha Vantage request failed")
		return models.ClassifyTransportError(ProviderName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ClassifyTransportError(ProviderName, err)
	}

	c.logger.Debug().Str("function", params.Get("function")).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Alpha Vantage request")

	if resp.StatusCode != http.StatusOK {
		return models.ClassifyHTTPResponse(ProviderName, resp, body)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return models.NewFetchError(models.ErrorKindUnknown, ProviderName,
			fmt.Sprintf("malformed response: %v", err))
	}

	return nil
}

// envelope carries the notice fields Alpha Vantage embeds in 200 responses.
// Quota exhaustion arrives as a polite Note, not a 429.
type envelope struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (e envelope) classify() *models.FetchError {
	if e.Note != "" {
		return models.NewFetchError(models.ErrorKindRateLimited, ProviderName, e.Note)
	}
	if e.Information != "" {
		return models.NewFetchError(models.ErrorKindRateLimited, ProviderName, e.Information)
	}
	if e.ErrorMessage != "" {
		if strings.Contains(strings.ToLower(e.ErrorMessage), "apikey") {
			return models.NewFetchError(models.ErrorKindAuthInvalid, ProviderName, e.ErrorMessage)
		}
		return models.NewFetchError(models.ErrorKindNoData, ProviderName, e.ErrorMessage)
	}
	return nil
}

func parseChangePercent(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Ensure Client implements the provider capabilities
var (
	_ interfaces.QuoteFetcher   = (*Client)(nil)
	_ interfaces.HistoryFetcher = (*Client)(nil)
	_ interfaces.KeyChecker     = (*Client)(nil)
)
