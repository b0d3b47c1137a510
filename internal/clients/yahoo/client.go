// Package yahoo provides a client for the Yahoo Finance API
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	retry "github.com/avast/retry-go"
	"golang.org/x/time/rate"

	"github.com/stockbar/quotebar/internal/common"
	"github.com/stockbar/quotebar/internal/interfaces"
	"github.com/stockbar/quotebar/internal/models"
)

const (
	ProviderName     = "yahoo"
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 500 * time.Millisecond // minimum spacing between calls

	// Yahoo rejects the default Go user agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Client talks to the public Yahoo Finance quote and chart endpoints.
// No API key is required.
type Client struct {
	baseURL    string
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

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
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

// get performs a rate-limited GET request with a short retry on transient
// failures. Rate-limit, auth, and timeout failures are never retried here;
// they must reach the orchestrator with their classification intact.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "application/json")

			start := time.Now()
			resp, err := c.httpClient.Do(req)
			elapsed := time.Since(start)
			if err != nil {
				fe := models.ClassifyTransportError(ProviderName, err)
				c.logger.Warn().Err(err).Str("path", path).Dur("elapsed", elapsed).Msg("Yahoo request failed")
				if fe.Kind == models.ErrorKindTimeout {
					return retry.Unrecoverable(fe)
				}
				return fe
			}
			defer resp.Body.Close()

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return models.ClassifyTransportError(ProviderName, err)
			}

			c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Yahoo request")

			if resp.StatusCode == http.StatusOK {
				return nil
			}
			fe := models.ClassifyHTTPResponse(ProviderName, resp, body)
			if resp.StatusCode >= 500 {
				return fe
			}
			return retry.Unrecoverable(fe)
		},
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return models.NewFetchError(models.ErrorKindUnknown, ProviderName,
			fmt.Sprintf("malformed response: %v", err))
	}

	return nil
}

// classifyAPIError maps the error object Yahoo embeds in 200 responses.
func classifyAPIError(code, description string) *models.FetchError {
	if code == "Not Found" {
		return models.NewFetchError(models.ErrorKindNoData, ProviderName, description)
	}
	return models.NewFetchError(models.ErrorKindUnknown, ProviderName,
		fmt.Sprintf("%s: %s", code, description))
}

// apiError is the error object embedded in Yahoo response envelopes.
type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Ensure Client implements the provider capabilities
var (
	_ interfaces.QuoteFetcher      = (*Client)(nil)
	_ interfaces.BatchQuoteFetcher = (*Client)(nil)
	_ interfaces.HistoryFetcher    = (*Client)(nil)
	_ interfaces.CandleFetcher     = (*Client)(nil)
)
