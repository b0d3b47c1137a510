// Package stooq provides a client for the Stooq CSV download endpoint
package stooq

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"golang.org/x/time/rate"

	"github.com/stockbar/quotebar/internal/common"
	"github.com/stockbar/quotebar/internal/interfaces"
	"github.com/stockbar/quotebar/internal/models"
	"github.com/stockbar/quotebar/internal/symbols"
)

const (
	ProviderName     = "stooq"
	DefaultBaseURL   = "https://stooq.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = time.Second
)

// Client downloads daily bars from Stooq's CSV endpoint. History only, no
// API key. Stooq signals problems in the body text, not the status code.
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

// NewClient creates a new Stooq client
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

// download performs a rate-limited GET and returns the raw CSV body, with a
// short retry on transient failures only.
func (c *Client) download(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path + "?" + params.Encode()

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}

			start := time.Now()
			resp, err := c.httpClient.Do(req)
			elapsed := time.Since(start)
			if err != nil {
				fe := models.ClassifyTransportError(ProviderName, err)
				c.logger.Warn().Err(err).Str("path", path).Dur("elapsed", elapsed).Msg("Stooq request failed")
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

			c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Stooq request")

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
		return nil, err
	}

	return body, nil
}

// FetchHistory implements interfaces.HistoryFetcher
func (c *Client) FetchHistory(ctx context.Context, ref symbols.Ref, start, end time.Time) ([]models.HistoricalPoint, error) {
	params := url.Values{}
	params.Set("s", ref.StooqSymbol())
	params.Set("d1", start.Format("20060102"))
	params.Set("d2", end.Format("20060102"))
	params.Set("i", "d")

	body, err := c.download(ctx, "/q/d/l/", params)
	if err != nil {
		return nil, models.AsFetchError(ProviderName, err)
	}

	text := strings.ToLower(strings.TrimSpace(string(body)))
	if strings.HasPrefix(text, "no data") {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no history for %s", ref.Ticker))
	}
	if strings.Contains(text, "exceeded the daily hits limit") {
		return nil, models.NewFetchError(models.ErrorKindRateLimited, ProviderName,
			"daily hits limit exceeded")
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, models.NewFetchError(models.ErrorKindUnknown, ProviderName,
			fmt.Sprintf("malformed csv: %v", err))
	}

	points := make([]models.HistoricalPoint, 0, len(records))
	opens := make([]float64, 0, len(records))
	for _, rec := range records {
		// Date,Open,High,Low,Close[,Volume]
		if len(rec) < 5 || rec[0] == "Date" {
			continue
		}
		day, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}
		closePrice, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			continue
		}
		open := 0.0
		if v, err := strconv.ParseFloat(rec[1], 64); err == nil {
			open = ref.DisplayPrice(v)
		}
		points = append(points, models.HistoricalPoint{
			Symbol:    ref.Ticker,
			Timestamp: day.Unix(),
			Price:     ref.DisplayPrice(closePrice),
		})
		opens = append(opens, open)
	}
	if len(points) == 0 {
		return nil, models.NewFetchError(models.ErrorKindNoData, ProviderName,
			fmt.Sprintf("no history for %s", ref.Ticker))
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

// Ensure Client implements the provider capabilities
var _ interfaces.HistoryFetcher = (*Client)(nil)
