// Package interfaces defines provider and service contracts for quotebar
package interfaces

import (
	"context"
	"time"

	"github.com/stockbar/quotebar/internal/models"
	"github.com/stockbar/quotebar/internal/symbols"
)

// Provider identifies an upstream market-data source. Concrete clients
// implement Provider plus whichever fetch capabilities the upstream
// supports; the orchestrator discovers capabilities by type assertion and
// silently skips providers that lack the requested one.
type Provider interface {
	Name() string
}

// QuoteFetcher retrieves a real-time quote for one symbol.
type QuoteFetcher interface {
	Provider
	FetchQuote(ctx context.Context, ref symbols.Ref) (*models.Quote, error)
}

// BatchQuoteFetcher retrieves quotes for several symbols in a single
// upstream call. The result map is keyed by canonical ticker; symbols the
// provider did not return are simply absent.
type BatchQuoteFetcher interface {
	Provider
	FetchQuoteBatch(ctx context.Context, refs []symbols.Ref) (map[string]*models.Quote, error)
}

// HistoryFetcher retrieves a daily close series for a date range. Points
// are returned in strictly ascending timestamp order.
type HistoryFetcher interface {
	Provider
	FetchHistory(ctx context.Context, ref symbols.Ref, start, end time.Time) ([]models.HistoricalPoint, error)
}

// CandleFetcher retrieves OHLCV candles for a period/interval pair.
type CandleFetcher interface {
	Provider
	FetchCandles(ctx context.Context, ref symbols.Ref, period, interval string) ([]models.Candle, error)
}

// KeyChecker verifies that a provider's configured credentials are usable,
// typically with one cheap canary call.
type KeyChecker interface {
	Provider
	CheckKey(ctx context.Context) error
}
