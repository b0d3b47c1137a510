package interfaces

import (
	"context"
	"time"

	"github.com/stockbar/quotebar/internal/models"
)

// Feed is the fallback orchestrator: it resolves each request against the
// priority-ordered provider list and returns canonical results.
type Feed interface {
	// GetQuote retrieves a real-time quote, consulting the cache first.
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)

	// GetQuoteBatch resolves quotes for several symbols. Partial success
	// is reported per symbol, never collapsed into a single failure.
	GetQuoteBatch(ctx context.Context, syms []string) []models.SymbolResult

	// GetHistory retrieves a daily close series for a date range.
	GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.HistoricalPoint, error)

	// GetCandles retrieves OHLCV candles for a period/interval pair.
	GetCandles(ctx context.Context, symbol, period, interval string) ([]models.Candle, error)

	// TestKeys verifies configured provider credentials.
	TestKeys(ctx context.Context) []models.KeyStatus

	// Handle validates a request descriptor and dispatches it. The returned
	// error is non-nil only for invalid requests; per-symbol provider
	// failures are itemized inside the response.
	Handle(ctx context.Context, req models.Request) (*models.Response, error)
}
