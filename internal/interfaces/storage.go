package interfaces

import "github.com/stockbar/quotebar/internal/models"

// QuoteCache is the TTL-bounded store of the last successful quote per
// symbol. Only real-time quotes are cached; historical series are
// date-range-specific and fetched fresh every time.
type QuoteCache interface {
	// Get returns the cached quote for a symbol, or false when the entry
	// is absent or older than the TTL.
	Get(symbol string) (*models.Quote, bool)

	// Put stores a quote and persists it immediately.
	Put(symbol string, quote *models.Quote) error
}
