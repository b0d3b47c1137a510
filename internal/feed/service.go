// Package feed implements the fallback orchestrator: each request walks the
// priority-ordered provider chain until one provider yields a usable result,
// and a fully exhausted chain surfaces its most actionable failure.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockbar/quotebar/internal/common"
	"github.com/stockbar/quotebar/internal/interfaces"
	"github.com/stockbar/quotebar/internal/models"
	"github.com/stockbar/quotebar/internal/session"
	"github.com/stockbar/quotebar/internal/symbols"
)

// DefaultHistoryRange is the lookback used when a historical request does
// not name a start date.
const DefaultHistoryRange = 30 * 24 * time.Hour

// kindPrecedence orders failure kinds from most to least actionable. An
// exhausted chain surfaces its best-ranked failure; ties keep the first seen.
var kindPrecedence = map[models.ErrorKind]int{
	models.ErrorKindAuthInvalid: 0,
	models.ErrorKindRateLimited: 1,
	models.ErrorKindTimeout:     2,
	models.ErrorKindNetwork:     3,
	models.ErrorKindNoData:      4,
	models.ErrorKindUnknown:     5,
}

func rank(k models.ErrorKind) int {
	if r, ok := kindPrecedence[k]; ok {
		return r
	}
	return len(kindPrecedence)
}

// aggregate collapses a chain's failures into a single terminal outcome.
func aggregate(kind models.RequestKind, failures []*models.FetchError) *models.FetchError {
	if len(failures) == 0 {
		return models.NewFetchError(models.ErrorKindNoData, "feed",
			fmt.Sprintf("no provider supports %s requests", kind))
	}
	best := failures[0]
	for _, fe := range failures[1:] {
		if rank(fe.Kind) < rank(best.Kind) {
			best = fe
		}
	}
	return best
}

// Service orchestrates providers with first-success-wins fallback.
type Service struct {
	registry *Registry
	cache    interfaces.QuoteCache
	priority []string
	logger   *common.Logger
	now      func() time.Time // injectable clock for testing
}

// NewService creates the feed. cache may be nil to disable quote caching;
// priority may be nil to use DefaultPriority.
func NewService(registry *Registry, cache interfaces.QuoteCache, priority []string, logger *common.Logger) *Service {
	return &Service{
		registry: registry,
		cache:    cache,
		priority: priority,
		logger:   logger,
		now:      time.Now,
	}
}

// run scopes one request: a correlation id on the logger and the set of
// providers whose credentials have already been rejected, so a bad key is
// tried at most once per invocation.
type run struct {
	log        *common.Logger
	authFailed map[string]bool
}

func (s *Service) newRun(kind models.RequestKind) *run {
	child := s.logger.With().
		Str("run", uuid.New().String()[:8]).
		Str("kind", string(kind)).
		Logger()
	return &run{
		log:        &common.Logger{Logger: child},
		authFailed: make(map[string]bool),
	}
}

// chain resolves the provider order for one request. An override replaces
// the configured priority and must name known providers only.
func (s *Service) chain(r *run, override []string) ([]interfaces.Provider, error) {
	if len(override) > 0 {
		providers, unknown := s.registry.Exact(override)
		if len(unknown) > 0 {
			return nil, models.InvalidRequestError(
				fmt.Sprintf("unknown provider: %s", strings.Join(unknown, ", ")))
		}
		return providers, nil
	}

	providers, unknown := s.registry.Resolve(s.priority)
	if len(unknown) > 0 {
		r.log.Warn().Strs("providers", unknown).Msg("Ignoring unknown providers in configured priority")
	}
	return providers, nil
}

// applySession stamps the computed session state onto a quote and selects
// the applicable price. The provider-reported market state is advisory;
// the exchange calendar is authoritative.
func (s *Service) applySession(ref symbols.Ref, q *models.Quote) {
	state := session.StateAt(ref.Exchange, s.now())
	q.MarketState = string(state)
	q.Price = session.ApplicablePrice(state, q.RegularMarketPrice, q.PreMarketPrice, q.PostMarketPrice)
	if q.PreviousClose > 0 {
		q.Change = q.Price - q.PreviousClose
		q.ChangePct = (q.Price - q.PreviousClose) / q.PreviousClose * 100
	}
}

// cachedQuote returns a fresh cache entry with the session recomputed. The
// stored copy is never mutated.
func (s *Service) cachedQuote(r *run, ref symbols.Ref) (*models.Quote, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, ok := s.cache.Get(ref.Ticker)
	if !ok {
		return nil, false
	}
	q := *cached
	s.applySession(ref, &q)
	r.log.Debug().Str("symbol", ref.Ticker).Msg("Cache hit")
	return &q, true
}

func (s *Service) storeQuote(r *run, ref symbols.Ref, q *models.Quote) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ref.Ticker, q); err != nil {
		r.log.Warn().Err(err).Str("symbol", ref.Ticker).Msg("Cache write failed")
	}
}

// recordFailure classifies a provider error, remembers rejected credentials
// for the rest of the run, and logs it.
func (s *Service) recordFailure(r *run, provider, symbol string, err error) *models.FetchError {
	fe := models.AsFetchError(provider, err)
	if fe.Kind == models.ErrorKindAuthInvalid {
		r.authFailed[provider] = true
	}
	r.log.Warn().
		Str("symbol", symbol).
		Str("provider", provider).
		Str("kind", string(fe.Kind)).
		Msg(fe.Message)
	return fe
}

// fetchQuote walks the chain for one symbol. First success wins.
func (s *Service) fetchQuote(ctx context.Context, r *run, providers []interfaces.Provider, ref symbols.Ref) (*models.Quote, error) {
	var failures []*models.FetchError
	for _, p := range providers {
		fetcher, ok := p.(interfaces.QuoteFetcher)
		if !ok || r.authFailed[p.Name()] {
			continue
		}
		quote, err := fetcher.FetchQuote(ctx, ref)
		if err == nil {
			r.log.Debug().Str("symbol", ref.Ticker).Str("provider", p.Name()).Msg("Quote resolved")
			return quote, nil
		}
		failures = append(failures, s.recordFailure(r, p.Name(), ref.Ticker, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, aggregate(models.RequestQuote, failures)
}

func (s *Service) fetchHistory(ctx context.Context, r *run, providers []interfaces.Provider, ref symbols.Ref, start, end time.Time) ([]models.HistoricalPoint, error) {
	var failures []*models.FetchError
	for _, p := range providers {
		fetcher, ok := p.(interfaces.HistoryFetcher)
		if !ok || r.authFailed[p.Name()] {
			continue
		}
		points, err := fetcher.FetchHistory(ctx, ref, start, end)
		if err == nil {
			r.log.Debug().Str("symbol", ref.Ticker).Str("provider", p.Name()).Int("points", len(points)).Msg("History resolved")
			return points, nil
		}
		failures = append(failures, s.recordFailure(r, p.Name(), ref.Ticker, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, aggregate(models.RequestHistorical, failures)
}

func (s *Service) fetchCandles(ctx context.Context, r *run, providers []interfaces.Provider, ref symbols.Ref, period, interval string) ([]models.Candle, error) {
	var failures []*models.FetchError
	for _, p := range providers {
		fetcher, ok := p.(interfaces.CandleFetcher)
		if !ok || r.authFailed[p.Name()] {
			continue
		}
		candles, err := fetcher.FetchCandles(ctx, ref, period, interval)
		if err == nil {
			r.log.Debug().Str("symbol", ref.Ticker).Str("provider", p.Name()).Int("candles", len(candles)).Msg("Candles resolved")
			return candles, nil
		}
		failures = append(failures, s.recordFailure(r, p.Name(), ref.Ticker, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, aggregate(models.RequestOHLC, failures)
}

// firstBatcher returns the highest-priority provider with bulk support.
func (s *Service) firstBatcher(r *run, providers []interfaces.Provider) interfaces.BatchQuoteFetcher {
	for _, p := range providers {
		if r.authFailed[p.Name()] {
			continue
		}
		if b, ok := p.(interfaces.BatchQuoteFetcher); ok {
			return b
		}
	}
	return nil
}

// GetQuote retrieves one real-time quote, consulting the cache first.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	r := s.newRun(models.RequestQuote)
	providers, err := s.chain(r, nil)
	if err != nil {
		return nil, err
	}
	return s.quote(ctx, r, providers, symbol)
}

func (s *Service) quote(ctx context.Context, r *run, providers []interfaces.Provider, symbol string) (*models.Quote, error) {
	ref := symbols.Normalize(symbol)
	if ref.Ticker == "" {
		return nil, models.InvalidRequestError("empty symbol")
	}
	if q, ok := s.cachedQuote(r, ref); ok {
		return q, nil
	}
	quote, err := s.fetchQuote(ctx, r, providers, ref)
	if err != nil {
		return nil, err
	}
	s.applySession(ref, quote)
	s.storeQuote(r, ref, quote)
	return quote, nil
}

// GetQuoteBatch resolves quotes for several symbols: cache first, then one
// bulk call, then full per-symbol chains for whatever is still missing.
// Partial success is reported per symbol.
func (s *Service) GetQuoteBatch(ctx context.Context, syms []string) []models.SymbolResult {
	r := s.newRun(models.RequestQuote)
	providers, _ := s.chain(r, nil)
	return s.quoteBatch(ctx, r, providers, syms)
}

func (s *Service) quoteBatch(ctx context.Context, r *run, providers []interfaces.Provider, syms []string) []models.SymbolResult {
	results := make([]models.SymbolResult, len(syms))
	refs := make([]symbols.Ref, len(syms))

	var missing []int
	for i, sym := range syms {
		refs[i] = symbols.Normalize(sym)
		results[i].Symbol = refs[i].Raw
		if refs[i].Ticker == "" {
			results[i].Err = models.InvalidRequestError("empty symbol")
			continue
		}
		if q, ok := s.cachedQuote(r, refs[i]); ok {
			results[i].Quote = q
			continue
		}
		missing = append(missing, i)
	}

	// One bulk attempt before falling back to per-symbol chains. A bulk
	// failure is recorded but never fails the batch on its own.
	if len(missing) > 1 {
		if batcher := s.firstBatcher(r, providers); batcher != nil {
			batchRefs := make([]symbols.Ref, 0, len(missing))
			for _, i := range missing {
				batchRefs = append(batchRefs, refs[i])
			}
			quotes, err := batcher.FetchQuoteBatch(ctx, batchRefs)
			if err != nil {
				tickers := make([]string, len(batchRefs))
				for i, ref := range batchRefs {
					tickers[i] = ref.Ticker
				}
				s.recordFailure(r, batcher.Name(), strings.Join(tickers, ","), err)
			} else {
				remaining := make([]int, 0, len(missing))
				for _, i := range missing {
					q, ok := quotes[refs[i].Ticker]
					if !ok || q == nil {
						remaining = append(remaining, i)
						continue
					}
					s.applySession(refs[i], q)
					s.storeQuote(r, refs[i], q)
					results[i].Quote = q
				}
				missing = remaining
			}
		}
	}

	for _, i := range missing {
		quote, err := s.fetchQuote(ctx, r, providers, refs[i])
		if err != nil {
			results[i].Err = models.AsFetchError("feed", err)
			continue
		}
		s.applySession(refs[i], quote)
		s.storeQuote(r, refs[i], quote)
		results[i].Quote = quote
	}

	return results
}

// resolveRange applies the default lookback window and rejects inverted
// ranges before any provider is consulted.
func (s *Service) resolveRange(start, end time.Time) (time.Time, time.Time, error) {
	if end.IsZero() {
		end = s.now()
	}
	if start.IsZero() {
		start = end.Add(-DefaultHistoryRange)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, models.InvalidRequestError(
			fmt.Sprintf("start date %s is after end date %s",
				start.Format("2006-01-02"), end.Format("2006-01-02")))
	}
	return start, end, nil
}

// GetHistory retrieves a daily close series for a date range.
func (s *Service) GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.HistoricalPoint, error) {
	r := s.newRun(models.RequestHistorical)
	providers, err := s.chain(r, nil)
	if err != nil {
		return nil, err
	}
	return s.history(ctx, r, providers, symbol, start, end)
}

func (s *Service) history(ctx context.Context, r *run, providers []interfaces.Provider, symbol string, start, end time.Time) ([]models.HistoricalPoint, error) {
	ref := symbols.Normalize(symbol)
	if ref.Ticker == "" {
		return nil, models.InvalidRequestError("empty symbol")
	}
	start, end, err := s.resolveRange(start, end)
	if err != nil {
		return nil, err
	}
	return s.fetchHistory(ctx, r, providers, ref, start, end)
}

// normalizeGranularity applies period/interval defaults and forces intraday
// bars for a single-day window, where daily bars would render as one point.
func normalizeGranularity(period, interval string) (string, string) {
	if period == "" {
		period = "1mo"
	}
	if interval == "" {
		interval = "1d"
	}
	if period == "1d" {
		switch interval {
		case "1d", "1wk", "1mo":
			interval = "5m"
		}
	}
	return period, interval
}

// GetCandles retrieves OHLCV candles for a period/interval pair.
func (s *Service) GetCandles(ctx context.Context, symbol, period, interval string) ([]models.Candle, error) {
	r := s.newRun(models.RequestOHLC)
	providers, err := s.chain(r, nil)
	if err != nil {
		return nil, err
	}
	return s.candles(ctx, r, providers, symbol, period, interval)
}

func (s *Service) candles(ctx context.Context, r *run, providers []interfaces.Provider, symbol, period, interval string) ([]models.Candle, error) {
	ref := symbols.Normalize(symbol)
	if ref.Ticker == "" {
		return nil, models.InvalidRequestError("empty symbol")
	}
	period, interval = normalizeGranularity(period, interval)
	return s.fetchCandles(ctx, r, providers, ref, period, interval)
}

// TestKeys verifies credentials for every provider in the chain. Keyless
// providers pass trivially.
func (s *Service) TestKeys(ctx context.Context) []models.KeyStatus {
	r := s.newRun(models.RequestKeyTest)
	providers, _ := s.chain(r, nil)
	return s.keys(ctx, r, providers)
}

func (s *Service) keys(ctx context.Context, r *run, providers []interfaces.Provider) []models.KeyStatus {
	statuses := make([]models.KeyStatus, 0, len(providers))
	for _, p := range providers {
		checker, ok := p.(interfaces.KeyChecker)
		if !ok {
			statuses = append(statuses, models.KeyStatus{Provider: p.Name(), OK: true, Detail: "no key required"})
			continue
		}
		if err := checker.CheckKey(ctx); err != nil {
			fe := s.recordFailure(r, p.Name(), "", err)
			statuses = append(statuses, models.KeyStatus{Provider: p.Name(), OK: false, Detail: fe.Error()})
			continue
		}
		statuses = append(statuses, models.KeyStatus{Provider: p.Name(), OK: true})
	}
	return statuses
}

// Handle validates a request descriptor and dispatches it. Request-level
// problems (no symbols, inverted dates, unknown override) return an error;
// provider failures are itemized per symbol inside the response.
func (s *Service) Handle(ctx context.Context, req models.Request) (*models.Response, error) {
	r := s.newRun(req.Kind)
	providers, err := s.chain(r, req.ProviderOverride)
	if err != nil {
		return nil, err
	}

	resp := &models.Response{Kind: req.Kind}
	switch req.Kind {
	case models.RequestQuote:
		if len(req.Symbols) == 0 {
			return nil, models.InvalidRequestError("no symbols supplied")
		}
		resp.Results = s.quoteBatch(ctx, r, providers, req.Symbols)

	case models.RequestHistorical:
		if len(req.Symbols) == 0 {
			return nil, models.InvalidRequestError("no symbols supplied")
		}
		start, end, err := s.resolveRange(req.StartDate, req.EndDate)
		if err != nil {
			return nil, err
		}
		for _, sym := range req.Symbols {
			result := models.SymbolResult{Symbol: symbols.Normalize(sym).Raw}
			points, err := s.history(ctx, r, providers, sym, start, end)
			if err != nil {
				result.Err = models.AsFetchError("feed", err)
			} else {
				result.History = points
			}
			resp.Results = append(resp.Results, result)
		}

	case models.RequestOHLC:
		if len(req.Symbols) == 0 {
			return nil, models.InvalidRequestError("no symbols supplied")
		}
		resp.Period, resp.Interval = normalizeGranularity(req.Period, req.Interval)
		for _, sym := range req.Symbols {
			result := models.SymbolResult{Symbol: symbols.Normalize(sym).Raw}
			candles, err := s.candles(ctx, r, providers, sym, resp.Period, resp.Interval)
			if err != nil {
				result.Err = models.AsFetchError("feed", err)
			} else {
				result.Candles = candles
			}
			resp.Results = append(resp.Results, result)
		}

	case models.RequestKeyTest:
		resp.Keys = s.keys(ctx, r, providers)

	default:
		return nil, models.InvalidRequestError(fmt.Sprintf("unknown request kind %q", req.Kind))
	}

	return resp, nil
}

// Ensure Service implements the feed contract
var _ interfaces.Feed = (*Service)(nil)
