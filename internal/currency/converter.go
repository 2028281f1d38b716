package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/cache"
	"hisob/internal/core"
)

// ErrRateUnavailable is returned when historical quotes cannot be obtained.
// It is distinct from the silent rate-1 fallback of live lookups.
var ErrRateUnavailable = errors.New("rate unavailable")

const (
	DefaultTimeout       = 5 * time.Second
	DefaultCacheTTL      = time.Hour
	DefaultHistoricalTTL = 7 * 24 * time.Hour

	latestKey = "latest"
)

// RateSource fetches quotes from an external provider.
type RateSource interface {
	Latest(ctx context.Context) (RateTable, error)
	Historical(ctx context.Context, date time.Time) (RateTable, error)
}

// Stats are cumulative counters of a Converter.
type Stats struct {
	APICalls    int64     `json:"api_calls"`
	CacheHits   int64     `json:"cache_hits"`
	Conversions int64     `json:"conversions"`
	Fallbacks   int64     `json:"fallbacks"`
	LastUpdate  time.Time `json:"last_update"`
}

// ConverterConfig tunes cache windows and the provider timeout.
// A TTL of zero or less disables the corresponding cache.
type ConverterConfig struct {
	Timeout       time.Duration
	CacheTTL      time.Duration
	HistoricalTTL time.Duration
	Fallback      RateTable
}

// DefaultConverterConfig returns the production windows.
func DefaultConverterConfig() ConverterConfig {
	return ConverterConfig{
		Timeout:       DefaultTimeout,
		CacheTTL:      DefaultCacheTTL,
		HistoricalTTL: DefaultHistoricalTTL,
		Fallback:      StaticTable(),
	}
}

// Converter serves rate tables from a cache backed by a RateSource and
// converts amounts with them. It is safe for concurrent use.
type Converter struct {
	source  RateSource
	cfg     ConverterConfig
	latest  *cache.LRUCache[RateTable]
	history *cache.LRUCache[RateTable]
	logger  *slog.Logger

	apiCalls    atomic.Int64
	cacheHits   atomic.Int64
	conversions atomic.Int64
	fallbacks   atomic.Int64

	mu         sync.RWMutex
	lastUpdate time.Time
}

// NewConverter creates a converter. source may be nil, in which case only the
// fallback table is served and historical lookups always fail.
func NewConverter(source RateSource, cfg ConverterConfig, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Fallback.rates == nil {
		cfg.Fallback = StaticTable()
	}
	c := &Converter{
		source: source,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.CacheTTL > 0 {
		c.latest = cache.NewLRUCache[RateTable](1, cfg.CacheTTL)
	}
	if cfg.HistoricalTTL > 0 {
		c.history = cache.NewLRUCache[RateTable](512, cfg.HistoricalTTL)
	}
	return c
}

// Caches exposes the internal caches so a cache.Manager can clean them.
func (c *Converter) Caches() []cache.Cleaner {
	var out []cache.Cleaner
	if c.latest != nil {
		out = append(out, c.latest)
	}
	if c.history != nil {
		out = append(out, c.history)
	}
	return out
}

// Rates returns the live table. Fetch failures degrade to the fallback table.
func (c *Converter) Rates(ctx context.Context) RateTable {
	if c.latest != nil {
		if t, ok := c.latest.Get(latestKey); ok {
			c.cacheHits.Add(1)
			return t
		}
	}
	t, err := c.fetchLatest(ctx)
	if err != nil {
		c.fallbacks.Add(1)
		c.logger.WarnContext(ctx, "Live rate fetch failed, using fallback rates", "error", err)
		return c.cfg.Fallback
	}
	return t
}

// Refresh forces a live fetch and replaces the cached table.
func (c *Converter) Refresh(ctx context.Context) error {
	_, err := c.fetchLatest(ctx)
	return err
}

func (c *Converter) fetchLatest(ctx context.Context) (RateTable, error) {
	if c.source == nil {
		return RateTable{}, errors.New("no rate source configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.apiCalls.Add(1)
	t, err := c.source.Latest(ctx)
	if err != nil {
		return RateTable{}, fmt.Errorf("fetch latest rates: %w", err)
	}
	if c.latest != nil {
		c.latest.Set(latestKey, t)
	}
	c.mu.Lock()
	c.lastUpdate = time.Now()
	c.mu.Unlock()
	c.logger.InfoContext(ctx, "Exchange rates updated", "currencies", len(t.rates), "as_of", t.AsOf())
	return t, nil
}

// HistoricalRates returns the table for a past date or ErrRateUnavailable.
func (c *Converter) HistoricalRates(ctx context.Context, date time.Time) (RateTable, error) {
	key := core.DateOf(date).String()
	if c.history != nil {
		if t, ok := c.history.Get(key); ok {
			c.cacheHits.Add(1)
			return t, nil
		}
	}
	if c.source == nil {
		return RateTable{}, ErrRateUnavailable
	}

	fctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.apiCalls.Add(1)
	t, err := c.source.Historical(fctx, date)
	if err != nil {
		c.logger.WarnContext(ctx, "Historical rate fetch failed", "date", key, "error", err)
		return RateTable{}, fmt.Errorf("%w: %s: %v", ErrRateUnavailable, key, err)
	}
	if c.history != nil {
		c.history.Set(key, t)
	}
	return t, nil
}

// Convert converts with the live table.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to core.Currency) decimal.Decimal {
	c.conversions.Add(1)
	if from == to {
		return amount
	}
	return Convert(amount, from, to, c.Rates(ctx))
}

// ConvertBulk resolves the live table once and converts every amount with it.
func (c *Converter) ConvertBulk(ctx context.Context, amounts []decimal.Decimal, from, to core.Currency) []decimal.Decimal {
	c.conversions.Add(int64(len(amounts)))
	if from == to {
		return ConvertBulk(amounts, from, to, RateTable{})
	}
	return ConvertBulk(amounts, from, to, c.Rates(ctx))
}

// ConvertAt converts with the quotes of a past date.
func (c *Converter) ConvertAt(ctx context.Context, amount decimal.Decimal, from, to core.Currency, date time.Time) (decimal.Decimal, error) {
	if from == to {
		c.conversions.Add(1)
		return amount, nil
	}
	t, err := c.HistoricalRates(ctx, date)
	if err != nil {
		return decimal.Zero, err
	}
	c.conversions.Add(1)
	return Convert(amount, from, to, t), nil
}

// Stats returns a snapshot of the counters.
func (c *Converter) Stats() Stats {
	c.mu.RLock()
	last := c.lastUpdate
	c.mu.RUnlock()
	return Stats{
		APICalls:    c.apiCalls.Load(),
		CacheHits:   c.cacheHits.Load(),
		Conversions: c.conversions.Load(),
		Fallbacks:   c.fallbacks.Load(),
		LastUpdate:  last,
	}
}
