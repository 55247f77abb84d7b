package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"portfoliotracker/internal/provider"
	"portfoliotracker/internal/store"
)

// ErrNoSymbols reports an empty refresh request; it is rejected before any
// resolution work begins.
var ErrNoSymbols = errors.New("no symbols to refresh")

// StockFinder is the slice of the store the resolver reads.
type StockFinder interface {
	FindStockBySymbol(ctx context.Context, symbol string) (store.Stock, error)
}

// CacheWriter is the slice of the store the resolver writes. Exactly one
// upsert happens per symbol per refresh pass.
type CacheWriter interface {
	UpsertQuoteCache(ctx context.Context, stockID int64, entry store.QuoteEntry) error
}

// Quote is the consolidated on-demand result for one symbol.
type Quote struct {
	Symbol        string   `json:"symbol"`
	CMP           float64  `json:"cmp"`
	PERatio       *float64 `json:"peRatio"`
	LatestEarning *string  `json:"latestEarning"`
	Error         string   `json:"error,omitempty"`
}

// Result is the outcome of a batch refresh. Per-symbol failures are collected
// here; Refresh never raises for them.
type Result struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// Config holds the pacing applied by the strictly sequential refresh loop.
type Config struct {
	// ProviderDelay is slept after the primary+fundamentals round for a symbol.
	ProviderDelay time.Duration
	// SymbolDelay is slept after each symbol's cache write.
	SymbolDelay time.Duration
	// NotFoundDelay is the shorter sleep on the unknown-symbol short circuit,
	// keeping batch timing predictable.
	NotFoundDelay time.Duration
}

// Resolver turns symbols into consolidated quotes by trying adapters in a
// fixed priority order and merging non-nil fields. The primary source is
// price-authoritative; the fundamentals source wins for P/E and earnings;
// backups are price-only and consulted in order when the primary has no
// usable price.
type Resolver struct {
	primary      provider.Provider
	fundamentals provider.Provider // may be nil
	backups      []provider.Provider
	stocks       StockFinder
	cache        CacheWriter
	cfg          Config

	// sleep is swapped out in tests so pacing can be asserted without waiting.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	sf    singleflight.Group
}

func New(primary, fundamentals provider.Provider, backups []provider.Provider, stocks StockFinder, cache CacheWriter, cfg Config) *Resolver {
	return &Resolver{
		primary:      primary,
		fundamentals: fundamentals,
		backups:      backups,
		stocks:       stocks,
		cache:        cache,
		cfg:          cfg,
		sleep:        sleepCtx,
		now:          time.Now,
	}
}

// Refresh resolves each symbol sequentially and writes one cache upsert per
// known symbol. Input symbols are normalized and deduplicated first. Every
// failure becomes an entry in Result.Errors; the only error return is for an
// empty symbol set.
func (r *Resolver) Refresh(ctx context.Context, symbols []string) (Result, error) {
	unique := NormalizeSymbols(symbols)
	if len(unique) == 0 {
		return Result{}, ErrNoSymbols
	}

	res := Result{Errors: []string{}}
	for _, symbol := range unique {
		st, err := r.stocks.FindStockBySymbol(ctx, symbol)
		if err != nil {
			if errors.Is(err, store.ErrStockNotFound) {
				res.Errors = append(res.Errors, "Stock not found: "+symbol)
			} else {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", symbol, err))
			}
			if err := r.sleep(ctx, r.cfg.NotFoundDelay); err != nil {
				return res, nil
			}
			continue
		}

		q := r.resolve(ctx, symbol, st.Exchange)

		entry := store.QuoteEntry{
			CMP:           decimal.NewFromFloat(q.CMP),
			PERatio:       q.PERatio,
			LatestEarning: q.LatestEarning,
			UpdatedAt:     r.now().UTC(),
		}
		if q.Error != "" {
			entry.CMP = decimal.Zero
			entry.LastError = &q.Error
		}
		if err := r.cache.UpsertQuoteCache(ctx, st.ID, entry); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", symbol, err))
		} else if q.Error != "" {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", symbol, q.Error))
		} else {
			res.Updated++
		}

		if err := r.sleep(ctx, r.cfg.SymbolDelay); err != nil {
			return res, nil
		}
	}
	return res, nil
}

// GetQuote resolves one symbol through the same fallback chain without
// touching the cache. Concurrent lookups for the same symbol are coalesced.
func (r *Resolver) GetQuote(ctx context.Context, symbol string) Quote {
	sym := store.NormalizeSymbol(symbol)
	if sym == "" {
		return Quote{Symbol: sym, Error: "symbol is required"}
	}

	v, _, _ := r.sf.Do(sym, func() (any, error) {
		exchange := ""
		if st, err := r.stocks.FindStockBySymbol(ctx, sym); err == nil {
			exchange = st.Exchange
		}
		return r.resolveUnpaced(ctx, sym, exchange), nil
	})
	return v.(Quote)
}

// resolve runs the full chain with refresh pacing applied.
func (r *Resolver) resolve(ctx context.Context, symbol, exchange string) Quote {
	primary, primaryErr := r.primary.Resolve(ctx, symbol, exchange)

	var fundamentals provider.Partial
	if r.fundamentals != nil {
		// Errors from the fundamentals source never fail the symbol; a quote
		// missing P/E or earnings is still a success.
		fundamentals, _ = r.fundamentals.Resolve(ctx, symbol, exchange)
	}

	if err := r.sleep(ctx, r.cfg.ProviderDelay); err != nil {
		return Quote{Symbol: symbol, Error: err.Error()}
	}

	return r.merge(ctx, symbol, exchange, primary, primaryErr, fundamentals)
}

// resolveUnpaced is the on-demand variant: same ordering, no sleeps.
func (r *Resolver) resolveUnpaced(ctx context.Context, symbol, exchange string) Quote {
	primary, primaryErr := r.primary.Resolve(ctx, symbol, exchange)
	var fundamentals provider.Partial
	if r.fundamentals != nil {
		fundamentals, _ = r.fundamentals.Resolve(ctx, symbol, exchange)
	}
	return r.merge(ctx, symbol, exchange, primary, primaryErr, fundamentals)
}

// merge consolidates the gathered partials, consulting backups when the
// primary produced no usable price. Resolved fields are never overwritten by
// a later nil; the fundamentals source wins for P/E and earnings when both
// report a value.
func (r *Resolver) merge(ctx context.Context, symbol, exchange string, primary provider.Partial, primaryErr error, fundamentals provider.Partial) Quote {
	q := Quote{Symbol: symbol}
	q.PERatio = coalesceFloat(fundamentals.PERatio, primary.PERatio)
	q.LatestEarning = coalesceString(fundamentals.EarningsDate, primary.EarningsDate)

	if primary.Price != nil {
		q.CMP = *primary.Price
		return q
	}

	firstErr := ""
	if primaryErr != nil {
		firstErr = primaryErr.Error()
	}
	for _, b := range r.backups {
		part, err := b.Resolve(ctx, symbol, exchange)
		if err != nil {
			if firstErr == "" {
				firstErr = err.Error()
			}
			continue
		}
		if part.Price != nil {
			q.CMP = *part.Price
			q.PERatio = coalesceFloat(q.PERatio, part.PERatio)
			q.LatestEarning = coalesceString(q.LatestEarning, part.EarningsDate)
			return q
		}
	}

	if firstErr == "" {
		firstErr = "no usable price from any provider"
	}
	q.CMP = 0
	q.Error = firstErr
	return q
}

// NormalizeSymbols trims, uppercases, drops empties and deduplicates while
// preserving first-occurrence order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := store.NormalizeSymbol(s)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

func coalesceFloat(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func coalesceString(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
