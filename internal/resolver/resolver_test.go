package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"portfoliotracker/internal/provider"
	"portfoliotracker/internal/store"
)

type fakeProvider struct {
	name    string
	partial provider.Partial
	err     error
	calls   []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Resolve(_ context.Context, symbol, _ string) (provider.Partial, error) {
	f.calls = append(f.calls, symbol)
	return f.partial, f.err
}

type fakeFinder struct {
	stocks map[string]store.Stock
}

func (f *fakeFinder) FindStockBySymbol(_ context.Context, symbol string) (store.Stock, error) {
	st, ok := f.stocks[symbol]
	if !ok {
		return store.Stock{}, store.ErrStockNotFound
	}
	return st, nil
}

type cacheWrite struct {
	stockID int64
	entry   store.QuoteEntry
}

type fakeCache struct {
	writes []cacheWrite
	err    error
}

func (f *fakeCache) UpsertQuoteCache(_ context.Context, stockID int64, entry store.QuoteEntry) error {
	f.writes = append(f.writes, cacheWrite{stockID: stockID, entry: entry})
	return f.err
}

func newTestResolver(primary, fundamentals provider.Provider, backups []provider.Provider, finder StockFinder, cache CacheWriter) (*Resolver, *[]time.Duration) {
	r := New(primary, fundamentals, backups, finder, cache, Config{
		ProviderDelay: 400 * time.Millisecond,
		SymbolDelay:   300 * time.Millisecond,
		NotFoundDelay: 100 * time.Millisecond,
	})
	slept := &[]time.Duration{}
	r.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	return r, slept
}

func knownStocks(symbols ...string) *fakeFinder {
	f := &fakeFinder{stocks: map[string]store.Stock{}}
	for i, s := range symbols {
		f.stocks[s] = store.Stock{ID: int64(i + 1), Symbol: s, Exchange: "NSE"}
	}
	return f
}

func TestRefresh_EmptyInputRejected(t *testing.T) {
	r, _ := newTestResolver(&fakeProvider{}, nil, nil, knownStocks(), &fakeCache{})

	_, err := r.Refresh(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoSymbols)

	_, err = r.Refresh(context.Background(), []string{"  ", ""})
	require.ErrorIs(t, err, ErrNoSymbols)
}

func TestRefresh_NormalizesAndDeduplicates(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", partial: provider.Partial{Price: provider.Float(101.5)}}
	cache := &fakeCache{}
	r, _ := newTestResolver(primary, nil, nil, knownStocks("AAPL"), cache)

	res, err := r.Refresh(context.Background(), []string{" aapl ", "AAPL", "aapl"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.Empty(t, res.Errors)
	require.Equal(t, []string{"AAPL"}, primary.calls)
	require.Len(t, cache.writes, 1)
	require.True(t, cache.writes[0].entry.CMP.Equal(decimal.NewFromFloat(101.5)))
	require.Nil(t, cache.writes[0].entry.LastError)
}

func TestRefresh_UnknownSymbolSkipsCache(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", partial: provider.Partial{Price: provider.Float(10)}}
	cache := &fakeCache{}
	r, slept := newTestResolver(primary, nil, nil, knownStocks("AAPL"), cache)

	res, err := r.Refresh(context.Background(), []string{"NOPE", "AAPL"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, []string{"Stock not found: NOPE"}, res.Errors)
	// only the known symbol reaches providers and the cache
	require.Equal(t, []string{"AAPL"}, primary.calls)
	require.Len(t, cache.writes, 1)
	// shorter pause on the unknown-symbol path, then full pacing for AAPL
	require.Equal(t, []time.Duration{
		100 * time.Millisecond,
		400 * time.Millisecond,
		300 * time.Millisecond,
	}, *slept)
}

func TestRefresh_FailureWritesZeroWithLastError(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", err: errors.New("quote feed down")}
	cache := &fakeCache{}
	r, _ := newTestResolver(primary, nil, nil, knownStocks("AAPL"), cache)

	res, err := r.Refresh(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, 0, res.Updated)
	require.Equal(t, []string{"AAPL: quote feed down"}, res.Errors)

	// a failed symbol still gets exactly one upsert, marking the failure
	require.Len(t, cache.writes, 1)
	e := cache.writes[0].entry
	require.True(t, e.CMP.Equal(decimal.Zero))
	require.NotNil(t, e.LastError)
	require.Equal(t, "quote feed down", *e.LastError)
	require.Nil(t, e.PERatio)
}

func TestRefresh_FundamentalsPreferredOverPrimary(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", partial: provider.Partial{
		Price:        provider.Float(250),
		PERatio:      provider.Float(31.2),
		EarningsDate: provider.String("2025-04-30"),
	}}
	fundamentals := &fakeProvider{name: "GoogleFinance", partial: provider.Partial{
		PERatio:      provider.Float(28.9),
		EarningsDate: provider.String("2025-05-02"),
	}}
	cache := &fakeCache{}
	r, _ := newTestResolver(primary, fundamentals, nil, knownStocks("MSFT"), cache)

	res, err := r.Refresh(context.Background(), []string{"MSFT"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)

	e := cache.writes[0].entry
	require.True(t, e.CMP.Equal(decimal.NewFromInt(250)))
	require.Equal(t, 28.9, *e.PERatio)
	require.Equal(t, "2025-05-02", *e.LatestEarning)
}

func TestRefresh_FundamentalsErrorDoesNotFailSymbol(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", partial: provider.Partial{
		Price:   provider.Float(99),
		PERatio: provider.Float(15.5),
	}}
	fundamentals := &fakeProvider{name: "GoogleFinance", err: errors.New("blocked")}
	cache := &fakeCache{}
	r, _ := newTestResolver(primary, fundamentals, nil, knownStocks("TCS"), cache)

	res, err := r.Refresh(context.Background(), []string{"TCS"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.Empty(t, res.Errors)

	e := cache.writes[0].entry
	require.Equal(t, 15.5, *e.PERatio)
}

func TestRefresh_BackupSuppliesPrice(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", err: errors.New("yahoo unreachable")}
	backup := &fakeProvider{name: "RapidAPI", partial: provider.Partial{Price: provider.Float(73.4)}}
	cache := &fakeCache{}
	r, _ := newTestResolver(primary, nil, []provider.Provider{backup}, knownStocks("INFY"), cache)

	res, err := r.Refresh(context.Background(), []string{"INFY"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.Empty(t, res.Errors)
	require.Equal(t, []string{"INFY"}, backup.calls)
	require.True(t, cache.writes[0].entry.CMP.Equal(decimal.NewFromFloat(73.4)))
}

func TestRefresh_BackupNotConsultedWhenPrimaryHasPrice(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", partial: provider.Partial{Price: provider.Float(10)}}
	backup := &fakeProvider{name: "RapidAPI", partial: provider.Partial{Price: provider.Float(999)}}
	r, _ := newTestResolver(primary, nil, []provider.Provider{backup}, knownStocks("AAPL"), &fakeCache{})

	_, err := r.Refresh(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Empty(t, backup.calls)
}

func TestRefresh_AllProvidersFailKeepsFirstError(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", err: errors.New("first failure")}
	backup := &fakeProvider{name: "RapidAPI", err: errors.New("second failure")}
	cache := &fakeCache{}
	r, _ := newTestResolver(primary, nil, []provider.Provider{backup}, knownStocks("AAPL"), cache)

	res, err := r.Refresh(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL: first failure"}, res.Errors)
	require.Equal(t, "first failure", *cache.writes[0].entry.LastError)
}

func TestRefresh_MixedBatchKeepsGoing(t *testing.T) {
	// provider succeeds for everything; the middle symbol is simply unknown
	primary := &fakeProvider{name: "Yahoo", partial: provider.Partial{Price: provider.Float(5)}}
	cache := &fakeCache{}
	r, _ := newTestResolver(primary, nil, nil, knownStocks("AAA", "CCC"), cache)

	res, err := r.Refresh(context.Background(), []string{"AAA", "BBB", "CCC"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Updated)
	require.Equal(t, []string{"Stock not found: BBB"}, res.Errors)
	require.Len(t, cache.writes, 2)
}

func TestGetQuote_DoesNotWriteCache(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", partial: provider.Partial{Price: provider.Float(42)}}
	cache := &fakeCache{}
	r, slept := newTestResolver(primary, nil, nil, knownStocks("AAPL"), cache)

	q := r.GetQuote(context.Background(), " aapl ")
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, 42.0, q.CMP)
	require.Empty(t, q.Error)
	require.Empty(t, cache.writes)
	require.Empty(t, *slept)
}

func TestGetQuote_UnknownSymbolStillResolves(t *testing.T) {
	// on-demand lookups work for symbols nobody holds yet
	primary := &fakeProvider{name: "Yahoo", partial: provider.Partial{Price: provider.Float(18.25)}}
	r, _ := newTestResolver(primary, nil, nil, knownStocks(), &fakeCache{})

	q := r.GetQuote(context.Background(), "NEWCO")
	require.Equal(t, 18.25, q.CMP)
	require.Empty(t, q.Error)
}

func TestGetQuote_BlankSymbol(t *testing.T) {
	r, _ := newTestResolver(&fakeProvider{}, nil, nil, knownStocks(), &fakeCache{})
	q := r.GetQuote(context.Background(), "   ")
	require.NotEmpty(t, q.Error)
}

func TestGetQuote_ReportsFailure(t *testing.T) {
	primary := &fakeProvider{name: "Yahoo", err: errors.New("timeout")}
	r, _ := newTestResolver(primary, nil, nil, knownStocks("AAPL"), &fakeCache{})

	q := r.GetQuote(context.Background(), "AAPL")
	require.Zero(t, q.CMP)
	require.Equal(t, "timeout", q.Error)
}

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{" aapl ", "MSFT", "", "aapl", "  ", "msft", "tcs"})
	require.Equal(t, []string{"AAPL", "MSFT", "TCS"}, got)
}
