package yahoo

import (
    "context"
    "fmt"
    "time"

    "github.com/piquette/finance-go/equity"

    "portfoliotracker/internal/provider"
)

// Provider resolves quotes through Yahoo Finance. It is the price-authoritative
// source: the resolver treats a positive price from here as final.
type Provider struct {
    name string
}

func New() *Provider {
    return &Provider{name: "Yahoo"}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Resolve(ctx context.Context, symbol, exchange string) (provider.Partial, error) {
    if err := ctx.Err(); err != nil {
        return provider.Partial{}, err
    }

    q, err := equity.Get(symbol)
    if err != nil {
        return provider.Partial{}, fmt.Errorf("yahoo quote %s: %w", symbol, err)
    }
    if q == nil {
        return provider.Partial{}, fmt.Errorf("yahoo quote %s: no data", symbol)
    }

    var out provider.Partial
    if q.RegularMarketPrice > 0 {
        out.Price = provider.Float(q.RegularMarketPrice)
    }
    if q.TrailingPE > 0 {
        out.PERatio = provider.Float(q.TrailingPE)
    }
    // Yahoo reports earnings as epoch seconds; prefer the confirmed timestamp
    // over the start of the estimated window.
    if ts := q.EarningsTimestamp; ts > 0 {
        out.EarningsDate = provider.String(epochDate(int64(ts)))
    } else if ts := q.EarningsTimestampStart; ts > 0 {
        out.EarningsDate = provider.String(epochDate(int64(ts)))
    }
    return out, nil
}

func epochDate(sec int64) string {
    return time.Unix(sec, 0).UTC().Format("2006-01-02")
}
