package provider

import (
    "context"
)

// Partial is the normalized best-effort result returned by all providers.
// Nil fields mean "this source did not have the value"; the resolver merges
// partials from several sources and never treats a missing field as an error.
type Partial struct {
    // Price is the current market price. Providers only set it when the
    // upstream reported a strictly positive number.
    Price *float64
    // PERatio is the trailing price/earnings ratio, when available.
    PERatio *float64
    // EarningsDate is the latest earnings date in YYYY-MM-DD form.
    EarningsDate *string
}

// Provider resolves one symbol against one upstream market-data source.
// Implementations normalize the symbol and exchange to whatever the upstream
// expects, bound the outbound request with a timeout, and return an error for
// any transport or upstream failure. They never panic across this boundary.
type Provider interface {
    Name() string
    Resolve(ctx context.Context, symbol, exchange string) (Partial, error)
}

// Float returns a pointer to v; a small helper for building partials.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }
