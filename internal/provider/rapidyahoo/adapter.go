package rapidyahoo

import (
	"context"

	"portfoliotracker/internal/provider"
)

// Provider adapts the RapidAPI client to the resolver's capability interface.
// It is a price-only backup source; fundamentals never come from here.
type Provider struct {
	name   string
	client *Client
}

func NewProvider(client *Client) *Provider {
	return &Provider{name: "RapidAPI", client: client}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Resolve(ctx context.Context, symbol, exchange string) (provider.Partial, error) {
	cmp, err := p.client.QuotePrice(ctx, symbol)
	if err != nil {
		return provider.Partial{}, err
	}
	return provider.Partial{Price: provider.Float(cmp)}, nil
}
