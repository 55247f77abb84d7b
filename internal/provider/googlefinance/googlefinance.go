package googlefinance

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"

    "portfoliotracker/internal/httpx"
    "portfoliotracker/internal/provider"
)

// exchangeMap translates internal exchange codes to Google Finance's
// vocabulary. Unmapped codes pass through unchanged; empty falls back to
// a default market.
var exchangeMap = map[string]string{
    "NSE":      "NSE",
    "BSE":      "BSE",
    "NASDAQ":   "NASDAQ",
    "NYSE":     "NYSE",
    "NYSEARCA": "NYSEARCA",
    "BOM":      "BSE",
}

const defaultExchange = "NASDAQ"

type Config struct {
    Name     string
    Endpoint string // base quote URL, default https://www.google.com/finance/quote
    Headers  map[string]string
}

// Provider scrapes fundamentals (P/E ratio, latest earnings date) from the
// Google Finance quote page. It never reports a price; the resolver uses it
// purely as the supplementary fundamentals source.
type Provider struct {
    cfg    Config
    client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
    if cfg.Name == "" { cfg.Name = "GoogleFinance" }
    if cfg.Endpoint == "" { cfg.Endpoint = "https://www.google.com/finance/quote" }
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Resolve(ctx context.Context, symbol, exchange string) (provider.Partial, error) {
    quoteURL := fmt.Sprintf("%s/%s:%s",
        strings.TrimRight(p.cfg.Endpoint, "/"),
        url.PathEscape(ToGoogleSymbol(symbol)),
        url.PathEscape(MapExchange(exchange)))

    req, err := http.NewRequestWithContext(ctx, http.MethodGet, quoteURL, nil)
    if err != nil {
        return provider.Partial{}, err
    }
    // The quote page only renders the fundamentals block for browser-looking
    // requests.
    req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
    req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
    req.Header.Set("Accept-Language", "en-US,en;q=0.9")
    for k, v := range p.cfg.Headers { req.Header.Set(k, v) }

    resp, err := p.client.Do(ctx, req)
    if err != nil {
        return provider.Partial{}, err
    }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return provider.Partial{}, fmt.Errorf("Google Finance returned %d", resp.StatusCode)
    }

    body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
    if err != nil {
        return provider.Partial{}, fmt.Errorf("read body: %w", err)
    }

    return ParseFundamentals(string(body)), nil
}
