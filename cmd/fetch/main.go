package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "os"
    "strings"
    "time"

    "portfoliotracker/internal/config"
    "portfoliotracker/internal/httpx"
    "portfoliotracker/internal/provider"
    "portfoliotracker/internal/provider/googlefinance"
    "portfoliotracker/internal/provider/ratelimit"
    "portfoliotracker/internal/provider/rapidyahoo"
    "portfoliotracker/internal/provider/yahoo"
    "portfoliotracker/internal/resolver"
    "portfoliotracker/internal/store"
)

// staticFinder supplies the exchange hint for symbols that are not in any
// store; the one-shot CLI has no database.
type staticFinder struct{ exchange string }

func (f staticFinder) FindStockBySymbol(_ context.Context, symbol string) (store.Stock, error) {
    return store.Stock{Symbol: symbol, Exchange: f.exchange}, nil
}

func main() {
    var symbolsCSV string
    var exchange string
    var timeout int
    var configPath string

    flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "AAPL"), "comma-separated ticker symbols")
    flag.StringVar(&exchange, "exchange", getenv("EXCHANGE", ""), "exchange hint for all symbols (e.g., NSE, NASDAQ)")
    flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
    flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
    flag.Parse()

    cfg, err := config.Load(configPath)
    if err != nil { log.Fatalf("config: %v", err) }
    if timeout != 0 { cfg.Server.RequestTimeoutSec = timeout }

    httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
    providerDelay := time.Duration(cfg.Resolver.ProviderDelayMs) * time.Millisecond

    if !cfg.Yahoo.Enabled { log.Fatal("yahoo.enabled=false: no primary price source configured") }
    primary := yahoo.New()

    var fundamentals provider.Provider
    if cfg.GoogleFinance.Enabled {
        gf := googlefinance.New(googlefinance.Config{Endpoint: cfg.GoogleFinance.Endpoint}, httpClient)
        fundamentals = &ratelimit.MinInterval{P: gf, Interval: providerDelay}
    }

    var backups []provider.Provider
    if cfg.RapidAPI.Enabled && cfg.RapidAPI.APIKey != "" {
        rc, err := rapidyahoo.NewClient(
            cfg.RapidAPI.APIKey,
            rapidyahoo.WithHost(cfg.RapidAPI.Host),
            rapidyahoo.WithHTTPClient(httpClient.HTTP),
        )
        if err != nil { log.Fatalf("rapidapi client: %v", err) }
        // free RapidAPI plans meter per second; keep bursts down
        backups = append(backups, &ratelimit.TokenBucketProvider{
            P:  rapidyahoo.NewProvider(rc),
            TB: ratelimit.NewTokenBucket(2, 1),
        })
    }

    symbols := resolver.NormalizeSymbols(splitCSV(symbolsCSV))
    if len(symbols) == 0 { log.Fatal("no symbols provided") }

    // GetQuote never writes anywhere, so the CLI needs no cache store.
    res := resolver.New(primary, fundamentals, backups, staticFinder{exchange: exchange}, nil, resolver.Config{})

    ctx, cancel := context.WithTimeout(context.Background(), time.Duration(len(symbols)*timeout)*time.Second)
    defer cancel()

    quotes := make([]resolver.Quote, 0, len(symbols))
    for _, sym := range symbols {
        q := res.GetQuote(ctx, sym)
        if q.Error != "" {
            log.Printf("%s: %s", sym, q.Error)
        }
        quotes = append(quotes, q)
    }

    out := struct {
        Quotes []resolver.Quote `json:"quotes"`
    }{Quotes: quotes}
    b, _ := json.MarshalIndent(out, "", "  ")
    fmt.Println(string(b))
}

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}

func getenv(key, def string) string { if v := os.Getenv(key); v != "" { return v }; return def }
func getenvInt(key string, def int) int {
    if v := os.Getenv(key); v != "" {
        var x int
        _, _ = fmt.Sscanf(v, "%d", &x)
        if x != 0 { return x }
    }
    return def
}
