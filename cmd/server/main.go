package main

import (
    "compress/gzip"
    "context"
    "io"
    "log"
    "net/http"
    "os"
    "os/signal"
    "strings"
    "sync"
    "syscall"
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

func main() {
    // Config
    cfgPath := os.Getenv("CONFIG_FILE")
    cfg, err := config.Load(cfgPath)
    if err != nil { log.Fatalf("config: %v", err) }
    port := cfg.Server.Port
    timeoutSec := cfg.Server.RequestTimeoutSec

    if cfg.RapidAPI.Enabled && cfg.RapidAPI.APIKey == "" {
        log.Println("warning: rapidapi.enabled=true but RAPIDAPI_KEY not set; backup price source will report errors")
    }

    st, err := store.Open(cfg.Store.SQLitePath)
    if err != nil { log.Fatalf("store: %v", err) }
    defer st.Close()

    httpClient := httpx.New(time.Duration(timeoutSec) * time.Second)
    httpClient.UserAgent = "portfolio-tracker/1.0"

    providerDelay := time.Duration(cfg.Resolver.ProviderDelayMs) * time.Millisecond

    var primary provider.Provider
    if cfg.Yahoo.Enabled {
        primary = yahoo.New()
    }
    if primary == nil { log.Fatal("yahoo.enabled=false: no primary price source configured") }

    var fundamentals provider.Provider
    if cfg.GoogleFinance.Enabled {
        gf := googlefinance.New(googlefinance.Config{
            Name:     "GoogleFinance",
            Endpoint: cfg.GoogleFinance.Endpoint,
        }, httpClient)
        // the quote page is scrape-sensitive; gate consecutive hits
        fundamentals = &ratelimit.MinInterval{P: gf, Interval: providerDelay}
    }

    var backups []provider.Provider
    if cfg.RapidAPI.Enabled {
        rc, err := rapidyahoo.NewClient(
            cfg.RapidAPI.APIKey,
            rapidyahoo.WithHost(cfg.RapidAPI.Host),
            rapidyahoo.WithHTTPClient(httpClient.HTTP),
        )
        if err != nil { log.Fatalf("rapidapi client: %v", err) }
        var p provider.Provider = rapidyahoo.NewProvider(rc)
        p = &ratelimit.MinInterval{P: p, Interval: providerDelay}
        backups = append(backups, p)
    }

    res := resolver.New(primary, fundamentals, backups, st, st, resolver.Config{
        ProviderDelay: providerDelay,
        SymbolDelay:   time.Duration(cfg.Resolver.SymbolDelayMs) * time.Millisecond,
        NotFoundDelay: time.Duration(cfg.Resolver.NotFoundDelayMs) * time.Millisecond,
    })

    app := &app{store: st, resolver: res}

    mux := http.NewServeMux()
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.HandleFunc("/api/market/refresh", app.handleRefresh)
    mux.HandleFunc("/api/market/quote", app.handleQuote)
    mux.HandleFunc("/api/portfolio", app.handlePortfolio)
    mux.HandleFunc("/api/holdings", app.handleHoldings)
    mux.HandleFunc("/api/holdings/", app.handleHoldingByID)
    mux.HandleFunc("/api/stocks", app.handleStocks)

    srv := &http.Server{
        Addr:              ":" + port,
        Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(mux)))),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      10 * time.Minute, // refresh batches are paced and can run long
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        log.Printf("server listening on :%s", port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatalf("server: %v", err)
        }
    }()

    // graceful shutdown
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
}

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        // Basic CORS for browser usage; adjust as needed.
        w.Header().Set("Access-Control-Allow-Origin", "*")
        w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        // Prefer best speed to reduce CPU usage since payloads are JSON
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
    const maxBody = 1 << 20 // 1MB
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPatch) {
            r.Body = http.MaxBytesReader(w, r.Body, maxBody)
        }
        next.ServeHTTP(w, r)
    })
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                log.Printf("panic: %v", rec)
                http.Error(w, "internal error", http.StatusInternalServerError)
            }
        }()
        next.ServeHTTP(w, r)
    })
}
