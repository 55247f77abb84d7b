package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "strings"
)

type Server struct {
    Port              string `json:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Store struct {
    SQLitePath string `json:"sqlite_path"`
}

type Yahoo struct {
    Enabled bool `json:"enabled"`
}

type GoogleFinance struct {
    Enabled  bool   `json:"enabled"`
    Endpoint string `json:"endpoint"`
}

type RapidAPI struct {
    Enabled bool   `json:"enabled"`
    APIKey  string `json:"api_key"`
    Host    string `json:"host"`
}

// Resolver holds the pacing knobs for the sequential refresh loop.
type Resolver struct {
    ProviderDelayMs int `json:"provider_delay_ms"`
    SymbolDelayMs   int `json:"symbol_delay_ms"`
    NotFoundDelayMs int `json:"not_found_delay_ms"`
}

type Config struct {
    Server        Server        `json:"server"`
    Store         Store         `json:"store"`
    Yahoo         Yahoo         `json:"yahoo"`
    GoogleFinance GoogleFinance `json:"google_finance"`
    RapidAPI      RapidAPI      `json:"rapidapi"`
    Resolver      Resolver      `json:"resolver"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 10},
        Store:  Store{SQLitePath: "./data/portfolio.db"},
        Yahoo:  Yahoo{Enabled: true},
        GoogleFinance: GoogleFinance{
            Enabled:  true,
            Endpoint: "https://www.google.com/finance/quote",
        },
        RapidAPI: RapidAPI{
            Enabled: true,
            Host:    "yh-finance.p.rapidapi.com",
        },
        Resolver: Resolver{
            ProviderDelayMs: 400,
            SymbolDelayMs:   300,
            NotFoundDelayMs: 100,
        },
    }
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := json.Unmarshal(b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    return cfg, nil
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    if v := os.Getenv("SQLITE_PATH"); v != "" { cfg.Store.SQLitePath = v }
    if v := os.Getenv("YAHOO_ENABLED"); v != "" { setBool(&cfg.Yahoo.Enabled, v) }
    if v := os.Getenv("GOOGLE_FINANCE_ENABLED"); v != "" { setBool(&cfg.GoogleFinance.Enabled, v) }
    if v := os.Getenv("GOOGLE_FINANCE_ENDPOINT"); v != "" { cfg.GoogleFinance.Endpoint = v }
    if v := os.Getenv("RAPIDAPI_ENABLED"); v != "" { setBool(&cfg.RapidAPI.Enabled, v) }
    // RAPID_KEY is the legacy variable name; RAPIDAPI_KEY wins when both are set.
    if v := os.Getenv("RAPID_KEY"); v != "" { cfg.RapidAPI.APIKey = v }
    if v := os.Getenv("RAPIDAPI_KEY"); v != "" { cfg.RapidAPI.APIKey = v }
    if v := os.Getenv("RAPIDAPI_HOST"); v != "" { cfg.RapidAPI.Host = v }
    if v := os.Getenv("PROVIDER_DELAY_MS"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Resolver.ProviderDelayMs = x }
    }
    if v := os.Getenv("SYMBOL_DELAY_MS"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Resolver.SymbolDelayMs = x }
    }
    if v := os.Getenv("NOT_FOUND_DELAY_MS"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Resolver.NotFoundDelayMs = x }
    }
}

func setBool(dst *bool, v string) {
    switch strings.ToLower(v) {
    case "1", "true", "yes", "y":
        *dst = true
    case "0", "false", "no", "n":
        *dst = false
    }
}
