package main

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"

    "github.com/shopspring/decimal"

    "portfoliotracker/internal/resolver"
    "portfoliotracker/internal/store"
    "portfoliotracker/internal/valuation"
)

type app struct {
    store    *store.Store
    resolver *resolver.Resolver
}

type refreshBody struct {
    Symbols []string `json:"symbols"`
    User    string   `json:"user"`
}

func (a *app) handleRefresh(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    var b refreshBody
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&b); err != nil {
        writeError(w, http.StatusBadRequest, "invalid JSON body")
        return
    }

    symbols := b.Symbols
    if len(symbols) == 0 && b.User != "" {
        p, err := a.store.FindPortfolioByUser(r.Context(), b.User)
        if err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        symbols, err = a.store.SymbolsForPortfolio(r.Context(), p.ID)
        if err != nil {
            writeError(w, http.StatusInternalServerError, err.Error())
            return
        }
    }

    res, err := a.resolver.Refresh(r.Context(), symbols)
    if err != nil {
        if errors.Is(err, resolver.ErrNoSymbols) {
            writeError(w, http.StatusBadRequest, err.Error())
            return
        }
        writeError(w, http.StatusInternalServerError, err.Error())
        return
    }
    writeJSON(w, http.StatusOK, res)
}

func (a *app) handleQuote(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    symbol := r.URL.Query().Get("symbol")
    if strings.TrimSpace(symbol) == "" {
        writeError(w, http.StatusBadRequest, "missing symbol query param")
        return
    }
    // on-demand lookup; deliberately never touches the cache
    writeJSON(w, http.StatusOK, a.resolver.GetQuote(r.Context(), symbol))
}

type portfolioResponse struct {
    store.Portfolio
    valuation.View
}

func (a *app) handlePortfolio(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodGet:
        user := r.URL.Query().Get("user")
        p, err := a.store.EnsurePortfolio(r.Context(), user, "")
        if err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        holdings, err := a.store.ListHoldingsDetail(r.Context(), p.ID)
        if err != nil {
            writeError(w, http.StatusInternalServerError, err.Error())
            return
        }
        writeJSON(w, http.StatusOK, portfolioResponse{Portfolio: p, View: valuation.Compute(holdings)})

    case http.MethodPatch:
        var b struct {
            User string `json:"user"`
            Name string `json:"name"`
        }
        if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
            writeError(w, http.StatusBadRequest, "invalid JSON body")
            return
        }
        p, err := a.store.FindPortfolioByUser(r.Context(), b.User)
        if err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        if err := a.store.RenamePortfolio(r.Context(), p.ID, b.Name); err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        p.Name = strings.TrimSpace(b.Name)
        writeJSON(w, http.StatusOK, p)

    default:
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
    }
}

type addHoldingBody struct {
    User          string           `json:"user"`
    Symbol        string           `json:"symbol"`
    Quantity      *decimal.Decimal `json:"quantity"`
    PurchasePrice *decimal.Decimal `json:"purchasePrice"`
    Name          string           `json:"name"`
    Sector        string           `json:"sector"`
    Exchange      string           `json:"exchange"`
}

func (a *app) handleHoldings(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodGet:
        user := r.URL.Query().Get("user")
        p, err := a.store.EnsurePortfolio(r.Context(), user, "")
        if err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        holdings, err := a.store.ListHoldingsDetail(r.Context(), p.ID)
        if err != nil {
            writeError(w, http.StatusInternalServerError, err.Error())
            return
        }
        view := valuation.Compute(holdings)
        writeJSON(w, http.StatusOK, map[string]any{
            "portfolioId": p.ID,
            "holdings":    view.Holdings,
        })

    case http.MethodPost:
        var b addHoldingBody
        if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
            writeError(w, http.StatusBadRequest, "invalid JSON body")
            return
        }
        if strings.TrimSpace(b.Symbol) == "" || b.Quantity == nil || b.PurchasePrice == nil {
            writeError(w, http.StatusBadRequest, "symbol, quantity, and purchasePrice are required")
            return
        }
        p, err := a.store.EnsurePortfolio(r.Context(), b.User, "")
        if err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        st, err := a.store.UpsertStockBySymbol(r.Context(), b.Symbol, b.Name, b.Sector, b.Exchange)
        if err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        h, err := a.store.AddHolding(r.Context(), p.ID, st.ID, *b.Quantity, *b.PurchasePrice)
        if err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        writeJSON(w, http.StatusCreated, map[string]any{"holding": h, "stock": st})

    default:
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
    }
}

func (a *app) handleHoldingByID(w http.ResponseWriter, r *http.Request) {
    idStr := strings.TrimPrefix(r.URL.Path, "/api/holdings/")
    id, err := strconv.ParseInt(idStr, 10, 64)
    if err != nil || id <= 0 {
        writeError(w, http.StatusBadRequest, "invalid holding id")
        return
    }
    user := r.URL.Query().Get("user")
    p, err := a.store.FindPortfolioByUser(r.Context(), user)
    if err != nil {
        writeError(w, statusFromErr(err), err.Error())
        return
    }

    switch r.Method {
    case http.MethodPatch:
        var b struct {
            Quantity      *decimal.Decimal `json:"quantity"`
            PurchasePrice *decimal.Decimal `json:"purchasePrice"`
        }
        if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
            writeError(w, http.StatusBadRequest, "invalid JSON body")
            return
        }
        h, err := a.store.UpdateHolding(r.Context(), p.ID, id, b.Quantity, b.PurchasePrice)
        if err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        writeJSON(w, http.StatusOK, h)

    case http.MethodDelete:
        if err := a.store.DeleteHolding(r.Context(), p.ID, id); err != nil {
            writeError(w, statusFromErr(err), err.Error())
            return
        }
        w.WriteHeader(http.StatusNoContent)

    default:
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
    }
}

func (a *app) handleStocks(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    var stocks []store.Stock
    var err error
    if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
        stocks, err = a.store.SearchStocks(r.Context(), q, 20)
    } else {
        stocks, err = a.store.ListStocks(r.Context())
    }
    if err != nil {
        writeError(w, http.StatusInternalServerError, err.Error())
        return
    }
    if stocks == nil { stocks = []store.Stock{} }
    writeJSON(w, http.StatusOK, map[string]any{"stocks": stocks})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.WriteHeader(code)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
    writeJSON(w, code, map[string]string{"error": msg})
}

func statusFromErr(err error) int {
    var ve *store.ValidationError
    switch {
    case errors.As(err, &ve):
        return http.StatusBadRequest
    case errors.Is(err, store.ErrPortfolioNotFound),
        errors.Is(err, store.ErrHoldingNotFound),
        errors.Is(err, store.ErrStockNotFound):
        return http.StatusNotFound
    default:
        return http.StatusInternalServerError
    }
}
