package valuation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CachedQuote is the last resolved market state for a stock, as stored by the
// resolver. CMP zero is the "fetch failed" sentinel the resolver writes; a
// holding with no cache row at all has never been fetched. The two cases stay
// distinct all the way to the computed output.
type CachedQuote struct {
	CMP           decimal.Decimal
	PERatio       *float64
	LatestEarning *string
	LastError     *string
	UpdatedAt     time.Time
}

// Holding is one position joined with its stock and (optionally absent)
// cached quote.
type Holding struct {
	ID            int64
	StockID       int64
	Symbol        string
	Name          string
	Sector        string
	Exchange      string
	Quantity      decimal.Decimal
	PurchasePrice decimal.Decimal
	Cache         *CachedQuote
}

// ComputedHolding is a Holding projected into financial metrics. Pointer
// fields are nil when the metric cannot be derived (no cached price, or a
// zero-investment guard).
type ComputedHolding struct {
	ID               int64            `json:"id"`
	StockID          int64            `json:"stockId"`
	Symbol           string           `json:"symbol"`
	Name             string           `json:"name"`
	Sector           string           `json:"sector"`
	Exchange         string           `json:"exchange"`
	Quantity         decimal.Decimal  `json:"quantity"`
	PurchasePrice    decimal.Decimal  `json:"purchasePrice"`
	Investment       decimal.Decimal  `json:"investment"`
	PortfolioPercent decimal.Decimal  `json:"portfolioPercent"`
	CMP              *decimal.Decimal `json:"cmp"`
	PresentValue     *decimal.Decimal `json:"presentValue"`
	GainLoss         *decimal.Decimal `json:"gainLoss"`
	GainLossPercent  *decimal.Decimal `json:"gainLossPercent"`
	PERatio          *float64         `json:"peRatio"`
	LatestEarning    *string          `json:"latestEarning"`
	CacheUpdatedAt   *time.Time       `json:"cacheUpdatedAt"`
}

// SectorSummary aggregates computed holdings by raw sector label.
type SectorSummary struct {
	Sector               string          `json:"sector"`
	TotalInvestment      decimal.Decimal `json:"totalInvestment"`
	TotalPresentValue    decimal.Decimal `json:"totalPresentValue"`
	TotalGainLoss        decimal.Decimal `json:"totalGainLoss"`
	TotalGainLossPercent decimal.Decimal `json:"totalGainLossPercent"`
	HoldingCount         int             `json:"holdingCount"`
}

// View is the full computed portfolio.
type View struct {
	Holdings             []ComputedHolding `json:"holdings"`
	SectorSummary        []SectorSummary   `json:"sectorSummary"`
	TotalInvestment      decimal.Decimal   `json:"totalInvestment"`
	TotalPresentValue    decimal.Decimal   `json:"totalPresentValue"`
	TotalGainLoss        decimal.Decimal   `json:"totalGainLoss"`
	TotalGainLossPercent decimal.Decimal   `json:"totalGainLossPercent"`
}

var hundred = decimal.NewFromInt(100)

// Compute derives per-holding metrics, portfolio totals and the sector
// roll-up. Pure and deterministic: no I/O, no mutation of the input, identical
// input yields identical output. Holdings with an unknown price contribute
// zero present value but full cost, which deliberately depresses the aggregate
// gain/loss.
func Compute(holdings []Holding) View {
	totalInvestment := decimal.Zero
	for _, h := range holdings {
		totalInvestment = totalInvestment.Add(h.PurchasePrice.Mul(h.Quantity))
	}

	computed := make([]ComputedHolding, 0, len(holdings))
	totalPresentValue := decimal.Zero
	for _, h := range holdings {
		investment := h.PurchasePrice.Mul(h.Quantity)

		c := ComputedHolding{
			ID:            h.ID,
			StockID:       h.StockID,
			Symbol:        h.Symbol,
			Name:          h.Name,
			Sector:        h.Sector,
			Exchange:      h.Exchange,
			Quantity:      h.Quantity,
			PurchasePrice: h.PurchasePrice,
			Investment:    investment,
		}
		if totalInvestment.IsPositive() {
			c.PortfolioPercent = investment.Div(totalInvestment).Mul(hundred)
		}
		if h.Cache != nil {
			cmp := h.Cache.CMP
			present := cmp.Mul(h.Quantity)
			gain := present.Sub(investment)
			c.CMP = &cmp
			c.PresentValue = &present
			c.GainLoss = &gain
			if investment.IsPositive() {
				pct := gain.Div(investment).Mul(hundred)
				c.GainLossPercent = &pct
			}
			c.PERatio = h.Cache.PERatio
			c.LatestEarning = h.Cache.LatestEarning
			updated := h.Cache.UpdatedAt
			c.CacheUpdatedAt = &updated

			totalPresentValue = totalPresentValue.Add(present)
		}
		computed = append(computed, c)
	}

	totalGainLoss := totalPresentValue.Sub(totalInvestment)
	totalGainLossPercent := decimal.Zero
	if totalInvestment.IsPositive() {
		totalGainLossPercent = totalGainLoss.Div(totalInvestment).Mul(hundred)
	}

	return View{
		Holdings:             computed,
		SectorSummary:        sectorSummary(computed),
		TotalInvestment:      totalInvestment,
		TotalPresentValue:    totalPresentValue,
		TotalGainLoss:        totalGainLoss,
		TotalGainLossPercent: totalGainLossPercent,
	}
}

// sectorSummary groups by the stock's raw sector string. No normalization:
// differently-cased labels form separate groups.
func sectorSummary(holdings []ComputedHolding) []SectorSummary {
	type agg struct {
		investment decimal.Decimal
		present    decimal.Decimal
		count      int
	}
	bySector := make(map[string]*agg)
	for _, h := range holdings {
		a := bySector[h.Sector]
		if a == nil {
			a = &agg{investment: decimal.Zero, present: decimal.Zero}
			bySector[h.Sector] = a
		}
		a.investment = a.investment.Add(h.Investment)
		if h.PresentValue != nil {
			a.present = a.present.Add(*h.PresentValue)
		}
		a.count++
	}

	out := make([]SectorSummary, 0, len(bySector))
	for sector, a := range bySector {
		gain := a.present.Sub(a.investment)
		pct := decimal.Zero
		if a.investment.IsPositive() {
			pct = gain.Div(a.investment).Mul(hundred)
		}
		out = append(out, SectorSummary{
			Sector:               sector,
			TotalInvestment:      a.investment,
			TotalPresentValue:    a.present,
			TotalGainLoss:        gain,
			TotalGainLossPercent: pct,
			HoldingCount:         a.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sector < out[j].Sector })
	return out
}
