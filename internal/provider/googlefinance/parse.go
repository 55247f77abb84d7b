package googlefinance

import (
    "fmt"
    "regexp"
    "strconv"
    "strings"

    "portfoliotracker/internal/provider"
)

// Best-effort extraction from the quote page markup. Every pattern degrades to
// nil on no match; absence of a field is not an error.

var (
    suffixRe = regexp.MustCompile(`(?i)\.(NS|BO|NSE|BSE|NASDAQ|NYSE|BOM)$`)
    peRe     = regexp.MustCompile(`(?is)P/E\s*ratio.{0,150}?(\d+\.?\d*)`)
    fiscalRe = regexp.MustCompile(`(?i)Fiscal\s+Q\d+\s+\d{4}\s+ended\s+(\d{1,2})/(\d{1,2})/(\d{2,4})`)
    monthRe  = regexp.MustCompile(`(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(\d{4})`)
)

var monthNum = map[string]string{
    "Jan": "01", "Feb": "02", "Mar": "03", "Apr": "04", "May": "05", "Jun": "06",
    "Jul": "07", "Aug": "08", "Sep": "09", "Oct": "10", "Nov": "11", "Dec": "12",
}

// ToGoogleSymbol strips a trailing exchange suffix token from the symbol.
// A symbol that is nothing but a suffix is returned unchanged.
func ToGoogleSymbol(symbol string) string {
    s := strings.TrimSpace(suffixRe.ReplaceAllString(symbol, ""))
    if s == "" { return symbol }
    return s
}

// MapExchange maps an internal exchange code into Google's vocabulary.
func MapExchange(exchange string) string {
    if g, ok := exchangeMap[exchange]; ok {
        return g
    }
    if exchange != "" {
        return exchange
    }
    return defaultExchange
}

// ParseFundamentals extracts the P/E ratio and latest earnings date from page
// markup. Pure; unit-tested against literal fixtures.
func ParseFundamentals(html string) provider.Partial {
    return provider.Partial{
        PERatio:      ParsePERatio(html),
        EarningsDate: ParseLatestEarning(html),
    }
}

// ParsePERatio finds a decimal within a bounded window after a "P/E ratio"
// label.
func ParsePERatio(html string) *float64 {
    m := peRe.FindStringSubmatch(html)
    if m == nil {
        return nil
    }
    v, err := strconv.ParseFloat(m[1], 64)
    if err != nil {
        return nil
    }
    return provider.Float(v)
}

// ParseLatestEarning normalizes either "Fiscal Qn YYYY ended M/D/Y" or a bare
// "Mon YYYY" into YYYY-MM-DD. Two-digit years are taken as 20xx; the month-only
// form pins the day to 01.
func ParseLatestEarning(html string) *string {
    if m := fiscalRe.FindStringSubmatch(html); m != nil {
        mon, _ := strconv.Atoi(m[1])
        day, _ := strconv.Atoi(m[2])
        year := m[3]
        if len(year) == 2 { year = "20" + year }
        d := fmt.Sprintf("%s-%02d-%02d", year, mon, day)
        return provider.String(d)
    }
    if m := monthRe.FindStringSubmatch(html); m != nil {
        d := fmt.Sprintf("%s-%s-01", m[2], monthNum[m[1]])
        return provider.String(d)
    }
    return nil
}
