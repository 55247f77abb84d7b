package rapidyahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// realtime reports whether the configured host is one of the "real-time"
// gateways, which expose a different path layout than the classic yh-finance
// host.
func (c *Client) realtime() bool {
	return strings.Contains(c.host, "yahoo-finance-real-time")
}

// QuotePrice retrieves the current market price for a symbol. The response
// shape varies by host and plan, so the price is searched across the known
// layouts; only a strictly positive number counts as found.
func (c *Client) QuotePrice(ctx context.Context, symbol string) (float64, error) {
	if c.key == "" {
		return 0, ErrNotConfigured
	}

	var path string
	if c.realtime() {
		path = "/stock/get-quote?symbol=" + url.QueryEscape(symbol)
	} else {
		path = "/stock/v2/get-summary?symbol=" + url.QueryEscape(symbol)
	}

	res, err := c.get(ctx, path)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		// Real-time hosts answer 404 for symbols they only carry as option
		// underlyings; the options endpoint still embeds the quote.
		if c.realtime() && res.StatusCode == http.StatusNotFound {
			if cmp, ok := c.optionsFallback(ctx, symbol); ok {
				return cmp, nil
			}
		}
		return 0, fmt.Errorf("RapidAPI returned %d", res.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("decoding quote response: %w", err)
	}

	if cmp := extractPrice(data); cmp != nil {
		return *cmp, nil
	}
	if cmp := extractPrice(optionChainQuote(data)); cmp != nil {
		return *cmp, nil
	}
	return 0, fmt.Errorf("invalid or missing price in response")
}

func (c *Client) optionsFallback(ctx context.Context, symbol string) (float64, bool) {
	path := "/stock/get-options?symbol=" + url.QueryEscape(symbol) + "&lang=en-US&region=US"
	res, err := c.get(ctx, path)
	if err != nil {
		return 0, false
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0, false
	}
	var data map[string]any
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return 0, false
	}
	if cmp := extractPrice(data); cmp != nil {
		return *cmp, true
	}
	if cmp := extractPrice(optionChainQuote(data)); cmp != nil {
		return *cmp, true
	}
	return 0, false
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	reqURL := fmt.Sprintf("https://%s%s", c.host, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("x-rapidapi-key", c.key)
	req.Header.Set("x-rapidapi-host", c.host)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	return res, nil
}

// extractPrice searches the known response layouts for a positive market
// price. Values may arrive as raw numbers or as numeric strings; zero and
// negative values are treated as not found.
func extractPrice(data map[string]any) *float64 {
	if data == nil {
		return nil
	}
	candidates := []any{
		dig(data, "price", "regularMarketPrice", "raw"),
		dig(data, "price", "regularMarketPrice"),
		dig(data, "regularMarketPrice", "raw"),
		dig(data, "regularMarketPrice"),
		digIndex(data, "result", 0, "regularMarketPrice"),
	}
	// quoteResponse.result[0].regularMarketPrice
	if qr := asMap(data["quoteResponse"]); qr != nil {
		if rs, ok := qr["result"].([]any); ok && len(rs) > 0 {
			if r0 := asMap(rs[0]); r0 != nil {
				candidates = append(candidates, r0["regularMarketPrice"])
			}
		}
	}
	for _, v := range candidates {
		if p := asPositive(v); p != nil {
			return p
		}
	}
	return nil
}

// optionChainQuote returns optionChain.result[0].quote when present.
func optionChainQuote(data map[string]any) map[string]any {
	oc := asMap(data["optionChain"])
	if oc == nil {
		return nil
	}
	rs, ok := oc["result"].([]any)
	if !ok || len(rs) == 0 {
		return nil
	}
	r0 := asMap(rs[0])
	if r0 == nil {
		return nil
	}
	return asMap(r0["quote"])
}

func dig(data map[string]any, keys ...string) any {
	var cur any = data
	for _, k := range keys {
		m := asMap(cur)
		if m == nil {
			return nil
		}
		cur = m[k]
	}
	return cur
}

func digIndex(data map[string]any, key string, idx int, sub string) any {
	rs, ok := data[key].([]any)
	if !ok || len(rs) <= idx {
		return nil
	}
	m := asMap(rs[idx])
	if m == nil {
		return nil
	}
	return m[sub]
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asPositive(v any) *float64 {
	switch x := v.(type) {
	case float64:
		if x > 0 {
			return &x
		}
	case json.Number:
		if f, err := x.Float64(); err == nil && f > 0 {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil && f > 0 {
			return &f
		}
	}
	return nil
}
