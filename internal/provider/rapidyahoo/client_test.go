package rapidyahoo_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"portfoliotracker/internal/provider/rapidyahoo"
)

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestQuotePrice_SummaryShape(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPClient(ctrl)
	mockHTTP.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "yh-finance.p.rapidapi.com", req.URL.Host)
		require.Equal(t, "/stock/v2/get-summary", req.URL.Path)
		require.Equal(t, "AAPL", req.URL.Query().Get("symbol"))
		require.Equal(t, "test-key", req.Header.Get("x-rapidapi-key"))
		require.Equal(t, "yh-finance.p.rapidapi.com", req.Header.Get("x-rapidapi-host"))
		return jsonResponse(http.StatusOK, `{"price":{"regularMarketPrice":{"raw":123.45}}}`), nil
	})

	client, err := rapidyahoo.NewClient("test-key", rapidyahoo.WithHTTPClient(mockHTTP))
	require.NoError(t, err)

	cmp, err := client.QuotePrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, 123.45, cmp)
}

func TestQuotePrice_FlatShapes(t *testing.T) {
	bodies := []string{
		`{"price":{"regularMarketPrice":88.5}}`,
		`{"regularMarketPrice":{"raw":88.5}}`,
		`{"regularMarketPrice":88.5}`,
		`{"regularMarketPrice":"88.5"}`,
		`{"result":[{"regularMarketPrice":88.5}]}`,
		`{"quoteResponse":{"result":[{"regularMarketPrice":88.5}]}}`,
		`{"optionChain":{"result":[{"quote":{"regularMarketPrice":88.5}}]}}`,
	}
	for _, body := range bodies {
		ctrl := gomock.NewController(t)
		mockHTTP := NewMockHTTPClient(ctrl)
		mockHTTP.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusOK, body), nil)

		client, err := rapidyahoo.NewClient("test-key", rapidyahoo.WithHTTPClient(mockHTTP))
		require.NoError(t, err)

		cmp, err := client.QuotePrice(context.Background(), "AAPL")
		require.NoError(t, err, "body %s", body)
		require.Equal(t, 88.5, cmp, "body %s", body)
	}
}

func TestQuotePrice_ZeroOrMissingPriceRejected(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"price":{}}`,
		`{"price":{"regularMarketPrice":{"raw":0}}}`,
		`{"regularMarketPrice":-4.2}`,
		`{"regularMarketPrice":"not a number"}`,
	}
	for _, body := range bodies {
		ctrl := gomock.NewController(t)
		mockHTTP := NewMockHTTPClient(ctrl)
		mockHTTP.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusOK, body), nil)

		client, err := rapidyahoo.NewClient("test-key", rapidyahoo.WithHTTPClient(mockHTTP))
		require.NoError(t, err)

		_, err = client.QuotePrice(context.Background(), "AAPL")
		require.Error(t, err, "body %s", body)
		require.Contains(t, err.Error(), "invalid or missing price", "body %s", body)
	}
}

func TestQuotePrice_NotConfigured(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPClient(ctrl)
	// no Do expectations: a disabled client must not reach the network

	client, err := rapidyahoo.NewClient("", rapidyahoo.WithHTTPClient(mockHTTP))
	require.NoError(t, err)

	_, err = client.QuotePrice(context.Background(), "AAPL")
	require.ErrorIs(t, err, rapidyahoo.ErrNotConfigured)
}

func TestQuotePrice_Non200(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPClient(ctrl)
	mockHTTP.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusInternalServerError, `{}`), nil)

	client, err := rapidyahoo.NewClient("test-key", rapidyahoo.WithHTTPClient(mockHTTP))
	require.NoError(t, err)

	_, err = client.QuotePrice(context.Background(), "AAPL")
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestQuotePrice_RealtimeHostPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPClient(ctrl)
	mockHTTP.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/stock/get-quote", req.URL.Path)
		return jsonResponse(http.StatusOK, `{"regularMarketPrice":55.5}`), nil
	})

	client, err := rapidyahoo.NewClient("test-key",
		rapidyahoo.WithHost("yahoo-finance-real-time1.p.rapidapi.com"),
		rapidyahoo.WithHTTPClient(mockHTTP))
	require.NoError(t, err)

	cmp, err := client.QuotePrice(context.Background(), "TSLA")
	require.NoError(t, err)
	require.Equal(t, 55.5, cmp)
}

func TestQuotePrice_RealtimeNotFoundFallsBackToOptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPClient(ctrl)

	quoteCall := mockHTTP.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/stock/get-quote", req.URL.Path)
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})
	mockHTTP.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/stock/get-options", req.URL.Path)
		require.Equal(t, "en-US", req.URL.Query().Get("lang"))
		body := `{"optionChain":{"result":[{"quote":{"regularMarketPrice":{"raw":210.3}}}]}}`
		return jsonResponse(http.StatusOK, body), nil
	}).After(quoteCall)

	client, err := rapidyahoo.NewClient("test-key",
		rapidyahoo.WithHost("yahoo-finance-real-time1.p.rapidapi.com"),
		rapidyahoo.WithHTTPClient(mockHTTP))
	require.NoError(t, err)

	cmp, err := client.QuotePrice(context.Background(), "SPY")
	require.NoError(t, err)
	require.Equal(t, 210.3, cmp)
}

func TestQuotePrice_ClassicHostDoesNotFallBackOn404(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPClient(ctrl)
	mockHTTP.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusNotFound, `{}`), nil)

	client, err := rapidyahoo.NewClient("test-key", rapidyahoo.WithHTTPClient(mockHTTP))
	require.NoError(t, err)

	_, err = client.QuotePrice(context.Background(), "AAPL")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestQuotePrice_ExtraHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPClient(ctrl)
	mockHTTP.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "yes", req.Header.Get("X-Extra"))
		return jsonResponse(http.StatusOK, `{"regularMarketPrice":1.5}`), nil
	})

	client, err := rapidyahoo.NewClient("test-key",
		rapidyahoo.WithHTTPClient(mockHTTP),
		rapidyahoo.WithHeader(http.Header{"X-Extra": []string{"yes"}}))
	require.NoError(t, err)

	_, err = client.QuotePrice(context.Background(), "AAPL")
	require.NoError(t, err)
}

func TestProviderResolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPClient(ctrl)
	mockHTTP.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusOK, `{"regularMarketPrice":64.2}`), nil)

	client, err := rapidyahoo.NewClient("test-key", rapidyahoo.WithHTTPClient(mockHTTP))
	require.NoError(t, err)

	p := rapidyahoo.NewProvider(client)
	require.Equal(t, "RapidAPI", p.Name())

	part, err := p.Resolve(context.Background(), "AAPL", "NASDAQ")
	require.NoError(t, err)
	require.NotNil(t, part.Price)
	require.Equal(t, 64.2, *part.Price)
	require.Nil(t, part.PERatio)
	require.Nil(t, part.EarningsDate)
}
