package rapidyahoo

import (
	"errors"
	"net/http"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=rapidyahoo_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrNotConfigured is returned by every call when the client was built without
// an API key. The adapter stays wired into the fallback chain but always
// resolves to a provider error.
var ErrNotConfigured = errors.New("RAPIDAPI_KEY not configured")

const defaultHost = "yh-finance.p.rapidapi.com"

// Client is a client for the RapidAPI Yahoo Finance gateways.
type Client struct {
	// host is the RapidAPI host serving the Yahoo data.
	host string
	// key is the RapidAPI key; empty means the client is disabled.
	key string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// ClientOption is a configuration option for the RapidAPI client.
type ClientOption func(*Client)

// WithHost sets the RapidAPI host.
func WithHost(host string) ClientOption {
	return func(c *Client) {
		if host != "" {
			c.host = host
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new RapidAPI Yahoo Finance client.
func NewClient(key string, options ...ClientOption) (*Client, error) {
	var client = &Client{
		host:       defaultHost,
		key:        key,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}
