package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/maxpowa/actibook-downloader/internal/config"
	"golang.org/x/net/proxy"
)

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Client wraps HTTP operations with viewer-site configuration.
//
// Example usage:
//
//	client, err := NewClient(config.DefaultSettings())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Fetch HTML content
//	html, err := client.GetString(ctx, "https://example.com/book/index.html")
//
//	// Fetch binary content
//	data, err := client.Get(ctx, "https://example.com/book/books/images/2/1.jpg")
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP client from settings.
//
// The client is configured with:
//   - settings.Timeout() as the overall request timeout
//   - settings.UserAgent as the User-Agent header
//   - a proxy chosen by settings.ProxyType:
//     "none" disables proxies, "system" honours HTTP_PROXY/HTTPS_PROXY,
//     "manual" dials through the SOCKS5 proxy at settings.ProxyURL()
func NewClient(settings *config.Settings) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	switch settings.ProxyType {
	case config.ProxyNone:
		transport.Proxy = nil
	case config.ProxyManual:
		dialer, err := proxy.SOCKS5("tcp", settings.ProxyURL(), nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("configure SOCKS5 proxy (%s): %w", settings.ProxyURL(), err)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer(dialer)
	default:
		transport.Proxy = http.ProxyFromEnvironment
	}

	return NewClientWithHTTP(&http.Client{
		Transport: transport,
		Timeout:   settings.Timeout(),
	}, settings.UserAgent), nil
}

// NewClientWithHTTP wraps an existing *http.Client.
func NewClientWithHTTP(httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// Get performs a GET request and returns the response body as bytes.
//
// The request includes the configured User-Agent header.
//
// Returns an error if:
//   - The request fails
//   - The response status is not 2xx (a *StatusError)
//   - Reading the body fails
//
// Example:
//
//	data, err := client.Get(ctx, "https://example.com/hd/1.jpg")
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return io.ReadAll(resp.Body)
}

// GetString performs a GET request and returns the response body as a string.
//
// This is a convenience wrapper around Get for fetching text content like HTML.
func (c *Client) GetString(ctx context.Context, url string) (string, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
