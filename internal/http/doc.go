// Package http provides an HTTP client configured for ActiBook viewer sites.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Timeout handling
//   - Proxy selection (none, system environment, or manual SOCKS5)
//   - Treating any non-2xx status as an error
//
// # Basic Usage
//
//	client, err := http.NewClient(settings)
//
//	// Fetch the viewer page
//	html, err := client.GetString(ctx, "https://example.com/book/index.html")
//
//	// Fetch a page image
//	data, err := client.Get(ctx, "https://example.com/book/books/images/2/1.jpg")
package http
