// Package transport provides the HTTP fetch capability used by the crawler.
//
// A Client issues GET requests, applies the configured User-Agent, headers
// and cookie, follows redirects, limits the body size and decodes the body
// to UTF-8 text. It is safe for concurrent use and relies on the standard
// library connection pool.
//
// Requests can be routed through a SOCKS5 proxy. CheckProxy verifies that an
// address speaks SOCKS5 before a crawl starts, and EmbeddedTor starts a
// private Tor daemon whose SOCKS port can be used as that proxy.
//
// Every error from Fetch is a fetch failure to the crawler, whether it comes
// from the network, an HTTP error status (ErrHTTPStatus), a redirect loop
// (ErrTooManyRedirects) or a non-text body (ErrBodyNotText). Nothing here
// retries.
package transport
