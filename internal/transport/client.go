package transport

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
)

// Defaults for a Client built without options.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "linkspider/1.0 (+https://github.com/nao1215/linkspider)"
	DefaultMaxBodySize  = 5 * 1024 * 1024
	defaultMaxRedirects = 10
)

// Client fetches pages over HTTP. It implements crawler.Fetcher.
type Client struct {
	httpClient *http.Client

	// userAgent is sent with every request.
	userAgent string

	// headers are added to every request.
	headers map[string]string

	// cookie is sent as the Cookie header when set.
	cookie string

	// maxBodySize caps how many bytes of a body are read.
	maxBodySize int64

	// timeout bounds a whole request, including reading the body.
	// Zero means no timeout.
	timeout time.Duration

	// proxyAddress routes requests through a SOCKS5 proxy when set.
	proxyAddress string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithCookie sets the Cookie header, e.g. "session=abc; lang=en".
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithMaxBodySize limits the number of body bytes read per response.
// Values below 1 keep the default.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithProxy routes all requests through the SOCKS5 proxy at address.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// NewClient creates a Client. It returns ErrInvalidProxyAddress if a proxy
// was configured with a malformed address. The proxy itself is not
// contacted; use CheckProxy for that.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		userAgent:   DefaultUserAgent,
		headers:     make(map[string]string),
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = dialContext(dialer)
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= defaultMaxRedirects {
				return fmt.Errorf("%w: stopped after %d redirects", ErrTooManyRedirects, len(via))
			}
			return nil
		},
	}

	return c, nil
}

// dialContext adapts a proxy.Dialer to http.Transport.DialContext.
func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// ProxyAddress returns the configured SOCKS5 proxy, or "" for direct connections.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// HTTPClient returns the underlying *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Fetch issues a GET request for pageURL and returns the body as UTF-8 text.
//
// Responses with a 4xx or 5xx status fail with ErrHTTPStatus, and more than
// ten redirects fail with ErrTooManyRedirects. Bodies whose Content-Type is
// not textual fail with ErrBodyNotText. Text is decoded according to the
// Content-Type charset (or sniffed), and at most the configured number of
// bytes is read. An empty body is valid text.
func (c *Client) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextual(contentType) {
		return "", fmt.Errorf("%w: content type %s", ErrBodyNotText, contentType)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}

	enc, _, _ := charset.DetermineEncoding(raw, contentType)
	body, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBodyNotText, err)
	}

	return string(body), nil
}

// isTextual reports whether a Content-Type names a text format links can be
// extracted from. A missing Content-Type is treated as text.
func isTextual(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	for _, marker := range []string{"html", "xml", "json", "javascript"} {
		if strings.Contains(mediaType, marker) {
			return true
		}
	}
	return false
}
