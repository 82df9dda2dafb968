package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("defaults without options", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "" {
			t.Errorf("ProxyAddress() = %q, expected empty", client.ProxyAddress())
		}
		if client.HTTPClient().Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, expected %v", client.HTTPClient().Timeout, DefaultTimeout)
		}
		if client.HTTPClient().Jar == nil {
			t.Error("expected cookie jar to be set")
		}
	})

	t.Run("valid proxy address", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(WithProxy("127.0.0.1:9050"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q, expected %q", client.ProxyAddress(), "127.0.0.1:9050")
		}
	})

	t.Run("invalid proxy address", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient(WithProxy("127.0.0.1"))
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("timeout option", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(WithTimeout(5 * time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.HTTPClient().Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, expected 5s", client.HTTPClient().Timeout)
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		valid   bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:9150", true},
		{"[::1]:1080", true},
		{"proxy.example.com:65535", true},
		{"", false},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()

			if got := isValidProxyAddress(tt.address); got != tt.valid {
				t.Errorf("isValidProxyAddress(%q) = %v, expected %v", tt.address, got, tt.valid)
			}
		})
	}
}

func TestClientFetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body and sends configured headers", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<a href="http://x/">x</a>`)
		}))
		defer server.Close()

		client, err := NewClient(
			WithUserAgent("test-agent"),
			WithCookie("session=abc"),
			WithHeaders(map[string]string{"X-Crawl": "yes"}),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body, err := client.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if body != `<a href="http://x/">x</a>` {
			t.Errorf("body = %q", body)
		}
		got := <-headers
		if ua := got.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q, expected %q", ua, "test-agent")
		}
		if cookie := got.Get("Cookie"); cookie != "session=abc" {
			t.Errorf("Cookie = %q, expected %q", cookie, "session=abc")
		}
		if custom := got.Get("X-Crawl"); custom != "yes" {
			t.Errorf("X-Crawl = %q, expected %q", custom, "yes")
		}
	})

	t.Run("default user agent", func(t *testing.T) {
		t.Parallel()

		agents := make(chan string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			agents <- r.Header.Get("User-Agent")
		}))
		defer server.Close()

		client, err := NewClient(WithUserAgent(""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := client.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if ua := <-agents; ua != DefaultUserAgent {
			t.Errorf("User-Agent = %q, expected %q", ua, DefaultUserAgent)
		}
	})

	t.Run("error status is a fetch error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = client.Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrHTTPStatus) {
			t.Fatalf("expected ErrHTTPStatus, got %v", err)
		}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("error %q should mention the status", err)
		}
	})

	t.Run("follows redirects", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusFound)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "moved")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body, err := client.Fetch(context.Background(), server.URL+"/old")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if body != "moved" {
			t.Errorf("body = %q, expected %q", body, "moved")
		}
	})

	t.Run("empty body is valid text", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body, err := client.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if body != "" {
			t.Errorf("body = %q, expected empty", body)
		}
	})

	t.Run("redirect loop is a fetch error", func(t *testing.T) {
		t.Parallel()

		var hops atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, fmt.Sprintf("/%d", hops.Add(1)), http.StatusFound)
		}))
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body, err := client.Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrTooManyRedirects) {
			t.Fatalf("expected ErrTooManyRedirects, got %v (body %q)", err, body)
		}
		if got := hops.Load(); got != defaultMaxRedirects {
			t.Errorf("expected %d requests, got %d", defaultMaxRedirects, got)
		}
	})

	t.Run("binary content type is not text", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
		}))
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = client.Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrBodyNotText) {
			t.Fatalf("expected ErrBodyNotText, got %v", err)
		}
		if !strings.Contains(err.Error(), "image/png") {
			t.Errorf("error %q should mention the content type", err)
		}
	})

	t.Run("decodes declared charset", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("caf\xe9"))
		}))
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body, err := client.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if body != "café" {
			t.Errorf("body = %q, expected %q", body, "café")
		}
	})

	t.Run("limits body size", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprint(w, "0123456789")
		}))
		defer server.Close()

		client, err := NewClient(WithMaxBodySize(4))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body, err := client.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if body != "0123" {
			t.Errorf("body = %q, expected %q", body, "0123")
		}
	})

	t.Run("malformed URL", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := client.Fetch(context.Background(), "http://[::1"); err == nil {
			t.Error("expected error for malformed URL")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := client.Fetch(ctx, server.URL); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("routes through SOCKS5 proxy", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "via proxy")
		}))
		defer server.Close()

		proxyAddr, connects := startSOCKS5Relay(t)

		client, err := NewClient(WithProxy(proxyAddr))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body, err := client.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if body != "via proxy" {
			t.Errorf("body = %q, expected %q", body, "via proxy")
		}
		if connects.Load() == 0 {
			t.Error("expected the request to go through the proxy")
		}
	})
}

func TestIsTextual(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"text/html; charset=utf-8", true},
		{"text/plain", true},
		{"application/xhtml+xml", true},
		{"application/xml", true},
		{"application/json", true},
		{"application/javascript", true},
		{"image/png", false},
		{"application/octet-stream", false},
		{"application/pdf", false},
		{";;;", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()

			if got := isTextual(tt.contentType); got != tt.want {
				t.Errorf("isTextual(%q) = %v, expected %v", tt.contentType, got, tt.want)
			}
		})
	}
}
