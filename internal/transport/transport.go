// Package transport is the HTTP side of the client: a pooled keep-alive
// client for submitting messages and a bounded fetcher for URL attachments.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// MaxRedirects bounds redirects followed while fetching an attachment URL.
	MaxRedirects = 5
	// FetchTimeout bounds waiting for an attachment's response headers, and
	// separately reading its body from the first read on.
	FetchTimeout = 10 * time.Second

	defaultTimeout   = 60 * time.Second
	maxErrorBodySize = 4 << 10
)

// ErrTooManyRedirects is returned by Fetch when the redirect chain is longer
// than MaxRedirects.
var ErrTooManyRedirects = errors.New("stopped after too many redirects")

// StatusError is returned when the remote side answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client performs HTTP requests on behalf of the message sender.
type Client struct {
	http         *http.Client
	fetch        *http.Client
	fetchTimeout time.Duration
	userAgent    string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the pooled client used for submissions.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTimeout sets the overall timeout for submissions.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithFetchTimeout overrides FetchTimeout for attachment fetches.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// New creates a Client sharing one keep-alive transport between submissions
// and attachment fetches.
func New(opts ...Option) *Client {
	pool := newPooledTransport()
	c := &Client{
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: pool,
		},
		fetchTimeout: FetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.http.Transport
	if base == nil {
		base = pool
	}
	c.fetch = &http.Client{
		Transport: base,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > MaxRedirects {
				return fmt.Errorf("%w (%d)", ErrTooManyRedirects, MaxRedirects)
			}
			return nil
		},
	}
	return c
}

// newPooledTransport mirrors a keep-alive agent: a large pool of sockets with
// a handful kept idle per host.
func newPooledTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Perform sends a request and returns the response. Non-2xx responses are
// converted into *StatusError and their body is closed.
func (c *Client) Perform(ctx context.Context, method, url string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log.Debug("Performing request", "method", method, "url", url)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Fetch downloads url following at most MaxRedirects redirects. The response
// headers must arrive within the fetch timeout, and the body must then be read
// within the same timeout counted from its first read, so bodies read one
// after another do not share a deadline. The caller must close the returned
// body.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log.Debug("Fetching attachment", "url", url)

	headerTimer := time.AfterFunc(c.fetchTimeout, cancel)
	resp, err := c.fetch.Do(req)
	timedOut := !headerTimer.Stop()
	if err == nil && timedOut {
		resp.Body.Close()
	}
	if err != nil || timedOut {
		cancel()
		if timedOut {
			return nil, fmt.Errorf("GET %s: no response within %s: %w", url, c.fetchTimeout, context.DeadlineExceeded)
		}
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		cancel()
		return nil, err
	}
	return &deadlineBody{ReadCloser: resp.Body, timeout: c.fetchTimeout, cancel: cancel}, nil
}

// deadlineBody cancels its request when reading takes longer than timeout
// after the first Read, or when it is closed.
type deadlineBody struct {
	io.ReadCloser
	timeout time.Duration
	cancel  context.CancelFunc

	once  sync.Once
	timer *time.Timer
	mu    sync.Mutex
}

func (b *deadlineBody) Read(p []byte) (int, error) {
	b.once.Do(func() {
		b.mu.Lock()
		b.timer = time.AfterFunc(b.timeout, b.cancel)
		b.mu.Unlock()
	})
	return b.ReadCloser.Read(p)
}

func (b *deadlineBody) Close() error {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &StatusError{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}
}
