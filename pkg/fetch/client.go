package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"forumscraper/pkg/config"
	"forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/ratelimit"
	"forumscraper/pkg/retry"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = config.DefaultUserAgent

// maxBodyBytes bounds how much of a single response is read into memory
const maxBodyBytes = 64 << 20

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// MinBytes rejects image bodies of at most this many bytes; 0 disables the check
	MinBytes    int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Limiter     ratelimit.Limiter
	HTTPClient  *http.Client
	Logger      logger.Logger
}

// Client downloads pages and images over HTTP with bounded retries
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	retrier    *retry.Retrier
	limiter    ratelimit.Limiter
	minBytes   int
	logger     logger.Logger
}

// NewClient creates a client from opts, filling unset fields with defaults
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
		retrier: retry.NewRetrier(&retry.Config{
			MaxAttempts: opts.MaxAttempts,
			Backoff:     retry.NewExponentialBackoff(opts.BaseDelay, opts.MaxDelay),
			RetryIf:     errors.IsRetryable,
			Logger:      opts.Logger,
		}),
		limiter:  opts.Limiter,
		minBytes: opts.MinBytes,
		logger:   opts.Logger,
	}
}

// SetHeader sets a custom header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Fetch downloads the raw bytes of an image. Transient network failures are
// retried; any non-2xx status fails at once with an http_status error.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := c.getWithRetry(ctx, url, "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	if c.minBytes > 0 && len(body) <= c.minBytes {
		return nil, errors.New(errors.ErrorTypeDecode, "response too small (%d bytes) from %s", len(body), url)
	}
	return body, nil
}

// FetchPage downloads an HTML page
func (c *Client) FetchPage(ctx context.Context, url string) (string, error) {
	body, err := c.getWithRetry(ctx, url, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) getWithRetry(ctx context.Context, url, accept string) ([]byte, error) {
	var body []byte
	err := c.retrier.Do(ctx, func() error {
		var err error
		body, err = c.get(ctx, url, accept)
		return err
	})
	return body, err
}

// get performs one GET attempt and reads the whole body
func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "invalid request for %s", url)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", accept)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request to %s: %w", url, ctx.Err())
		}
		return nil, errors.Network(err, url)
	}
	defer resp.Body.Close()
	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, errors.HTTPStatus(resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("reading %s: %w", url, ctx.Err())
		}
		return nil, errors.Network(err, url)
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New(errors.ErrorTypeDecode, "response from %s exceeds %d bytes", url, maxBodyBytes)
	}
	return body, nil
}
