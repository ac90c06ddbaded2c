package upstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/helixir/citation-index-service/internal/domain"
)

// Observer receives one observation per logical upstream call, after
// retries have been resolved.
type Observer interface {
	ObserveUpstream(source, operation string, status int, err error, elapsed time.Duration)
}

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source names the upstream service in errors and metrics.
	Source string

	// Timeout is the per-attempt request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int

	// RetryDelay is the initial backoff interval.
	RetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff interval.
	MaxRetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "Authorization").
	APIKeyHeader string
}

// HTTPClient wraps http.Client with rate limiting and exponential-backoff
// retries. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
	observer    Observer
}

// NewHTTPClient creates a new HTTP client with rate limiting.
// The client applies rate limiting before each attempt and retries network
// errors, 429 (Too Many Requests) and 5xx responses with exponential backoff.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Source == "" {
		cfg.Source = "upstream"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "OpenCitations-CitationIndexService/1.0 (mailto:contact@opencitations.net)"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// WithObserver attaches an observer that is told about every call.
func (c *HTTPClient) WithObserver(o Observer) *HTTPClient {
	c.observer = o
	return c
}

// Source returns the configured upstream name.
func (c *HTTPClient) Source() string {
	return c.config.Source
}

// Do executes an HTTP request with rate limiting and retries. The returned
// response always has a non-retryable status; callers check it themselves.
// Exhausted retries yield an *domain.ExternalAPIError (or a
// *domain.RateLimitError after repeated 429s). Cancellation of the request
// context is returned as is.
//
// Request bodies are resent on retry through req.GetBody, which
// http.NewRequest sets for in-memory readers.
func (c *HTTPClient) Do(req *http.Request, operation string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.do(req)
	if c.observer != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.observer.ObserveUpstream(c.config.Source, operation, status, err, time.Since(start))
	}
	return resp, err
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	policy := &retryAfterBackOff{BackOff: backoff.WithMaxRetries(c.newBackOff(), uint64(c.config.MaxRetries))}

	var (
		resp       *http.Response
		lastStatus int
		attempt    int
	)
	operation := func() error {
		if attempt > 0 {
			if err := c.resetRequestBody(req); err != nil {
				return backoff.Permanent(fmt.Errorf("cannot retry request: %w", err))
			}
		}
		attempt++

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter wait: %w", err))
		}

		r, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}

		if r.StatusCode == http.StatusTooManyRequests {
			c.rateLimiter.Throttle()
		} else if r.StatusCode < 300 {
			c.rateLimiter.Restore()
		}

		if c.shouldRetry(r.StatusCode) {
			lastStatus = r.StatusCode
			policy.next = c.getRetryDelay(r)
			if r.Body != nil {
				_, _ = io.Copy(io.Discard, r.Body)
				r.Body.Close()
			}
			return fmt.Errorf("server returned status %d", r.StatusCode)
		}

		resp = r
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if err == nil {
		return resp, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil, err
	}
	if lastStatus == http.StatusTooManyRequests {
		return nil, domain.NewRateLimitError(c.config.Source, policy.last)
	}
	return nil, domain.NewExternalAPIError(
		c.config.Source,
		lastStatus,
		fmt.Sprintf("giving up after %d attempts", attempt),
		err,
	)
}

func (c *HTTPClient) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryDelay
	b.MaxInterval = c.config.MaxRetryDelay
	b.MaxElapsedTime = 0
	return b
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// getRetryDelay returns the delay requested by a Retry-After header, or zero
// when the backoff policy should decide.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

// retryAfterBackOff lets a server-provided Retry-After delay override the
// next exponential interval once.
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
	last time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if b.next > 0 {
		d, b.next = b.next, 0
	}
	b.last = d
	return d
}
