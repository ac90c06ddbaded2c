package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-index-service/internal/domain"
)

func fastConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Source:        "test",
		RateLimit:     1000,
		BurstSize:     100,
		MaxRetries:    3,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []observation
}

type observation struct {
	source    string
	operation string
	status    int
	err       error
}

func (o *recordingObserver) ObserveUpstream(source, operation string, status int, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, observation{source, operation, status, err})
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("creates client with custom config", func(t *testing.T) {
		cfg := HTTPClientConfig{
			Source:       "meta",
			Timeout:      15 * time.Second,
			RateLimit:    5,
			BurstSize:    3,
			MaxRetries:   2,
			RetryDelay:   500 * time.Millisecond,
			UserAgent:    "TestAgent/1.0",
			APIKey:       "test-key",
			APIKeyHeader: "Authorization",
		}

		client := NewHTTPClient(cfg)

		require.NotNil(t, client)
		require.NotNil(t, client.rateLimiter)
		assert.Equal(t, 15*time.Second, client.client.Timeout)
		assert.Equal(t, "meta", client.Source())
		assert.Equal(t, cfg.UserAgent, client.config.UserAgent)
		assert.Equal(t, cfg.MaxRetries, client.config.MaxRetries)
	})

	t.Run("applies default values", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{})

		assert.Equal(t, 60*time.Second, client.client.Timeout)
		assert.Equal(t, "upstream", client.Source())
		assert.Contains(t, client.config.UserAgent, "CitationIndexService")
		assert.Equal(t, 3, client.config.MaxRetries)
		assert.Equal(t, 500*time.Millisecond, client.config.RetryDelay)
		assert.Equal(t, 10*time.Second, client.config.MaxRetryDelay)
		assert.Equal(t, float64(10), client.config.RateLimit)
		assert.Equal(t, 10, client.config.BurstSize)
	})
}

func TestHTTPClient_Do(t *testing.T) {
	t.Run("sets User-Agent and API key headers", func(t *testing.T) {
		var ua, key string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua = r.Header.Get("User-Agent")
			key = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		cfg := fastConfig()
		cfg.UserAgent = "TestAgent/1.0"
		cfg.APIKey = "token"
		cfg.APIKeyHeader = "Authorization"
		client := NewHTTPClient(cfg)

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req, "probe")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "TestAgent/1.0", ua)
		assert.Equal(t, "token", key)
	})

	t.Run("retries on 503 and resends the body", func(t *testing.T) {
		var attempts int32
		var bodies []string
		var mu sync.Mutex
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(b))
			mu.Unlock()
			if atomic.AddInt32(&attempts, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient(fastConfig())
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, strings.NewReader("SELECT 1"))
		require.NoError(t, err)

		resp, err := client.Do(req, "query")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
		assert.Equal(t, []string{"SELECT 1", "SELECT 1", "SELECT 1"}, bodies)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewHTTPClient(fastConfig())
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req, "query")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	})

	t.Run("exhausted 5xx retries yield an external API error", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		obs := &recordingObserver{}
		client := NewHTTPClient(fastConfig()).WithObserver(obs)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(req, "query")
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, "test", apiErr.Source)
		assert.True(t, errors.Is(err, domain.ErrTransport))
		assert.True(t, domain.IsDegradable(err))
		assert.Equal(t, int32(4), atomic.LoadInt32(&attempts))

		require.Len(t, obs.calls, 1)
		assert.Equal(t, "query", obs.calls[0].operation)
		assert.Error(t, obs.calls[0].err)
	})

	t.Run("repeated 429 yields a rate limit error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		cfg := fastConfig()
		cfg.MaxRetries = 1
		client := NewHTTPClient(cfg)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(req, "query")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrRateLimited))
		assert.True(t, domain.IsDegradable(err))
		assert.Equal(t, 250.0, client.rateLimiter.Rate(), "two 429s halve the rate twice")
	})

	t.Run("honors Retry-After", func(t *testing.T) {
		var attempts int32
		var first, second time.Time
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				first = time.Now()
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			second = time.Now()
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient(fastConfig())
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req, "query")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.GreaterOrEqual(t, second.Sub(first), 900*time.Millisecond)
	})

	t.Run("context cancellation is returned as is", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		cfg := fastConfig()
		cfg.RetryDelay = time.Second
		cfg.MaxRetryDelay = time.Second
		client := NewHTTPClient(cfg)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(req, "query")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("network errors are retried then reported", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		cfg := fastConfig()
		cfg.MaxRetries = 1
		client := NewHTTPClient(cfg)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
		require.NoError(t, err)

		_, err = client.Do(req, "query")
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 0, apiErr.StatusCode)
	})
}

func TestHTTPClient_getRetryDelay(t *testing.T) {
	client := NewHTTPClient(fastConfig())

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"absent", "", 0},
		{"seconds", "3", 3 * time.Second},
		{"zero", "0", 0},
		{"garbage", "soon", 0},
		{"past date", "Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, client.getRetryDelay(resp))
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx))

	rl = NewRateLimiter(1000, 1)
	require.NoError(t, rl.Wait(context.Background()))
}

func TestRateLimiter_ThrottleAndRestore(t *testing.T) {
	rl := NewRateLimiter(80, 1)

	rl.Throttle()
	assert.Equal(t, 40.0, rl.Rate())
	rl.Throttle()
	rl.Throttle()
	rl.Throttle()
	assert.Equal(t, 10.0, rl.Rate(), "never below an eighth of the configured rate")

	rl.Restore()
	assert.Equal(t, 18.0, rl.Rate())
	for range 20 {
		rl.Restore()
	}
	assert.Equal(t, 80.0, rl.Rate())
}
