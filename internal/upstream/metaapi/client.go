// Package metaapi is a client for the OpenCitations Meta REST API.
package metaapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
	"github.com/helixir/citation-index-service/internal/metadata"
	"github.com/helixir/citation-index-service/internal/observability"
	"github.com/helixir/citation-index-service/internal/upstream"
)

const (
	// DefaultBaseURL is the public Meta REST API.
	DefaultBaseURL = "https://api.opencitations.net/meta/v1"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultChunkSize bounds the identifiers packed into one request path.
	DefaultChunkSize = 50

	sourceName = "meta-api"
)

var validate = validator.New()

// Config holds configuration for the Meta REST client.
type Config struct {
	// BaseURL is the API root, without the /metadata suffix.
	BaseURL string

	// AccessToken is sent in the "authorization" header when set.
	AccessToken string

	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxRetries int
	ChunkSize  int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
}

// Client implements metadata.Source on top of the REST API.
type Client struct {
	config     Config
	httpClient *upstream.HTTPClient
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

var _ metadata.Source = (*Client)(nil)

// New creates a new Meta REST client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := upstream.NewHTTPClient(upstream.HTTPClientConfig{
		Source:       sourceName,
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		MaxRetries:   cfg.MaxRetries,
		APIKey:       cfg.AccessToken,
		APIKeyHeader: "authorization",
	})

	return NewWithHTTPClient(cfg, httpClient)
}

// NewWithHTTPClient creates a new Meta REST client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *upstream.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     zerolog.Nop(),
	}
}

// WithLogger sets the logger used to report degraded chunks.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = observability.WithComponent(logger, sourceName)
	return c
}

// WithMetrics reports requests and degraded chunks to m.
func (c *Client) WithMetrics(m *observability.Metrics) *Client {
	c.metrics = m
	c.httpClient.WithObserver(m)
	return c
}

// Lookup implements metadata.Source. Identifiers are sent in chunks; a
// failed chunk contributes no records. Records are returned in response
// order with duplicates removed.
func (c *Client) Lookup(ctx context.Context, ids []domain.Identifier) ([]domain.ResourceMetadata, error) {
	var out []domain.ResourceMetadata
	seen := domain.IdentifierSet{}

	for start := 0; start < len(ids); start += c.config.ChunkSize {
		chunk := ids[start:min(start+c.config.ChunkSize, len(ids))]
		records, err := c.Metadata(ctx, chunk)
		if err != nil {
			if !domain.IsDegradable(err) {
				return nil, err
			}
			observability.FromContext(ctx, c.logger).Warn().
				Err(err).
				Int("chunk_size", len(chunk)).
				Msg("metadata chunk degraded to no data")
			c.metrics.RecordDegradedChunk("fetcher", sourceName)
			continue
		}
		for _, md := range records {
			if seen.Has(md.ID) {
				continue
			}
			seen.Add(md.ID)
			out = append(out, md)
		}
	}
	return out, nil
}

// Metadata fetches the records of ids in a single request.
func (c *Client) Metadata(ctx context.Context, ids []domain.Identifier) ([]domain.ResourceMetadata, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	fetchURL := c.config.BaseURL + "/metadata/" + identifier.JoinPath(ids)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req, "metadata")
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	// Limit body to 64MB to prevent resource exhaustion.
	var records []Record
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&records); err != nil {
		return nil, domain.NewMalformedResponseError(sourceName, "decoding records", err)
	}

	out := make([]domain.ResourceMetadata, 0, len(records))
	for i := range records {
		if err := validate.Struct(&records[i]); err != nil {
			return nil, domain.NewMalformedResponseError(sourceName, fmt.Sprintf("record %d", i), err)
		}
		md := records[i].toMetadata()
		if md.ID.IsZero() {
			return nil, domain.NewMalformedResponseError(sourceName, fmt.Sprintf("record %d has no identifiers", i), nil)
		}
		out = append(out, md)
	}
	return out, nil
}
