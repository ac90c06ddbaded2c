// Package sparql is a minimal SPARQL 1.1 protocol client for the
// OpenCitations Meta and Index triplestores.
package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/upstream"
)

const (
	// DefaultTimeout is the default request timeout. Large VALUES blocks
	// are slow to evaluate.
	DefaultTimeout = 120 * time.Second

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	contentTypeQuery   = "application/sparql-query"
	contentTypeResults = "application/sparql-results+json"
)

// Config holds configuration for a SPARQL endpoint client.
type Config struct {
	// Name identifies the endpoint in errors and metrics.
	Name string

	// Endpoint is the SPARQL query URL.
	Endpoint string

	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxRetries int
	UserAgent  string
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "sparql"
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client executes SELECT queries against one endpoint.
type Client struct {
	config     Config
	httpClient *upstream.HTTPClient
}

// New creates a new SPARQL client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := upstream.NewHTTPClient(upstream.HTTPClientConfig{
		Source:     cfg.Name,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  cfg.UserAgent,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new SPARQL client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *upstream.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// WithObserver reports every query to o.
func (c *Client) WithObserver(o upstream.Observer) *Client {
	c.httpClient.WithObserver(o)
	return c
}

// Name returns the configured endpoint name.
func (c *Client) Name() string {
	return c.config.Name
}

// Select runs a SELECT query. Transport failures are reported as
// *domain.ExternalAPIError and undecodable documents as
// *domain.MalformedResponseError.
func (c *Client) Select(ctx context.Context, query string) (*Results, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeQuery)
	req.Header.Set("Accept", contentTypeResults)

	resp, err := c.httpClient.Do(req, "select")
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, domain.NewExternalAPIError(c.config.Name, resp.StatusCode, string(body), nil)
	}

	return decodeResults(c.config.Name, io.LimitReader(resp.Body, 256<<20))
}

// decodeResults parses a results document strictly: the results member and
// every bound term value must be present.
func decodeResults(source string, r io.Reader) (*Results, error) {
	var doc resultsDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, domain.NewMalformedResponseError(source, "decoding results", err)
	}
	if doc.Results == nil {
		return nil, domain.NewMalformedResponseError(source, "missing results member", nil)
	}

	out := &Results{
		Vars:      doc.Head.Vars,
		Solutions: make([]Solution, 0, len(doc.Results.Bindings)),
	}
	for i, b := range doc.Results.Bindings {
		s := make(Solution, len(b))
		for name, term := range b {
			if term == nil || term.Type == "" {
				return nil, domain.NewMalformedResponseError(source,
					fmt.Sprintf("binding %d: variable %q has no term type", i, name), nil)
			}
			s[name] = *term
		}
		out.Solutions = append(out.Solutions, s)
	}
	return out, nil
}
