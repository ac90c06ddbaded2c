// Package unpaywall looks up open-access locations of DOIs.
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
	"github.com/helixir/citation-index-service/internal/upstream"
)

const (
	// DefaultBaseURL is the Unpaywall v2 API.
	DefaultBaseURL = "https://api.unpaywall.org/v2"

	// DefaultEmail identifies the caller, as Unpaywall requires.
	DefaultEmail = "contact@opencitations.net"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit for requests per second.
	// Unpaywall asks for fewer than 100k calls a day.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	sourceName = "unpaywall"
)

// Config holds configuration for the Unpaywall client.
type Config struct {
	BaseURL    string
	Email      string
	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxRetries int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Email == "" {
		c.Email = DefaultEmail
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

// Client queries Unpaywall.
type Client struct {
	config     Config
	httpClient *upstream.HTTPClient
}

// New creates a new Unpaywall client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := upstream.NewHTTPClient(upstream.HTTPClientConfig{
		Source:     sourceName,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  "OpenCitations-CitationIndexService/1.0 (mailto:" + cfg.Email + ")",
	})

	return NewWithHTTPClient(cfg, httpClient)
}

// NewWithHTTPClient creates a new Unpaywall client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *upstream.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// WithObserver reports every lookup to o.
func (c *Client) WithObserver(o upstream.Observer) *Client {
	c.httpClient.WithObserver(o)
	return c
}

// Response is the subset of the DOI object this client reads.
type Response struct {
	DOI            string      `json:"doi"`
	IsOA           bool        `json:"is_oa"`
	BestOALocation *OALocation `json:"best_oa_location"`
}

// OALocation is one place a free copy of the work can be read.
type OALocation struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
	HostType  string `json:"host_type"`
	License   string `json:"license"`
}

// BestOALink returns the URL of the best open-access location of doi, or
// "" when the DOI is unknown to Unpaywall or has no such location.
func (c *Client) BestOALink(ctx context.Context, doi string) (string, error) {
	if doi == "" {
		return "", nil
	}
	q := url.Values{}
	q.Set("email", c.config.Email)
	fetchURL := c.config.BaseURL + "/" + identifier.EscapePath(doi) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req, "doi")
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return "", domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return "", domain.NewMalformedResponseError(sourceName, "decoding DOI object", err)
	}
	if out.BestOALocation == nil {
		return "", nil
	}
	return out.BestOALocation.URL, nil
}
