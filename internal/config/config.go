// Package config provides configuration management for the citation index service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/helixir/citation-index-service/internal/domain"
)

// Metadata source names for PipelineConfig.MetadataSource.
const (
	// MetadataSourceSPARQL reads metadata from the Meta triplestore.
	MetadataSourceSPARQL = "sparql"
	// MetadataSourceAPI reads metadata from the Meta REST API.
	MetadataSourceAPI = "api"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "CITEINDEX"

// Config holds all configuration for the citation index service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Upstream contains the OpenCitations collaborators.
	Upstream UpstreamConfig `mapstructure:"upstream"`
	// Pipeline contains enrichment pipeline settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port" validate:"min=1,max=65535"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port" validate:"min=1,max=65535"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. Transforms
	// that fan out to several upstream chunks need a generous value.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxBodyBytes caps the size of a transform request body.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format" validate:"oneof=json console pretty"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path" validate:"startswith=/"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// UpstreamConfig holds the endpoints of the collaborators.
type UpstreamConfig struct {
	// MetaSPARQL is the OpenCitations Meta triplestore.
	MetaSPARQL EndpointConfig `mapstructure:"meta_sparql"`
	// IndexSPARQL is the OpenCitations Index triplestore, used for
	// citation counts.
	IndexSPARQL EndpointConfig `mapstructure:"index_sparql"`
	// MetaAPI is the OpenCitations Meta REST API.
	MetaAPI MetaAPIConfig `mapstructure:"meta_api"`
	// Unpaywall is the open-access lookup service.
	Unpaywall UnpaywallConfig `mapstructure:"unpaywall"`
}

// EndpointConfig holds the settings shared by every outbound client.
type EndpointConfig struct {
	// URL is the endpoint or API base URL.
	URL string `mapstructure:"url" validate:"required,url"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	// BurstSize is the rate limiter burst.
	BurstSize int `mapstructure:"burst_size" validate:"gte=1"`
	// MaxRetries is the maximum number of retries on 429, 5xx and
	// network errors.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
}

// MetaAPIConfig holds Meta REST API settings.
type MetaAPIConfig struct {
	EndpointConfig `mapstructure:",squash"`
	// ChunkSize bounds the identifiers packed into one request path.
	ChunkSize int `mapstructure:"chunk_size" validate:"gt=0"`
	// AccessToken is loaded from CITEINDEX_UPSTREAM_META_API_ACCESS_TOKEN only.
	AccessToken string `mapstructure:"-"`
}

// UnpaywallConfig holds Unpaywall settings.
type UnpaywallConfig struct {
	EndpointConfig `mapstructure:",squash"`
	// Email identifies the caller to Unpaywall.
	Email string `mapstructure:"email" validate:"required,email"`
}

// PipelineConfig holds enrichment pipeline settings.
type PipelineConfig struct {
	// ResolverChunkSize bounds the identifiers in one resolution query.
	ResolverChunkSize int `mapstructure:"resolver_chunk_size" validate:"gt=0"`
	// FetcherChunkSize bounds the resources in one metadata query.
	FetcherChunkSize int `mapstructure:"fetcher_chunk_size" validate:"gt=0"`
	// OutputSchemes restricts the identifier schemes written to output
	// identifier columns. Empty keeps every scheme.
	OutputSchemes []string `mapstructure:"output_schemes"`
	// MetadataSource selects the backend of the metadata transform.
	MetadataSource string `mapstructure:"metadata_source" validate:"oneof=sparql api"`
}

// Schemes returns OutputSchemes as identifier schemes.
func (c *PipelineConfig) Schemes() []domain.Scheme {
	out := make([]domain.Scheme, 0, len(c.OutputSchemes))
	for _, s := range c.OutputSchemes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, domain.Scheme(s))
		}
	}
	return out
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/citation-index-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come from the environment only.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadSecrets(cfg *Config) {
	cfg.Upstream.MetaAPI.AccessToken = os.Getenv(EnvPrefix + "_UPSTREAM_META_API_ACCESS_TOKEN")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 64<<20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "citation_index")

	// Meta triplestore. Large VALUES blocks are slow to evaluate.
	v.SetDefault("upstream.meta_sparql.url", "https://opencitations.net/meta/sparql")
	v.SetDefault("upstream.meta_sparql.timeout", "120s")
	v.SetDefault("upstream.meta_sparql.rate_limit", 5.0)
	v.SetDefault("upstream.meta_sparql.burst_size", 5)
	v.SetDefault("upstream.meta_sparql.max_retries", 3)

	// Index triplestore
	v.SetDefault("upstream.index_sparql.url", "https://opencitations.net/index/sparql")
	v.SetDefault("upstream.index_sparql.timeout", "60s")
	v.SetDefault("upstream.index_sparql.rate_limit", 5.0)
	v.SetDefault("upstream.index_sparql.burst_size", 5)
	v.SetDefault("upstream.index_sparql.max_retries", 3)

	// Meta REST API
	v.SetDefault("upstream.meta_api.url", "https://api.opencitations.net/meta/v1")
	v.SetDefault("upstream.meta_api.timeout", "60s")
	v.SetDefault("upstream.meta_api.rate_limit", 5.0)
	v.SetDefault("upstream.meta_api.burst_size", 5)
	v.SetDefault("upstream.meta_api.max_retries", 3)
	v.SetDefault("upstream.meta_api.chunk_size", 50)

	// Unpaywall
	v.SetDefault("upstream.unpaywall.url", "https://api.unpaywall.org/v2")
	v.SetDefault("upstream.unpaywall.timeout", "30s")
	v.SetDefault("upstream.unpaywall.rate_limit", 1.0)
	v.SetDefault("upstream.unpaywall.burst_size", 5)
	v.SetDefault("upstream.unpaywall.max_retries", 2)
	v.SetDefault("upstream.unpaywall.email", "contact@opencitations.net")

	// Pipeline defaults
	v.SetDefault("pipeline.resolver_chunk_size", 9000)
	v.SetDefault("pipeline.fetcher_chunk_size", 3000)
	v.SetDefault("pipeline.output_schemes", []string{})
	v.SetDefault("pipeline.metadata_source", MetadataSourceSPARQL)
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %v does not satisfy %q", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return err
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	for _, s := range c.Pipeline.Schemes() {
		if !s.Known() {
			return fmt.Errorf("unknown output scheme: %s", s)
		}
	}

	return nil
}
