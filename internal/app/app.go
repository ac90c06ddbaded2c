// Package app assembles the collaborators of the citation operations from
// configuration. Both the server and the command-line tool use it.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-index-service/internal/config"
	"github.com/helixir/citation-index-service/internal/metadata"
	"github.com/helixir/citation-index-service/internal/observability"
	"github.com/helixir/citation-index-service/internal/operations"
	"github.com/helixir/citation-index-service/internal/resolver"
	"github.com/helixir/citation-index-service/internal/upstream/metaapi"
	"github.com/helixir/citation-index-service/internal/upstream/sparql"
	"github.com/helixir/citation-index-service/internal/upstream/unpaywall"
)

// UserAgent identifies the service to OpenCitations endpoints.
const UserAgent = "OpenCitations-CitationIndexService/1.0"

// Components are the wired collaborators. They are exposed so callers can
// use them outside the registry, for example to resolve a venue.
type Components struct {
	MetaSPARQL  *sparql.Client
	IndexSPARQL *sparql.Client
	Resolver    *resolver.Resolver
	Fetcher     *metadata.Fetcher
	MetaAPI     *metaapi.Client
	Unpaywall   *unpaywall.Client
	Pipeline    *operations.Pipeline
	Registry    *operations.Registry
}

// Build wires every collaborator named by cfg and registers the operations.
// metrics may be nil.
func Build(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*Components, error) {
	up := cfg.Upstream
	c := &Components{}

	c.MetaSPARQL = sparql.New(sparql.Config{
		Name:       "meta-sparql",
		Endpoint:   up.MetaSPARQL.URL,
		Timeout:    up.MetaSPARQL.Timeout,
		RateLimit:  up.MetaSPARQL.RateLimit,
		BurstSize:  up.MetaSPARQL.BurstSize,
		MaxRetries: up.MetaSPARQL.MaxRetries,
		UserAgent:  UserAgent,
	}).WithObserver(metrics)

	c.IndexSPARQL = sparql.New(sparql.Config{
		Name:       "index-sparql",
		Endpoint:   up.IndexSPARQL.URL,
		Timeout:    up.IndexSPARQL.Timeout,
		RateLimit:  up.IndexSPARQL.RateLimit,
		BurstSize:  up.IndexSPARQL.BurstSize,
		MaxRetries: up.IndexSPARQL.MaxRetries,
		UserAgent:  UserAgent,
	}).WithObserver(metrics)

	chunk := cfg.Pipeline.ResolverChunkSize
	c.Resolver = resolver.New(
		c.MetaSPARQL,
		resolver.NewIndexCounter(c.IndexSPARQL, chunk),
		resolver.Config{ChunkSize: chunk},
		logger,
		metrics,
	)

	c.Fetcher = metadata.NewFetcher(
		c.MetaSPARQL,
		c.Resolver,
		metadata.Config{ChunkSize: cfg.Pipeline.FetcherChunkSize},
		logger,
		metrics,
	)

	c.MetaAPI = metaapi.New(metaapi.Config{
		BaseURL:     up.MetaAPI.URL,
		AccessToken: up.MetaAPI.AccessToken,
		Timeout:     up.MetaAPI.Timeout,
		RateLimit:   up.MetaAPI.RateLimit,
		BurstSize:   up.MetaAPI.BurstSize,
		MaxRetries:  up.MetaAPI.MaxRetries,
		ChunkSize:   up.MetaAPI.ChunkSize,
	}).WithLogger(logger).WithMetrics(metrics)

	c.Unpaywall = unpaywall.New(unpaywall.Config{
		BaseURL:    up.Unpaywall.URL,
		Email:      up.Unpaywall.Email,
		Timeout:    up.Unpaywall.Timeout,
		RateLimit:  up.Unpaywall.RateLimit,
		BurstSize:  up.Unpaywall.BurstSize,
		MaxRetries: up.Unpaywall.MaxRetries,
	}).WithObserver(metrics)

	var source metadata.Source
	switch cfg.Pipeline.MetadataSource {
	case config.MetadataSourceSPARQL, "":
		source = c.Fetcher
	case config.MetadataSourceAPI:
		source = c.MetaAPI
	default:
		return nil, fmt.Errorf("unknown metadata source: %s", cfg.Pipeline.MetadataSource)
	}

	c.Pipeline = operations.New(operations.Deps{
		Source:   source,
		Fetcher:  c.Fetcher,
		Resolver: c.Resolver,
		OALinker: c.Unpaywall,
	}, operations.Config{
		OutputSchemes: cfg.Pipeline.Schemes(),
	}, logger, metrics)

	c.Registry = operations.NewRegistry()
	c.Pipeline.Register(c.Registry)

	return c, nil
}
