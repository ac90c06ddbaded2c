package metadata

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
	"github.com/helixir/citation-index-service/internal/observability"
	"github.com/helixir/citation-index-service/internal/upstream/sparql"
)

// DefaultChunkSize bounds the number of OMIDs in one metadata query.
const DefaultChunkSize = 3000

// Source looks up metadata for arbitrary identifiers. Both the SPARQL
// Fetcher and the Meta REST client implement it.
type Source interface {
	Lookup(ctx context.Context, ids []domain.Identifier) ([]domain.ResourceMetadata, error)
}

// Querier executes SPARQL SELECT queries.
type Querier interface {
	Select(ctx context.Context, query string) (*sparql.Results, error)
	Name() string
}

// Resolver maps external identifiers to canonical resources.
type Resolver interface {
	Resolve(ctx context.Context, ids []domain.Identifier) (map[domain.Identifier]domain.ResourceRef, error)
}

// Config holds Fetcher configuration.
type Config struct {
	ChunkSize int
}

// Fetcher bulk-retrieves resource metadata from the Meta triplestore.
type Fetcher struct {
	client   Querier
	resolver Resolver
	config   Config
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

var _ Source = (*Fetcher)(nil)

// NewFetcher creates a Fetcher. resolver may be nil when callers only ever
// pass OMIDs. metrics may be nil.
func NewFetcher(client Querier, resolver Resolver, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Fetcher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Fetcher{
		client:   client,
		resolver: resolver,
		config:   cfg,
		logger:   observability.WithComponent(logger, "fetcher"),
		metrics:  metrics,
	}
}

// FetchBatch retrieves metadata for every OMID, issuing one query per
// chunk. A chunk whose query fails contributes nothing; the failure is
// logged and counted. Only cancellation of ctx is returned as an error.
func (f *Fetcher) FetchBatch(ctx context.Context, omids []domain.Identifier) (map[domain.Identifier]domain.ResourceMetadata, error) {
	out := make(map[domain.Identifier]domain.ResourceMetadata, len(omids))
	ids := uniqueOMIDs(omids)

	for start := 0; start < len(ids); start += f.config.ChunkSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		end := min(start+f.config.ChunkSize, len(ids))
		chunk := ids[start:end]

		res, err := f.client.Select(ctx, buildMetadataQuery(chunk))
		if err != nil {
			if !domain.IsDegradable(err) {
				return out, err
			}
			observability.FromContext(ctx, f.logger).Warn().
				Err(err).
				Str("source", f.client.Name()).
				Int("chunk_size", len(chunk)).
				Msg("metadata chunk degraded to no data")
			f.metrics.RecordDegradedChunk("fetcher", f.client.Name())
			continue
		}

		for id, facts := range groupFacts(res) {
			out[id] = assemble(id, facts)
		}
	}
	return out, nil
}

// Lookup resolves non-OMID identifiers, fetches metadata for the resulting
// resources and returns it in first-seen order.
func (f *Fetcher) Lookup(ctx context.Context, ids []domain.Identifier) ([]domain.ResourceMetadata, error) {
	var omids, external []domain.Identifier
	for _, id := range ids {
		if id.Scheme == domain.SchemeOMID {
			omids = append(omids, id)
		} else if !id.IsZero() {
			external = append(external, id)
		}
	}

	if len(external) > 0 && f.resolver != nil {
		refs, err := f.resolver.Resolve(ctx, external)
		if err != nil {
			return nil, err
		}
		for _, id := range external {
			if ref, ok := refs[id]; ok {
				omids = append(omids, ref.ID)
			}
		}
	}

	omids = uniqueOMIDs(omids)
	found, err := f.FetchBatch(ctx, omids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ResourceMetadata, 0, len(found))
	for _, id := range omids {
		if md, ok := found[id]; ok {
			out = append(out, md)
		}
	}
	return out, nil
}

func groupFacts(res *sparql.Results) map[domain.Identifier][]fact {
	out := make(map[domain.Identifier][]fact)
	for _, s := range res.Solutions {
		id, ok := identifier.OMIDFromIRI(s.Value("val"))
		if !ok || !s.Has("kind") {
			continue
		}
		out[id] = append(out[id], fact{
			kind:  s.Value("kind"),
			key:   s.Value("key"),
			ref:   s.Value("ref"),
			value: s.Value("value"),
			agent: s.Value("agent"),
		})
	}
	return out
}

func uniqueOMIDs(ids []domain.Identifier) []domain.Identifier {
	seen := make(domain.IdentifierSet, len(ids))
	out := make([]domain.Identifier, 0, len(ids))
	for _, id := range ids {
		if id.Scheme != domain.SchemeOMID || seen.Has(id) {
			continue
		}
		seen.Add(id)
		out = append(out, id)
	}
	return out
}
