// Package resolver maps external identifiers (DOI, PMID, ...) to the
// canonical OpenCitations Meta resources that carry them.
package resolver

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
	"github.com/helixir/citation-index-service/internal/observability"
	"github.com/helixir/citation-index-service/internal/upstream/sparql"
)

// DefaultChunkSize bounds the number of identifiers in one lookup query.
const DefaultChunkSize = 9000

// Querier executes SPARQL SELECT queries.
type Querier interface {
	Select(ctx context.Context, query string) (*sparql.Results, error)
	Name() string
}

// CitationCounter returns the number of incoming citations per OMID.
// Resources without citations may be absent from the result.
type CitationCounter interface {
	CitationCounts(ctx context.Context, omids []domain.Identifier) (map[domain.Identifier]int, error)
}

// Config holds Resolver configuration.
type Config struct {
	ChunkSize int
}

// Resolver resolves identifiers against the Meta triplestore.
//
// Failed lookups never surface as errors: the chunk they belong to simply
// resolves to nothing. Only cancellation of the caller's context is
// returned.
type Resolver struct {
	meta    Querier
	counter CitationCounter
	config  Config
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a Resolver. counter may be nil, in which case ambiguous
// identifiers resolve to their first candidate.
func New(meta Querier, counter CitationCounter, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Resolver {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Resolver{
		meta:    meta,
		counter: counter,
		config:  cfg,
		logger:  observability.WithComponent(logger, "resolver"),
		metrics: metrics,
	}
}

// Resolve maps every resolvable identifier to its resource. OMIDs map to
// themselves. Venue identifiers are skipped; use ResolveVenue for them.
// Identifiers with no match are absent from the result.
//
// When an identifier is carried by several resources the one with the most
// incoming citations wins; ties go to the first candidate in ?br order.
func (r *Resolver) Resolve(ctx context.Context, ids []domain.Identifier) (map[domain.Identifier]domain.ResourceRef, error) {
	var direct, works []domain.Identifier
	for _, id := range uniq(ids) {
		switch {
		case id.Scheme == domain.SchemeOMID:
			direct = append(direct, id)
		case id.IsVenue(), id.IsOpaque():
		default:
			works = append(works, id)
		}
	}

	candidates, err := r.lookup(ctx, works)
	if err != nil {
		return nil, err
	}

	chosen := make(map[domain.Identifier]domain.Identifier, len(works)+len(direct))
	var ambiguous []domain.Identifier
	for _, id := range works {
		switch c := candidates[id]; len(c) {
		case 0:
		case 1:
			chosen[id] = c[0]
		default:
			ambiguous = append(ambiguous, id)
		}
	}
	if len(ambiguous) > 0 {
		picks, err := r.breakTies(ctx, ambiguous, candidates)
		if err != nil {
			return nil, err
		}
		for id, omid := range picks {
			chosen[id] = omid
		}
	}
	for _, id := range direct {
		chosen[id] = id
	}

	targets := make([]domain.Identifier, 0, len(chosen))
	for _, id := range append(works, direct...) {
		if omid, ok := chosen[id]; ok {
			targets = append(targets, omid)
		}
	}
	aliases, err := r.aliases(ctx, uniq(targets))
	if err != nil {
		return nil, err
	}

	out := make(map[domain.Identifier]domain.ResourceRef, len(chosen))
	for id, omid := range chosen {
		ref := domain.ResourceRef{ID: omid, Aliases: aliases[omid]}
		if id != omid && !ref.AliasSet().Has(id) {
			ref.Aliases = append(ref.Aliases, id)
		}
		out[id] = ref
	}
	return out, nil
}

// Candidates returns every OMID carrying id, in ?br order. OMIDs are
// returned as is.
func (r *Resolver) Candidates(ctx context.Context, id domain.Identifier) ([]domain.Identifier, error) {
	if id.Scheme == domain.SchemeOMID {
		return []domain.Identifier{id}, nil
	}
	if id.IsOpaque() || id.IsZero() {
		return nil, nil
	}
	found, err := r.lookup(ctx, []domain.Identifier{id})
	if err != nil {
		return nil, err
	}
	return found[id], nil
}

// ResolveVenue returns the OMIDs of all works published in the venue
// identified by id (an ISSN or JID).
func (r *Resolver) ResolveVenue(ctx context.Context, id domain.Identifier) ([]domain.Identifier, error) {
	if !id.IsVenue() {
		return nil, domain.NewValidationError("id", "not a venue identifier: "+id.String())
	}
	res, err := r.meta.Select(ctx, buildVenueQuery(id))
	if err != nil {
		if r.degrade(ctx, err, "venue", 1) {
			return nil, nil
		}
		return nil, err
	}
	var out []domain.Identifier
	for _, s := range res.Solutions {
		if omid, ok := identifier.OMIDFromIRI(s.Value("br")); ok {
			out = append(out, omid)
		}
	}
	return uniq(out), nil
}

// lookup runs the chunked literal lookup and returns the candidate OMIDs
// of each identifier in result order.
func (r *Resolver) lookup(ctx context.Context, ids []domain.Identifier) (map[domain.Identifier][]domain.Identifier, error) {
	out := make(map[domain.Identifier][]domain.Identifier)
	wanted := domain.NewIdentifierSet(ids...)

	for start := 0; start < len(ids); start += r.config.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := ids[start:min(start+r.config.ChunkSize, len(ids))]
		res, err := r.meta.Select(ctx, buildLookupQuery(chunk))
		if err != nil {
			if r.degrade(ctx, err, "lookup", len(chunk)) {
				continue
			}
			return nil, err
		}
		for _, s := range res.Solutions {
			omid, ok := identifier.OMIDFromIRI(s.Value("br"))
			if !ok {
				continue
			}
			id := literalIdentifier(s.Value("scheme"), s.Value("literal"))
			if !wanted.Has(id) || contains(out[id], omid) {
				continue
			}
			out[id] = append(out[id], omid)
		}
	}
	return out, nil
}

// aliases returns every identifier of each OMID. A degraded chunk leaves
// its OMIDs without aliases.
func (r *Resolver) aliases(ctx context.Context, omids []domain.Identifier) (map[domain.Identifier][]domain.Identifier, error) {
	out := make(map[domain.Identifier][]domain.Identifier, len(omids))
	for start := 0; start < len(omids); start += r.config.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := omids[start:min(start+r.config.ChunkSize, len(omids))]
		res, err := r.meta.Select(ctx, buildAliasQuery(chunk))
		if err != nil {
			if r.degrade(ctx, err, "alias", len(chunk)) {
				continue
			}
			return nil, err
		}
		for _, s := range res.Solutions {
			omid, ok := identifier.OMIDFromIRI(s.Value("br"))
			if !ok {
				continue
			}
			id := literalIdentifier(s.Value("scheme"), s.Value("literal"))
			if !id.IsZero() && !contains(out[omid], id) {
				out[omid] = append(out[omid], id)
			}
		}
	}
	return out, nil
}

// breakTies picks one candidate per ambiguous identifier by incoming
// citation count. If the counter fails every identifier gets its first
// candidate.
func (r *Resolver) breakTies(ctx context.Context, ambiguous []domain.Identifier, candidates map[domain.Identifier][]domain.Identifier) (map[domain.Identifier]domain.Identifier, error) {
	var all []domain.Identifier
	for _, id := range ambiguous {
		all = append(all, candidates[id]...)
	}

	var counts map[domain.Identifier]int
	if r.counter != nil {
		c, err := r.counter.CitationCounts(ctx, uniq(all))
		if err != nil && !domain.IsDegradable(err) {
			return nil, err
		}
		if err != nil {
			observability.FromContext(ctx, r.logger).Warn().Err(err).
				Msg("citation counts unavailable, ambiguous identifiers take their first candidate")
		}
		counts = c
	}

	out := make(map[domain.Identifier]domain.Identifier, len(ambiguous))
	for _, id := range ambiguous {
		cands := candidates[id]
		best := cands[0]
		for _, c := range cands[1:] {
			if counts[c] > counts[best] {
				best = c
			}
		}
		out[id] = best
		r.metrics.RecordAmbiguousResolution()
		observability.FromContext(ctx, r.logger).Info().
			Str("identifier", id.String()).
			Str("chosen", best.String()).
			Int("candidates", len(cands)).
			Msg("ambiguous identifier resolved")
	}
	return out, nil
}

// degrade logs and counts a failed chunk. It reports false when err is not
// a collaborator failure and must be returned.
func (r *Resolver) degrade(ctx context.Context, err error, query string, size int) bool {
	if !domain.IsDegradable(err) {
		return false
	}
	observability.FromContext(ctx, r.logger).Warn().
		Err(err).
		Str("source", r.meta.Name()).
		Str("query", query).
		Int("chunk_size", size).
		Msg("resolution chunk degraded to no data")
	r.metrics.RecordDegradedChunk("resolver", r.meta.Name())
	return true
}

// IndexCounter counts incoming citations with the OpenCitations Index
// SPARQL endpoint.
type IndexCounter struct {
	index     Querier
	chunkSize int
}

var _ CitationCounter = (*IndexCounter)(nil)

// NewIndexCounter creates a counter backed by the index endpoint.
func NewIndexCounter(index Querier, chunkSize int) *IndexCounter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &IndexCounter{index: index, chunkSize: chunkSize}
}

// CitationCounts implements CitationCounter.
func (c *IndexCounter) CitationCounts(ctx context.Context, omids []domain.Identifier) (map[domain.Identifier]int, error) {
	out := make(map[domain.Identifier]int, len(omids))
	for start := 0; start < len(omids); start += c.chunkSize {
		chunk := omids[start:min(start+c.chunkSize, len(omids))]
		res, err := c.index.Select(ctx, buildCountQuery(chunk))
		if err != nil {
			return nil, err
		}
		for _, s := range res.Solutions {
			omid, ok := identifier.OMIDFromIRI(s.Value("cited"))
			if !ok {
				continue
			}
			n, err := strconv.Atoi(s.Value("count"))
			if err != nil {
				return nil, domain.NewMalformedResponseError(c.index.Name(), "citation count is not an integer", err)
			}
			out[omid] = n
		}
	}
	return out, nil
}

func uniq(ids []domain.Identifier) []domain.Identifier {
	seen := make(domain.IdentifierSet, len(ids))
	out := make([]domain.Identifier, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen.Has(id) {
			continue
		}
		seen.Add(id)
		out = append(out, id)
	}
	return out
}

func contains(ids []domain.Identifier, id domain.Identifier) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
