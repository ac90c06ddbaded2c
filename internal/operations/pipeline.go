// Package operations implements the named table transforms and parameter
// preprocessors that the dispatcher runs over index query results.
package operations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
	"github.com/helixir/citation-index-service/internal/metadata"
	"github.com/helixir/citation-index-service/internal/observability"
	"github.com/helixir/citation-index-service/internal/table"
)

// Transform names.
const (
	OpMetadata        = "metadata"
	OpCitationsInfo   = "citations_info"
	OpCountUniqueCits = "count_unique_cits"
	OpMerge           = "merge"
	OpDecodeDOI       = "decode_doi"
	OpSumAll          = "sum_all"
	OpOALink          = "oalink"
)

// Parameter preprocessor names.
const (
	ParamLower            = "lower"
	ParamEncode           = "encode"
	ParamGenerateIDSearch = "generate_id_search"
	ParamID2OMIDs         = "id2omids"
	ParamSplitIDsToOMIDs  = "split_ids_to_omids"
)

// Resolver maps identifiers to canonical resources.
type Resolver interface {
	Resolve(ctx context.Context, ids []domain.Identifier) (map[domain.Identifier]domain.ResourceRef, error)
	Candidates(ctx context.Context, id domain.Identifier) ([]domain.Identifier, error)
}

// BatchFetcher retrieves metadata for canonical ids.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, omids []domain.Identifier) (map[domain.Identifier]domain.ResourceMetadata, error)
}

// OALinker finds open-access copies of DOIs.
type OALinker interface {
	BestOALink(ctx context.Context, doi string) (string, error)
}

// Config parameterizes the pipeline.
type Config struct {
	// OutputSchemes restricts the identifiers written to the id column by
	// the metadata transform. Empty keeps every scheme.
	OutputSchemes []domain.Scheme
}

// Deps are the collaborators of the pipeline. Source serves the metadata
// transform and generate_id_search; Fetcher serves the citation
// transforms.
type Deps struct {
	Source   metadata.Source
	Fetcher  BatchFetcher
	Resolver Resolver
	OALinker OALinker
}

// Pipeline binds the transforms to their collaborators.
type Pipeline struct {
	deps    Deps
	config  Config
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline. metrics may be nil.
func New(deps Deps, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		deps:    deps,
		config:  cfg,
		logger:  observability.WithComponent(logger, "operations"),
		metrics: metrics,
	}
}

// Register adds every transform and preprocessor to r.
func (p *Pipeline) Register(r *Registry) {
	transforms := map[string]TransformFunc{
		OpMetadata:        p.Metadata,
		OpCitationsInfo:   p.CitationsInfo,
		OpCountUniqueCits: p.CountUniqueCits,
		OpMerge:           Merge,
		OpDecodeDOI:       DecodeDOI,
		OpSumAll:          SumAll,
		OpOALink:          p.OALink,
	}
	for name, fn := range transforms {
		r.RegisterTransform(name, p.instrument(name, fn))
	}

	r.RegisterParam(ParamLower, Lower)
	r.RegisterParam(ParamEncode, Encode)
	r.RegisterParam(ParamGenerateIDSearch, p.GenerateIDSearch)
	r.RegisterParam(ParamID2OMIDs, p.ID2OMIDs)
	r.RegisterParam(ParamSplitIDsToOMIDs, p.SplitIDsToOMIDs)
}

// instrument records duration, status and input size of every call and
// tags the context with the operation name.
func (p *Pipeline) instrument(name string, fn TransformFunc) TransformFunc {
	return func(ctx context.Context, t *table.Table, args ...string) (*table.Table, bool, error) {
		ctx = observability.WithOperation(ctx, name)
		start := time.Now()
		p.metrics.RecordInputRows(name, t.Len())

		out, replace, err := fn(ctx, t, args...)

		status := "success"
		if err != nil {
			status = "error"
			var cv *domain.ContractViolationError
			if errors.As(err, &cv) {
				status = "contract_violation"
			}
		}
		elapsed := time.Since(start)
		p.metrics.RecordOperation(name, status, elapsed.Seconds())

		ev := observability.FromContext(ctx, p.logger).Debug()
		if err != nil {
			ev = observability.FromContext(ctx, p.logger).Warn().Err(err)
		}
		ev.Int("rows_in", t.Len()).Dur("elapsed", elapsed).Msg("transform finished")
		return out, replace, err
	}
}

// args returns the i-th argument or def when it was not given.
func arg(args []string, i int, def string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return def
}

// cellIdentifiers parses a cell holding identifiers separated by
// whitespace or "; ".
func cellIdentifiers(raw string) []domain.Identifier {
	return identifier.Fields(strings.ReplaceAll(raw, ";", " "))
}

// contractError attaches the operation name to a table error.
func contractError(op string, err error) error {
	var cv *domain.ContractViolationError
	if errors.As(err, &cv) && cv.Operation == "" {
		return &domain.ContractViolationError{Operation: op, Message: cv.Message}
	}
	return err
}
