package operations

import (
	"context"
	"strconv"
	"strings"

	"github.com/helixir/citation-index-service/internal/citation"
	"github.com/helixir/citation-index-service/internal/dedup"
	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/merge"
	"github.com/helixir/citation-index-service/internal/table"
)

// citationColumns is the header produced by CitationsInfo.
var citationColumns = []string{"oci", "citing", "cited", "creation", "timespan", "journal_sc", "author_sc"}

// CitationsInfo builds one row per distinct citing/cited pair drawn from
// the product of the unique citing and unique cited resources of t.
// Arguments name the oci, citing and cited columns.
//
// Resources are unique when their alias sets do not intersect, directly
// or through other resources. Identifiers that do not resolve are skipped.
func (p *Pipeline) CitationsInfo(ctx context.Context, t *table.Table, args ...string) (*table.Table, bool, error) {
	citing, cited, err := p.uniqueSides(ctx, OpCitationsInfo, t, args)
	if err != nil {
		return nil, false, err
	}

	meta, err := p.fetch(ctx, append(refIDs(citing), refIDs(cited)...))
	if err != nil {
		return nil, false, err
	}

	out := table.New(citationColumns...)
	pairs := merge.NewPairSet()
	for _, a := range citing {
		for _, b := range cited {
			if !pairs.Add(a.ID.String(), b.ID.String()) {
				continue
			}
			fact := citation.Fact(metadataOf(a, meta), metadataOf(b, meta))
			err := out.AppendText(
				fact.OCI,
				p.displayIdentifiers(metadataOf(a, meta)),
				p.displayIdentifiers(metadataOf(b, meta)),
				fact.Creation,
				fact.Timespan,
				citation.YesNo(fact.JournalSelfCitation),
				citation.YesNo(fact.AuthorSelfCitation),
			)
			if err != nil {
				return nil, false, err
			}
		}
	}
	return out, true, nil
}

// CountUniqueCits counts the rows CitationsInfo would produce, without
// fetching metadata. The result has a single "count" column.
func (p *Pipeline) CountUniqueCits(ctx context.Context, t *table.Table, args ...string) (*table.Table, bool, error) {
	citing, cited, err := p.uniqueSides(ctx, OpCountUniqueCits, t, args)
	if err != nil {
		return nil, false, err
	}

	pairs := merge.NewPairSet()
	for _, a := range citing {
		for _, b := range cited {
			pairs.Add(a.ID.String(), b.ID.String())
		}
	}

	out := table.New("count")
	if err := out.AppendText(strconv.Itoa(pairs.Len())); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// uniqueSides resolves the citing and cited columns and deduplicates each
// side by alias-set intersection.
func (p *Pipeline) uniqueSides(ctx context.Context, op string, t *table.Table, args []string) (citing, cited []domain.ResourceRef, err error) {
	cols := []string{arg(args, 0, "oci"), arg(args, 1, "citing"), arg(args, 2, "cited")}
	idx, err := t.Indexes(cols...)
	if err != nil {
		return nil, nil, contractError(op, err)
	}

	var citingIDs, citedIDs []domain.Identifier
	for _, r := range t.Rows {
		citingIDs = append(citingIDs, cellIdentifiers(r[idx[1]].Raw)...)
		citedIDs = append(citedIDs, cellIdentifiers(r[idx[2]].Raw)...)
	}

	refs, err := p.resolve(ctx, append(citingIDs, citedIDs...))
	if err != nil {
		return nil, nil, err
	}
	return p.unique(refs, citingIDs), p.unique(refs, citedIDs), nil
}

// resolve maps identifiers to resources. Without a resolver only OMIDs
// resolve, to themselves.
func (p *Pipeline) resolve(ctx context.Context, ids []domain.Identifier) (map[domain.Identifier]domain.ResourceRef, error) {
	ids = uniqueIdentifiers(ids)
	if p.deps.Resolver == nil {
		out := make(map[domain.Identifier]domain.ResourceRef, len(ids))
		for _, id := range ids {
			if id.Scheme == domain.SchemeOMID {
				out[id] = domain.ResourceRef{ID: id}
			}
		}
		return out, nil
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return p.deps.Resolver.Resolve(ctx, ids)
}

func (p *Pipeline) unique(refs map[domain.Identifier]domain.ResourceRef, ids []domain.Identifier) []domain.ResourceRef {
	var found []domain.ResourceRef
	for _, id := range uniqueIdentifiers(ids) {
		if ref, ok := refs[id]; ok {
			found = append(found, ref)
		}
	}
	out := dedup.Resources(found)
	if n := len(found) - len(out); n > 0 {
		p.metrics.RecordDuplicateResources(n)
	}
	return out
}

// fetch retrieves metadata for the given canonical ids. A missing fetcher
// yields no metadata.
func (p *Pipeline) fetch(ctx context.Context, omids []domain.Identifier) (map[domain.Identifier]domain.ResourceMetadata, error) {
	if p.deps.Fetcher == nil || len(omids) == 0 {
		return nil, nil
	}
	return p.deps.Fetcher.FetchBatch(ctx, omids)
}

// metadataOf returns the fetched metadata of ref, falling back to what the
// resolver knows about it.
func metadataOf(ref domain.ResourceRef, meta map[domain.Identifier]domain.ResourceMetadata) domain.ResourceMetadata {
	if md, ok := meta[ref.ID]; ok {
		return md
	}
	return domain.ResourceMetadata{
		ID:          ref.ID,
		Identifiers: append([]domain.Identifier{ref.ID}, ref.Aliases...),
	}
}

// displayIdentifiers renders a resource's identifiers for a citing or
// cited cell, honouring Config.OutputSchemes.
func (p *Pipeline) displayIdentifiers(md domain.ResourceMetadata) string {
	return strings.Join(p.outputIdentifiers(md), " ")
}

func refIDs(refs []domain.ResourceRef) []domain.Identifier {
	out := make([]domain.Identifier, len(refs))
	for i, r := range refs {
		out[i] = r.ID
	}
	return out
}
