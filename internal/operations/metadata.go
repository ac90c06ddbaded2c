package operations

import (
	"context"
	"strconv"
	"strings"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/observability"
	"github.com/helixir/citation-index-service/internal/table"
)

// metadataColumns are appended by the metadata transform, in this order.
var metadataColumns = []string{
	"citation_count", "author", "editor", "pub_date", "title", "venue", "volume", "issue", "page",
}

const listSeparator = "; "

// Metadata enriches every row with the metadata of the resource in the id
// column and rewrites the citation and reference columns to canonical ids.
// Arguments name the id, citation and reference columns and default to
// "id", "citation" and "reference".
//
// The transform filters on existence: a row whose resource has no metadata
// record is removed. citation_count counts the citations that resolved.
func (p *Pipeline) Metadata(ctx context.Context, t *table.Table, args ...string) (*table.Table, bool, error) {
	cols := []string{arg(args, 0, "id"), arg(args, 1, "citation"), arg(args, 2, "reference")}
	idx, err := t.Indexes(cols...)
	if err != nil {
		return nil, false, contractError(OpMetadata, err)
	}
	idIdx, citIdx, refIdx := idx[0], idx[1], idx[2]

	out := t.Clone()
	if err := out.AddColumns(metadataColumns...); err != nil {
		return nil, false, contractError(OpMetadata, err)
	}

	var wanted []domain.Identifier
	for _, r := range out.Rows {
		wanted = append(wanted, cellIdentifiers(r[idIdx].Raw)...)
		wanted = append(wanted, cellIdentifiers(r[citIdx].Raw)...)
		wanted = append(wanted, cellIdentifiers(r[refIdx].Raw)...)
	}

	records, err := p.lookup(ctx, wanted)
	if err != nil {
		return nil, false, err
	}
	index := newRecordIndex(records)

	kept := out.Rows[:0]
	dropped := 0
	for _, r := range out.Rows {
		md, ok := index.first(cellIdentifiers(r[idIdx].Raw))
		if !ok {
			dropped++
			continue
		}
		citations := index.canonical(cellIdentifiers(r[citIdx].Raw))
		references := index.canonical(cellIdentifiers(r[refIdx].Raw))

		r[idIdx] = table.Text(strings.Join(p.outputIdentifiers(md), listSeparator))
		r[citIdx] = table.Text(strings.Join(citations, listSeparator))
		r[refIdx] = table.Text(strings.Join(references, listSeparator))

		base := len(t.Header)
		values := []string{
			strconv.Itoa(len(citations)),
			md.AuthorString(),
			md.EditorString(),
			md.PubDate,
			md.Title,
			md.Venue.String(),
			md.Volume,
			md.Issue,
			md.Page,
		}
		for i, v := range values {
			r[base+i] = table.Text(v)
		}
		kept = append(kept, r)
	}
	out.Rows = kept

	if dropped > 0 {
		p.metrics.RecordRowsDropped(OpMetadata, dropped)
	}
	return out, true, nil
}

// lookup queries the metadata source once for every identifier. A failing
// source yields no records.
func (p *Pipeline) lookup(ctx context.Context, ids []domain.Identifier) ([]domain.ResourceMetadata, error) {
	if len(ids) == 0 || p.deps.Source == nil {
		return nil, nil
	}
	records, err := p.deps.Source.Lookup(ctx, uniqueIdentifiers(ids))
	if err != nil {
		if !domain.IsDegradable(err) {
			return nil, err
		}
		observability.FromContext(ctx, p.logger).Warn().Err(err).
			Msg("metadata source unavailable, treating every resource as unknown")
		return nil, nil
	}
	return records, nil
}

// outputIdentifiers lists the identifiers written to the id column.
func (p *Pipeline) outputIdentifiers(md domain.ResourceMetadata) []string {
	allowed := make(map[domain.Scheme]bool, len(p.config.OutputSchemes))
	for _, s := range p.config.OutputSchemes {
		allowed[s] = true
	}
	out := make([]string, 0, len(md.Identifiers))
	for _, id := range md.Identifiers {
		if len(allowed) > 0 && !allowed[id.Scheme] {
			continue
		}
		out = append(out, id.String())
	}
	return out
}

// recordIndex finds the record carrying a given identifier.
type recordIndex struct {
	records []domain.ResourceMetadata
	byID    map[string]int
}

func newRecordIndex(records []domain.ResourceMetadata) *recordIndex {
	ix := &recordIndex{records: records, byID: make(map[string]int)}
	for i, md := range records {
		for _, id := range append([]domain.Identifier{md.ID}, md.Identifiers...) {
			if id.IsZero() {
				continue
			}
			if _, ok := ix.byID[id.String()]; !ok {
				ix.byID[id.String()] = i
			}
		}
	}
	return ix
}

// first returns the record of the first identifier that has one.
func (ix *recordIndex) first(ids []domain.Identifier) (domain.ResourceMetadata, bool) {
	for _, id := range ids {
		if i, ok := ix.byID[id.String()]; ok {
			return ix.records[i], true
		}
	}
	return domain.ResourceMetadata{}, false
}

// canonical maps identifiers to the canonical ids of their records, in
// input order, without duplicates. Unknown identifiers are left out.
func (ix *recordIndex) canonical(ids []domain.Identifier) []string {
	seen := make(map[int]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		i, ok := ix.byID[id.String()]
		if !ok || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, ix.records[i].ID.String())
	}
	return out
}

func uniqueIdentifiers(ids []domain.Identifier) []domain.Identifier {
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
