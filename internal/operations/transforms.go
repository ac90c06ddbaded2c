package operations

import (
	"context"
	"net/url"
	"strconv"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/merge"
	"github.com/helixir/citation-index-service/internal/observability"
	"github.com/helixir/citation-index-service/internal/table"
)

// Merge collapses rows that describe the same citing/cited pair, tagging
// every value with the row's source. Arguments name the source, citing and
// cited columns. The result does not replace the original table.
func Merge(_ context.Context, t *table.Table, args ...string) (*table.Table, bool, error) {
	out, err := merge.Rows(t, merge.Options{
		Keys:   []string{arg(args, 1, "citing"), arg(args, 2, "cited")},
		Source: arg(args, 0, "source"),
	})
	if err != nil {
		return nil, false, contractError(OpMerge, err)
	}
	return out, false, nil
}

// DecodeDOI percent-decodes the display value of every named column.
// Values that are not valid escapes are left unchanged.
func DecodeDOI(_ context.Context, t *table.Table, args ...string) (*table.Table, bool, error) {
	idx, err := t.Indexes(args...)
	if err != nil {
		return nil, false, contractError(OpDecodeDOI, err)
	}

	out := t.Clone()
	for _, r := range out.Rows {
		for _, i := range idx {
			if v, err := url.PathUnescape(r[i].Display); err == nil {
				r[i] = table.NewCell(r[i].Raw, v)
			}
		}
	}
	return out, true, nil
}

// SumAll sums the count column into a one-row table with the same column
// name. A value that is not an integer yields an empty table.
func SumAll(_ context.Context, t *table.Table, args ...string) (*table.Table, bool, error) {
	col := arg(args, 0, "count")
	idx, err := t.Index(col)
	if err != nil {
		return nil, false, contractError(OpSumAll, err)
	}

	total := 0
	for _, r := range t.Rows {
		n, err := strconv.Atoi(r[idx].Display)
		if err != nil {
			return table.New(), true, nil
		}
		total += n
	}

	out := table.New(col)
	if err := out.AppendText(strconv.Itoa(total)); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// OALink appends an oa_link column holding the best open-access URL of the
// first DOI in the id column. Lookups that fail leave the cell empty.
func (p *Pipeline) OALink(ctx context.Context, t *table.Table, args ...string) (*table.Table, bool, error) {
	idIdx, err := t.Index(arg(args, 0, "id"))
	if err != nil {
		return nil, false, contractError(OpOALink, err)
	}

	out := t.Clone()
	if err := out.AddColumns("oa_link"); err != nil {
		return nil, false, contractError(OpOALink, err)
	}
	linkIdx := len(out.Header) - 1

	for _, r := range out.Rows {
		doi := firstDOI(cellIdentifiers(r[idIdx].Raw))
		if doi == "" || p.deps.OALinker == nil {
			continue
		}
		link, err := p.deps.OALinker.BestOALink(ctx, doi)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, false, ctxErr
			}
			observability.FromContext(ctx, p.logger).Warn().
				Err(err).
				Str("doi", doi).
				Msg("open access lookup failed")
			continue
		}
		r[linkIdx] = table.Text(link)
	}
	return out, true, nil
}

func firstDOI(ids []domain.Identifier) string {
	for _, id := range ids {
		if id.Scheme == domain.SchemeDOI {
			return id.Value
		}
	}
	return ""
}
