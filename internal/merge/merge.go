// Package merge collapses table rows that describe the same logical fact
// into one row.
package merge

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
	"github.com/helixir/citation-index-service/internal/table"
)

// DefaultSeparator joins merged values.
const DefaultSeparator = "; "

// SourceArrow separates a source tag from the value it qualifies.
const SourceArrow = " => "

const keySep = "\x1f"

// Options controls how rows are grouped and merged.
type Options struct {
	// Keys are the columns whose raw values identify a group. Each key cell
	// is read as a list of identifiers separated by whitespace or ';' and
	// compared in normalized form.
	Keys []string
	// Source, when set, names a column whose value tags every other value
	// ("coci => 10.1/x"). The column is dropped from the output.
	Source string
	// Drop lists columns removed once merging is done.
	Drop []string
	// Separator joins merged values. Defaults to "; ".
	Separator string
}

type group struct {
	rows []table.Row
}

// Rows groups t's rows by the normalized identifiers in opts.Keys and merges
// each group into one row. Single-row groups pass through; in larger groups
// every column becomes the sorted set of its distinct values, already merged
// values counting member by member. Output rows are ordered by group key, so
// the result does not depend on input order and merging twice changes
// nothing.
func Rows(t *table.Table, opts Options) (*table.Table, error) {
	if len(opts.Keys) == 0 {
		return nil, domain.NewContractViolationError("merge", "no key columns given")
	}
	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	keyIdx, err := t.Indexes(opts.Keys...)
	if err != nil {
		return nil, asMergeError(err)
	}
	srcIdx := -1
	if opts.Source != "" {
		if srcIdx, err = t.Index(opts.Source); err != nil {
			return nil, asMergeError(err)
		}
	}
	if _, err := t.Indexes(opts.Drop...); err != nil {
		return nil, asMergeError(err)
	}

	keys := make([]string, 0, len(t.Rows))
	groups := make(map[string]*group, len(t.Rows))
	for _, r := range t.Rows {
		if srcIdx >= 0 {
			r = tag(r, srcIdx)
		}
		k := key(r, keyIdx)
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.rows = append(g.rows, r)
	}

	sort.Strings(keys)
	out := table.New(t.Header...)
	for _, k := range keys {
		g := groups[k]
		if len(g.rows) == 1 {
			out.Rows = append(out.Rows, g.rows[0])
			continue
		}
		out.Rows = append(out.Rows, mergeGroup(g.rows, len(t.Header), sep))
	}

	drop := append([]string{}, opts.Drop...)
	if opts.Source != "" {
		drop = append(drop, opts.Source)
	}
	if err := out.DropColumns(dedupe(drop)...); err != nil {
		return nil, asMergeError(err)
	}
	return out, nil
}

func mergeGroup(rows []table.Row, width int, sep string) table.Row {
	merged := make(table.Row, width)
	for col := 0; col < width; col++ {
		raws := newValueSet()
		displays := newValueSet()
		for _, r := range rows {
			raws.add(r[col].Raw, sep)
			displays.add(r[col].Display, sep)
		}
		merged[col] = table.NewCell(raws.join(sep), displays.join(sep))
	}
	return merged
}

// tag prefixes every non-empty display value with the row's source.
func tag(r table.Row, srcIdx int) table.Row {
	src := strings.Trim(r[srcIdx].Display, "/ ")
	if src == "" {
		return r
	}
	out := r.Clone()
	for i, c := range out {
		if i == srcIdx || c.Display == "" {
			continue
		}
		out[i] = table.NewCell(c.Raw, src+SourceArrow+c.Display)
	}
	return out
}

func key(r table.Row, idx []int) string {
	parts := make([]string, len(idx))
	for i, j := range idx {
		parts[i] = keyPart(r[j].Raw)
	}
	return strings.Join(parts, keySep)
}

// keyPart canonicalizes a key cell: every identifier is normalized and the
// distinct identifiers are sorted.
func keyPart(raw string) string {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})
	ids := newValueSet()
	for _, tok := range tokens {
		ids.add(identifier.Normalize(tok).String(), "")
	}
	return ids.join(" ")
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func asMergeError(err error) error {
	var cv *domain.ContractViolationError
	if errors.As(err, &cv) && cv.Operation == "" {
		return &domain.ContractViolationError{Operation: "merge", Message: cv.Message}
	}
	return err
}

// valueSet accumulates distinct non-empty values.
type valueSet map[string]struct{}

func newValueSet() valueSet {
	return valueSet{}
}

// add records v. When sep is set, v may itself be a merged value and each
// of its members is recorded separately.
func (s valueSet) add(v, sep string) {
	if sep == "" {
		if v != "" {
			s[v] = struct{}{}
		}
		return
	}
	for _, part := range strings.Split(v, sep) {
		if part != "" {
			s[part] = struct{}{}
		}
	}
}

func (s valueSet) join(sep string) string {
	vals := make([]string, 0, len(s))
	for v := range s {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return strings.Join(vals, sep)
}
