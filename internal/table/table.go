// Package table models the tabular query results that citation operations
// transform: an ordered header and rows of cells.
package table

import (
	"encoding/json"
	"fmt"

	"github.com/helixir/citation-index-service/internal/domain"
)

// Cell holds a value in two forms. Raw is used for indexing and
// deduplication; Display is what downstream consumers read.
type Cell struct {
	Raw     string
	Display string
}

// Text returns a cell whose raw and display values are both s.
func Text(s string) Cell {
	return Cell{Raw: s, Display: s}
}

// NewCell returns a cell with distinct raw and display values.
func NewCell(raw, display string) Cell {
	return Cell{Raw: raw, Display: display}
}

// MarshalJSON encodes a cell as a string when both forms agree and as a
// [raw, display] pair otherwise.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Raw == c.Display {
		return json.Marshal(c.Display)
	}
	return json.Marshal([2]string{c.Raw, c.Display})
}

// UnmarshalJSON accepts a string, a number, null, or a [raw, display] pair.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Text(s)
		return nil
	}

	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("cell pair must have 2 elements, got %d", len(pair))
		}
		*c = NewCell(pair[0], pair[1])
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Text(n.String())
		return nil
	}

	if string(data) == "null" {
		*c = Cell{}
		return nil
	}

	return fmt.Errorf("unsupported cell value: %s", string(data))
}

// Row is an ordered sequence of cells aligned to a header.
type Row []Cell

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Table is a header followed by zero or more rows. Every row has the same
// length as the header.
type Table struct {
	Header []string `json:"header"`
	Rows   []Row    `json:"rows"`
}

// New creates an empty table with the given header.
func New(header ...string) *Table {
	h := make([]string, len(header))
	copy(h, header)
	return &Table{Header: h}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of col in the header.
func (t *Table) Index(col string) (int, error) {
	for i, h := range t.Header {
		if h == col {
			return i, nil
		}
	}
	return -1, domain.NewContractViolationError("", "column %q not found in header %v", col, t.Header)
}

// Indexes returns the positions of every named column.
func (t *Table) Indexes(cols ...string) ([]int, error) {
	out := make([]int, len(cols))
	for i, c := range cols {
		idx, err := t.Index(c)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Has reports whether col is part of the header.
func (t *Table) Has(col string) bool {
	_, err := t.Index(col)
	return err == nil
}

// Append adds a row built from cells.
func (t *Table) Append(cells ...Cell) error {
	return t.AppendRow(Row(cells))
}

// AppendRow adds a row after checking its length against the header.
func (t *Table) AppendRow(r Row) error {
	if len(r) != len(t.Header) {
		return domain.NewContractViolationError("", "row has %d cells, header has %d", len(r), len(t.Header))
	}
	t.Rows = append(t.Rows, r)
	return nil
}

// AppendText adds a row of plain text cells.
func (t *Table) AppendText(values ...string) error {
	r := make(Row, len(values))
	for i, v := range values {
		r[i] = Text(v)
	}
	return t.AppendRow(r)
}

// AddColumns appends columns to the header and extends every row with empty
// cells.
func (t *Table) AddColumns(names ...string) error {
	for _, n := range names {
		if t.Has(n) {
			return domain.NewContractViolationError("", "column %q already exists", n)
		}
		t.Header = append(t.Header, n)
	}
	for i := range t.Rows {
		for range names {
			t.Rows[i] = append(t.Rows[i], Cell{})
		}
	}
	return nil
}

// DropColumns removes the named columns from the header and every row.
func (t *Table) DropColumns(names ...string) error {
	drop := make(map[int]bool, len(names))
	for _, n := range names {
		idx, err := t.Index(n)
		if err != nil {
			return err
		}
		drop[idx] = true
	}
	if len(drop) == 0 {
		return nil
	}

	header := make([]string, 0, len(t.Header)-len(drop))
	for i, h := range t.Header {
		if !drop[i] {
			header = append(header, h)
		}
	}
	for ri, r := range t.Rows {
		kept := make(Row, 0, len(header))
		for i, c := range r {
			if !drop[i] {
				kept = append(kept, c)
			}
		}
		t.Rows[ri] = kept
	}
	t.Header = header
	return nil
}

// Validate checks that header names are unique and that every row matches
// the header length.
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		if seen[h] {
			return domain.NewContractViolationError("", "duplicate column %q", h)
		}
		seen[h] = true
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Header) {
			return domain.NewContractViolationError("", "row %d has %d cells, header has %d", i, len(r), len(t.Header))
		}
	}
	return nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.Header...)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Get returns the cell at row i for column col.
func (t *Table) Get(i int, col string) (Cell, error) {
	idx, err := t.Index(col)
	if err != nil {
		return Cell{}, err
	}
	return t.Rows[i][idx], nil
}
