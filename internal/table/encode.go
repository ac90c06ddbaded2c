package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// Records returns the display values as a header-first slice of records.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	header := make([]string, len(t.Header))
	copy(header, t.Header)
	out = append(out, header)
	for _, r := range t.Rows {
		rec := make([]string, len(r))
		for i, c := range r {
			rec[i] = c.Display
		}
		out = append(out, rec)
	}
	return out
}

// WriteJSON writes the table as an array of objects keyed by header, with
// keys in header order.
func (t *Table) WriteJSON(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for ri, r := range t.Rows {
		if ri > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i, h := range t.Header {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(h)
			if err != nil {
				return fmt.Errorf("encode key %q: %w", h, err)
			}
			val, err := json.Marshal(r[i].Display)
			if err != nil {
				return fmt.Errorf("encode value of %q: %w", h, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteCSV writes the table as CSV with a header line.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// FromRecords builds a table of plain text cells from a header-first slice
// of records.
func FromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return New(), nil
	}
	t := New(records[0]...)
	for _, rec := range records[1:] {
		if err := t.AppendText(rec...); err != nil {
			return nil, err
		}
	}
	return t, t.Validate()
}

// ReadCSV parses CSV input whose first line is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return FromRecords(records)
}
