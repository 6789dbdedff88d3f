// Package csvexport writes homogeneous flat records as CSV. The header is
// taken from the first record; every row lists values in that order.
package csvexport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// Field is one named column value.
type Field struct {
	Name  string
	Value string
}

// Record is an ordered list of fields.
type Record []Field

// Rower is implemented by anything exportable.
type Rower interface {
	Row() Record
}

// Write emits records to w. An empty slice produces no output.
func Write(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	header := make([]string, len(records[0]))
	for i, f := range records[0] {
		header[i] = f.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		if len(rec) != len(header) {
			return fmt.Errorf("record %d has %d fields, want %d", i, len(rec), len(header))
		}
		row := make([]string, len(rec))
		for j, f := range rec {
			row[j] = f.Value
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Rows collects Row() from each item.
func Rows[T Rower](items []T) []Record {
	out := make([]Record, 0, len(items))
	for _, it := range items {
		out = append(out, it.Row())
	}
	return out
}

// Bytes is Write into a buffer.
func Bytes(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
