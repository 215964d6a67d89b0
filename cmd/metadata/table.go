package main

import (
	"encoding/csv"
	"io"

	"cellpipe/internal/metadata"
)

// writeTable renders a metadata table as CSV. Cells a record never produced
// get the absent marker; extracted-but-empty cells stay empty, so the two
// are distinguishable downstream.
func writeTable(w io.Writer, t metadata.Table, absent string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns); err != nil {
		return err
	}

	row := make([]string, len(t.Columns))
	for _, cells := range t.Rows {
		for i, c := range cells {
			if c.Present {
				row[i] = c.Value
			} else {
				row[i] = absent
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
