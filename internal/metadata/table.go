package metadata

import (
	"sort"
	"strconv"
)

// Fixed leading columns of the metadata table, in display order.
const (
	ColPath    = "Path / URL"
	ColSeries  = "Series"
	ColIndex   = "Index"
	ColChannel = "Channel"
)

// Cell is one metadata table cell. Present distinguishes "tag was never
// extracted for this record" from "tag was extracted as the empty string";
// downstream consumers must not conflate the two.
type Cell struct {
	Value   string
	Present bool
}

// Table is the derived metadata view: the four fixed columns followed by the
// sorted union of every tag key produced across all records, one row per
// record. It is rebuilt on demand and never persisted.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// BuildTable runs extraction over all records and materializes the table.
// Tag columns are the union of keys across records, sorted lexicographically
// after the fixed columns. Records lacking a tag get an absent cell.
func BuildTable(records []Record, rules []Rule) Table {
	extracted := make([]map[string]string, len(records))
	keys := map[string]bool{}
	for i, rec := range records {
		extracted[i] = Extract(rec, rules)
		for k := range extracted[i] {
			keys[k] = true
		}
	}

	tagCols := make([]string, 0, len(keys))
	for k := range keys {
		tagCols = append(tagCols, k)
	}
	sort.Strings(tagCols)

	columns := append([]string{ColPath, ColSeries, ColIndex, ColChannel}, tagCols...)

	rows := make([][]Cell, 0, len(records))
	for i, rec := range records {
		row := make([]Cell, 0, len(columns))
		row = append(row,
			Cell{Value: rec.Path, Present: true},
			Cell{Value: strconv.Itoa(rec.Series), Present: true},
			Cell{Value: strconv.Itoa(rec.Index), Present: true},
			Cell{Value: rec.Channel, Present: true},
		)
		for _, col := range tagCols {
			if v, ok := extracted[i][col]; ok {
				row = append(row, Cell{Value: v, Present: true})
			} else {
				row = append(row, Cell{})
			}
		}
		rows = append(rows, row)
	}

	return Table{Columns: columns, Rows: rows}
}
