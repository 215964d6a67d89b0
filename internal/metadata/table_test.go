package metadata

import (
	"reflect"
	"strings"
	"testing"

	"cellpipe/internal/config"
)

// The table's column set is the four fixed columns plus the sorted union of
// every tag produced across all records; a record that never produced a tag
// gets an absent cell, which is distinct from an extracted empty string.
func TestBuildTable_ColumnUnionAndAbsentCells(t *testing.T) {
	t.Parallel()

	rules, err := CompileRules(config.MetadataConfig{Rules: []config.RuleConfig{
		{
			Method:  config.MethodManual,
			Source:  config.SourceFileName,
			Pattern: `^(?P<Plate>[^_]+)_(?P<Well>[A-P][0-9]{2})`,
		},
		{
			Method:  config.MethodManual,
			Source:  config.SourceFileName,
			Pattern: `_s(?P<Site>[0-9]*)\.`,
		},
	}})
	if err != nil {
		t.Fatalf("CompileRules: %v", err)
	}

	records := []Record{
		{Path: "/images/P1_B08_s3.tif", Series: 0, Index: 1, Channel: "w1"},
		{Path: "/images/P2_C11_s.tif"},  // Site matches the empty string
		{Path: "/images/unmatched.tif"}, // no tags at all
	}

	table := BuildTable(records, rules)

	wantCols := []string{ColPath, ColSeries, ColIndex, ColChannel, "Plate", "Site", "Well"}
	if !reflect.DeepEqual(table.Columns, wantCols) {
		t.Fatalf("Columns = %v, want %v", table.Columns, wantCols)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.Rows))
	}

	cell := func(row int, col string) Cell {
		for i, c := range table.Columns {
			if c == col {
				return table.Rows[row][i]
			}
		}
		t.Fatalf("no column %q", col)
		return Cell{}
	}

	if got := cell(0, "Well"); got != (Cell{Value: "B08", Present: true}) {
		t.Fatalf("row 0 Well = %+v", got)
	}
	if got := cell(0, ColIndex); got != (Cell{Value: "1", Present: true}) {
		t.Fatalf("row 0 Index = %+v", got)
	}

	// Extracted-as-empty is present; never-extracted is absent.
	if got := cell(1, "Site"); !got.Present || got.Value != "" {
		t.Fatalf("row 1 Site = %+v, want present empty cell", got)
	}
	if got := cell(2, "Site"); got.Present {
		t.Fatalf("row 2 Site = %+v, want absent cell", got)
	}
	if got := cell(2, "Plate"); got.Present {
		t.Fatalf("row 2 Plate = %+v, want absent cell", got)
	}
}

func TestBuildTable_NoRulesKeepsFixedColumns(t *testing.T) {
	t.Parallel()

	table := BuildTable([]Record{{Path: "/a.tif"}}, nil)
	want := []string{ColPath, ColSeries, ColIndex, ColChannel}
	if !reflect.DeepEqual(table.Columns, want) {
		t.Fatalf("Columns = %v, want %v", table.Columns, want)
	}
}

func TestReadRecordList(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		`Path / URL,Series,Index,Channel`,
		`/images/a.tif,0,1,w1`,
		`/images/b.tif,2`,
		`/images/c.tif`,
		``,
	}, "\n")

	got, err := ReadRecordList(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadRecordList: %v", err)
	}

	want := []Record{
		{Path: "/images/a.tif", Series: 0, Index: 1, Channel: "w1"},
		{Path: "/images/b.tif", Series: 2},
		{Path: "/images/c.tif"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("records = %+v, want %+v", got, want)
	}
}

func TestReadRecordList_BadSeries(t *testing.T) {
	t.Parallel()

	_, err := ReadRecordList(strings.NewReader("/images/a.tif,two\n"))
	if err == nil {
		t.Fatalf("expected error for non-numeric series")
	}
}
