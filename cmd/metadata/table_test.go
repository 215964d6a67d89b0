package main

import (
	"strings"
	"testing"

	"cellpipe/internal/metadata"
)

// Absent cells render as the marker; extracted-but-empty cells stay empty.
func TestWriteTable(t *testing.T) {
	t.Parallel()

	table := metadata.Table{
		Columns: []string{metadata.ColPath, "Well"},
		Rows: [][]metadata.Cell{
			{{Value: "/a.tif", Present: true}, {Value: "B08", Present: true}},
			{{Value: "/b.tif", Present: true}, {Value: "", Present: true}},
			{{Value: "/c.tif", Present: true}, {}},
		},
	}

	var buf strings.Builder
	if err := writeTable(&buf, table, "None"); err != nil {
		t.Fatalf("writeTable: %v", err)
	}

	want := "Path / URL,Well\n/a.tif,B08\n/b.tif,\n/c.tif,None\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}
