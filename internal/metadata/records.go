package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ReadRecordList reads image-path records from delimited text. Each row is
// path[,series[,index[,channel]]]; missing trailing fields default to zero
// values. A header row starting with the fixed path column name is skipped.
func ReadRecordList(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var records []Record
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record list: %w", err)
		}
		line++

		if len(row) == 0 || len(row) == 1 && row[0] == "" {
			continue
		}
		if line == 1 && row[0] == ColPath {
			continue
		}

		rec := Record{Path: row[0]}
		if len(row) > 1 && row[1] != "" {
			n, err := strconv.Atoi(row[1])
			if err != nil {
				return nil, fmt.Errorf("record list line %d: series: %w", line, err)
			}
			rec.Series = n
		}
		if len(row) > 2 && row[2] != "" {
			n, err := strconv.Atoi(row[2])
			if err != nil {
				return nil, fmt.Errorf("record list line %d: index: %w", line, err)
			}
			rec.Index = n
		}
		if len(row) > 3 {
			rec.Channel = row[3]
		}
		records = append(records, rec)
	}
}
