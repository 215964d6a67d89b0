package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cellpipe/internal/measure"
	"cellpipe/internal/metrics"
	"cellpipe/internal/storage/sqlite"
)

// objectKey identifies one per-object feature vector being accumulated.
type objectKey struct {
	entity  string
	rec     int
	feature string
}

// loadCSV reads long-form measurement rows (entity,record,feature,value)
// and writes them to the store. Image and Experiment rows write directly;
// object rows with the same entity/record/feature accumulate into one vector
// in file order, written once the whole file is read. A header row is
// skipped. Returns the number of input rows loaded.
func loadCSV(ctx context.Context, store *sqlite.Store, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4

	vectors := map[objectKey][]float64{}
	var order []objectKey

	rows := 0
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("measurements: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(row[0], "entity") {
			continue
		}

		entity, feature, value := row[0], row[2], row[3]
		rec := 0
		if row[1] != "" {
			rec, err = strconv.Atoi(row[1])
			if err != nil {
				return rows, fmt.Errorf("measurements line %d: record: %w", line, err)
			}
		}

		switch entity {
		case measure.ExperimentEntity:
			err = store.SetExperiment(ctx, feature, value)
		case measure.ImageEntity:
			err = store.SetImage(ctx, rec, feature, value)
		default:
			var f float64
			f, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return rows, fmt.Errorf("measurements line %d: object value: %w", line, err)
			}
			k := objectKey{entity, rec, feature}
			if _, seen := vectors[k]; !seen {
				order = append(order, k)
			}
			vectors[k] = append(vectors[k], f)
		}
		if err != nil {
			return rows, fmt.Errorf("measurements line %d: %w", line, err)
		}
		rows++
	}

	for _, k := range order {
		if err := store.SetObjects(ctx, k.entity, k.rec, k.feature, vectors[k]); err != nil {
			return rows, fmt.Errorf("store %s/%s: %w", k.entity, k.feature, err)
		}
	}

	metrics.IncCounter("pipeline_rows_total", float64(rows), metrics.Labels{"kind": "load"})
	return rows, nil
}
