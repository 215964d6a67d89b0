package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"cellpipe/internal/config"
	"cellpipe/internal/measure"
	"cellpipe/internal/metrics"
)

// Options controls one export run.
type Options struct {
	Delimiter             rune
	PrependOutputFileName bool
	AddMetadata           bool
	AddIndexes            bool
	ExcelLimits           bool
	PickColumns           bool
	Encoding              Encoding

	// OutputDir is the default output directory relative file names
	// resolve against.
	OutputDir string

	// OutputFileName is the run's own output file; its base name prefixes
	// data file names when PrependOutputFileName is set.
	OutputFileName string

	// Picker narrows columns before writing. Nil means pass-through.
	Picker ColumnPicker
}

// OptionsFromConfig resolves the serialized export config into runtime
// options. Delimiter and encoding errors here are configuration errors.
func OptionsFromConfig(c config.ExportConfig) (Options, error) {
	delim, err := c.DelimiterRune()
	if err != nil {
		return Options{}, err
	}

	var enc Encoding
	switch c.Encoding {
	case config.EncodingUTF8:
		enc = UTF8
	case config.EncodingUTF8BOM:
		enc = UTF8BOM
	case config.EncodingWindows1252:
		enc = Windows1252
	default:
		return Options{}, fmt.Errorf("unknown encoding %q", c.Encoding)
	}

	return Options{
		Delimiter:             delim,
		PrependOutputFileName: c.PrependOutputFileName,
		AddMetadata:           c.AddMetadata,
		AddIndexes:            c.AddIndexes,
		ExcelLimits:           c.ExcelLimits,
		PickColumns:           c.PickColumns,
		Encoding:              enc,
		OutputDir:             c.OutputDir,
		OutputFileName:        c.OutputFileName,
	}, nil
}

// Exporter writes measurement tables from a store to delimited files.
// Single-threaded, run-to-completion; file writes are sequential and
// independent per output unit.
type Exporter struct {
	store measure.Store
	opt   Options
}

// New constructs an Exporter. A nil Picker defaults to pass-through and a
// zero Delimiter defaults to comma.
func New(store measure.Store, opt Options) *Exporter {
	if opt.Picker == nil {
		opt.Picker = PassThrough{}
	}
	if opt.Delimiter == 0 {
		opt.Delimiter = ','
	}
	return &Exporter{store: store, opt: opt}
}

// Run exports every output unit derived from the group list and returns the
// paths of all files written. An I/O error is fatal for its output unit;
// files written before the failure are kept, and the remaining units still
// run. All unit errors are reported together.
func (e *Exporter) Run(ctx context.Context, groups []Group) ([]string, error) {
	var written []string
	var errs []error

	for _, u := range PartitionUnits(groups) {
		files, err := e.runUnit(ctx, u)
		written = append(written, files...)
		if err != nil {
			errs = append(errs, fmt.Errorf("unit %q: %w", u.FileName, err))
			continue
		}
	}

	metrics.IncCounter("pipeline_files_total", float64(len(written)), metrics.Labels{"kind": "export"})

	if len(errs) > 0 {
		return written, joinErrors(errs)
	}
	return written, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("%d units failed: %s", len(errs), strings.Join(msgs, "; "))
}

// runUnit writes one output unit: a single experiment file, or one image or
// merged-object file per metadata partition of the unit's file name.
func (e *Exporter) runUnit(ctx context.Context, u Unit) ([]string, error) {
	if len(u.Entities) == 1 && u.Entities[0] == measure.ExperimentEntity {
		path, err := e.writeExperimentFile(ctx, u.FileName)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	tags := TagTokens(u.FileName)
	partitions, err := measure.GroupByTags(ctx, e.store, tags)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, p := range partitions {
		var path string
		var err error
		if len(u.Entities) == 1 && u.Entities[0] == measure.ImageEntity {
			path, err = e.writeImageFile(ctx, u.FileName, p)
		} else {
			path, err = e.writeObjectFile(ctx, u.Entities, u.FileName, p)
		}
		if err != nil {
			return written, err
		}
		if path != "" {
			written = append(written, path)
		}
	}
	return written, nil
}

// outFile bundles a created file with its layered writers so rows can be
// written through the csv layer and everything flushed in the right order.
type outFile struct {
	path string
	f    *os.File
	enc  interface{ Close() error }
	w    *csv.Writer
}

func (e *Exporter) createFile(name string, tags map[string]string) (*outFile, error) {
	path, err := e.resolvePath(name, tags)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	enc, err := encodeWriter(f, e.opt.Encoding)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w := csv.NewWriter(enc)
	w.Comma = e.opt.Delimiter
	return &outFile{path: path, f: f, enc: enc, w: w}, nil
}

func (o *outFile) close() error {
	o.w.Flush()
	err := o.w.Error()
	if cerr := o.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := o.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", o.path, err)
	}
	return nil
}

// writeExperimentFile writes one row per experiment feature: the feature
// name followed by its value sequence across the whole run.
func (e *Exporter) writeExperimentFile(ctx context.Context, fileName string) (string, error) {
	features, err := e.store.FeatureNames(ctx, measure.ExperimentEntity)
	if err != nil {
		return "", err
	}

	out, err := e.createFile(fileName, nil)
	if err != nil {
		return "", err
	}

	for _, feature := range features {
		v, err := e.store.Value(ctx, measure.ExperimentEntity, feature, 0)
		if err != nil {
			_ = out.close()
			return "", err
		}
		row := append([]string{feature}, sequenceCells(v)...)
		if err := out.w.Write(row); err != nil {
			_ = out.close()
			return "", fmt.Errorf("write %s: %w", out.path, err)
		}
	}

	if err := out.close(); err != nil {
		return "", err
	}
	return out.path, nil
}

// writeImageFile writes one row per record in the partition. Aggregate
// statistic columns are computed per record; the first record of the
// partition fixes the column set (raw image features plus the sorted
// aggregate names, all sorted together) before the header goes out.
// Aggregates are preferred over same-named raw measurements.
//
// Returns "" with nil error when the column picker abandoned the file.
func (e *Exporter) writeImageFile(ctx context.Context, fileName string, p measure.TagGroup) (string, error) {
	features, err := e.store.FeatureNames(ctx, measure.ImageEntity)
	if err != nil {
		return "", err
	}
	if e.opt.AddIndexes {
		features = append([]string{measure.ImageNumber}, features...)
	}

	var out *outFile
	rows := 0

	for j, rec := range p.Indexes {
		agg, err := e.store.Aggregates(ctx, rec)
		if err != nil {
			return "", err
		}

		if j == 0 {
			have := make(map[string]bool, len(features))
			for _, name := range features {
				have[name] = true
			}
			for name := range agg {
				if !have[name] {
					features = append(features, name)
				}
			}
			sort.Strings(features)

			picked, aborted, err := e.pickColumns("Image file columns", features)
			if err != nil {
				return "", err
			}
			if aborted {
				return "", nil
			}
			features = picked

			out, err = e.createFile(fileName, p.Tags)
			if err != nil {
				return "", err
			}
			if err := out.w.Write(features); err != nil {
				_ = out.close()
				return "", fmt.Errorf("write %s: %w", out.path, err)
			}
		}

		row := make([]string, len(features))
		for i, feature := range features {
			switch {
			case feature == measure.ImageNumber && e.opt.AddIndexes:
				row[i] = strconv.Itoa(rec + 1)
			default:
				if v, ok := agg[feature]; ok {
					row[i] = formatFloat(v)
					continue
				}
				v, err := e.store.Value(ctx, measure.ImageEntity, feature, rec)
				if err != nil {
					_ = out.close()
					return "", err
				}
				row[i] = scalarCell(v)
			}
		}
		if err := out.w.Write(row); err != nil {
			_ = out.close()
			return "", fmt.Errorf("write %s: %w", out.path, err)
		}
		rows++
	}

	if out == nil {
		return "", nil
	}
	if err := out.close(); err != nil {
		return "", err
	}
	metrics.IncCounter("pipeline_rows_total", float64(rows), metrics.Labels{"kind": "image"})
	return out.path, nil
}

// featureKey locates a column as (entity, feature).
type featureKey struct {
	entity  string
	feature string
}

// writeObjectFile writes a merged object table: rows joined on ordinal
// position within each image across all entities in the unit. Two header
// rows (entity names, then feature names) when the unit has more than one
// entity, else one.
//
// Returns "" with nil error when the column picker abandoned the file.
func (e *Exporter) writeObjectFile(ctx context.Context, entities []string, fileName string, p measure.TagGroup) (string, error) {
	var features []featureKey

	if e.opt.AddIndexes {
		features = append(features,
			featureKey{measure.ImageEntity, measure.ImageNumber},
			featureKey{entities[0], measure.ObjectNumber},
		)
	}
	if e.opt.AddMetadata {
		imageFeatures, err := e.store.FeatureNames(ctx, measure.ImageEntity)
		if err != nil {
			return "", err
		}
		var md []string
		for _, name := range imageFeatures {
			if strings.HasPrefix(name, measure.MetadataPrefix) {
				md = append(md, name)
			}
		}
		sort.Strings(md)
		for _, name := range md {
			features = append(features, featureKey{measure.ImageEntity, name})
		}
	}
	for _, entity := range entities {
		names, err := e.store.FeatureNames(ctx, entity)
		if err != nil {
			return "", err
		}
		sort.Strings(names)
		for _, name := range names {
			features = append(features, featureKey{entity, name})
		}
	}

	columns := make([]string, len(features))
	for i, fk := range features {
		columns[i] = fk.entity + ":" + fk.feature
	}
	picked, aborted, err := e.pickColumns(fmt.Sprintf("Select columns for %s", fileName), columns)
	if err != nil {
		return "", err
	}
	if aborted {
		return "", nil
	}
	features = features[:0]
	for _, col := range picked {
		entity, feature, _ := strings.Cut(col, ":")
		features = append(features, featureKey{entity, feature})
	}

	out, err := e.createFile(fileName, p.Tags)
	if err != nil {
		return "", err
	}

	if len(entities) > 1 {
		header := make([]string, len(features))
		for i, fk := range features {
			header[i] = fk.entity
		}
		if err := out.w.Write(header); err != nil {
			_ = out.close()
			return "", fmt.Errorf("write %s: %w", out.path, err)
		}
	}
	header := make([]string, len(features))
	for i, fk := range features {
		header[i] = fk.feature
	}
	if err := out.w.Write(header); err != nil {
		_ = out.close()
		return "", fmt.Errorf("write %s: %w", out.path, err)
	}

	rows := 0
	for _, rec := range p.Indexes {
		if err := e.writeObjectRows(ctx, out, entities, features, rec, &rows); err != nil {
			_ = out.close()
			return "", err
		}
	}

	if err := out.close(); err != nil {
		return "", err
	}
	metrics.IncCounter("pipeline_rows_total", float64(rows), metrics.Labels{"kind": "object"})
	return out.path, nil
}

// writeObjectRows emits the rows for one image record of a merged unit.
func (e *Exporter) writeObjectRows(ctx context.Context, out *outFile, entities []string, features []featureKey, rec int, rows *int) error {
	// The row count is the largest declared object count across the unit's
	// entities. A missing count must not crash; it simply does not widen.
	objectCount := 0
	for _, entity := range entities {
		v, err := e.store.Value(ctx, measure.ImageEntity, measure.CountFeature(entity), rec)
		if err != nil {
			return err
		}
		if f, ok := asFloat(v); ok && int(f) > objectCount {
			objectCount = int(f)
		}
	}
	if objectCount == 0 {
		return nil
	}

	// Fetch each column's value once per image. Image-entity features are
	// broadcast down all object rows; object features index by position.
	kind := make([]int, len(features)) // 0 vector, 1 imageNumber, 2 objectNumber, 3 broadcast
	vals := make([]any, len(features))
	cells := make([]string, len(features))

	for i, fk := range features {
		switch {
		case fk.feature == measure.ImageNumber && fk.entity == measure.ImageEntity && e.opt.AddIndexes:
			kind[i] = 1
		case fk.feature == measure.ObjectNumber && e.opt.AddIndexes && fk.entity == entities[0]:
			kind[i] = 2
		case fk.entity == measure.ImageEntity:
			kind[i] = 3
			v, err := e.store.Value(ctx, measure.ImageEntity, fk.feature, rec)
			if err != nil {
				return err
			}
			cells[i] = scalarCell(v)
		default:
			v, err := e.store.Value(ctx, fk.entity, fk.feature, rec)
			if err != nil {
				return err
			}
			vals[i] = v
		}
	}

	row := make([]string, len(features))
	for j := 0; j < objectCount; j++ {
		for i := range features {
			switch kind[i] {
			case 1:
				row[i] = strconv.Itoa(rec + 1)
			case 2:
				row[i] = strconv.Itoa(j + 1)
			case 3:
				row[i] = cells[i]
			default:
				row[i] = vectorCell(vals[i], j)
			}
		}
		if err := out.w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", out.path, err)
		}
		*rows++
	}
	return nil
}

// --- cell rendering ---
//
// Missing values render as the empty cell, consistently across a file, and
// are never coerced to zero.

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// scalarCell renders a value as a single cell, taking the first element of
// a sequence. Nil renders as the missing cell.
func scalarCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatFloat(t)
	case int:
		return strconv.Itoa(t)
	case []float64:
		if len(t) > 0 {
			return formatFloat(t[0])
		}
		return ""
	case []string:
		if len(t) > 0 {
			return t[0]
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// sequenceCells renders a value as one cell per element.
func sequenceCells(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{""}
	case []float64:
		cells := make([]string, len(t))
		for i, f := range t {
			cells[i] = formatFloat(f)
		}
		return cells
	case []string:
		return append([]string(nil), t...)
	default:
		return []string{scalarCell(v)}
	}
}

// vectorCell renders element j of a per-object value. Positions beyond the
// vector's own length are missing, not zero.
func vectorCell(v any, j int) string {
	switch t := v.(type) {
	case []float64:
		if j < len(t) {
			return formatFloat(t[j])
		}
	case []string:
		if j < len(t) {
			return t[j]
		}
	case nil:
	default:
		// An entity-level scalar slipped into an object column: broadcast.
		return scalarCell(v)
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case []float64:
		if len(t) > 0 {
			return t[0], true
		}
	}
	return 0, false
}
