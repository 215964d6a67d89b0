// Package measure defines the measurement store contract shared by the
// exporter and the storage backends, plus helpers that operate uniformly
// over any Store.
package measure

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// The two synthetic entities. Every other entity name is a user-defined
// object class (e.g. "Nuclei").
const (
	ImageEntity      = "Image"
	ExperimentEntity = "Experiment"
)

// Well-known feature names.
const (
	ImageNumber  = "ImageNumber"
	ObjectNumber = "ObjectNumber"
)

// MetadataPrefix marks per-image features that carry metadata tag values.
const MetadataPrefix = "Metadata_"

// CountFeature returns the per-image feature holding the object count for an
// entity.
func CountFeature(entity string) string {
	return "Count_" + entity
}

// MetadataFeature returns the per-image feature holding a metadata tag value.
func MetadataFeature(tag string) string {
	return MetadataPrefix + tag
}

// IsSynthetic reports whether entity is one of the two reserved names.
func IsSynthetic(entity string) bool {
	return entity == ImageEntity || entity == ExperimentEntity
}

// Store answers measurement queries for one run.
//
// Values are returned as any and follow a small closed set of dynamic types:
// string and float64 scalars for image/experiment features, []float64 for
// per-object features, []string / []float64 for experiment value sequences.
// A nil value means the measurement is missing; missing is never zero.
type Store interface {
	// FeatureNames returns the feature names recorded for an entity, in a
	// stable order. An entity with no features yields an empty slice.
	FeatureNames(ctx context.Context, entity string) ([]string, error)

	// Value returns the value of one feature for one record, or nil when
	// the measurement is missing. The record index is ignored for the
	// Experiment entity.
	Value(ctx context.Context, entity, feature string, rec int) (any, error)

	// ObjectEntities returns the user-defined object entity names present
	// in the store.
	ObjectEntities(ctx context.Context) ([]string, error)

	// Aggregates computes the aggregate statistic columns (mean, median,
	// standard deviation per object feature) for one record.
	Aggregates(ctx context.Context, rec int) (map[string]float64, error)

	// RecordCount returns the number of image records in the run.
	RecordCount(ctx context.Context) (int, error)

	// Close releases backend resources. Call once at shutdown.
	Close()
}

// TagGroup is one partition of the record set sharing the same values for a
// set of metadata tags.
type TagGroup struct {
	Tags    map[string]string
	Indexes []int
}

// GroupByTags partitions all records by the values of the given metadata
// tags, read from the store's Metadata_<tag> image features. Records missing
// a value for any referenced tag are excluded from every group. With no tags
// it returns a single group covering every record, carrying no tag values.
//
// Groups are returned in order of first appearance, so output files are
// written in record order.
func GroupByTags(ctx context.Context, s Store, tags []string) ([]TagGroup, error) {
	n, err := s.RecordCount(ctx)
	if err != nil {
		return nil, err
	}

	if len(tags) == 0 {
		g := TagGroup{Tags: map[string]string{}, Indexes: make([]int, n)}
		for i := range g.Indexes {
			g.Indexes[i] = i
		}
		return []TagGroup{g}, nil
	}

	var order []string
	byKey := map[string]*TagGroup{}

	for rec := 0; rec < n; rec++ {
		values := make(map[string]string, len(tags))
		ok := true
		for _, tag := range tags {
			v, err := s.Value(ctx, ImageEntity, MetadataFeature(tag), rec)
			if err != nil {
				return nil, err
			}
			sv, isStr := scalarString(v)
			if !isStr {
				ok = false
				break
			}
			values[tag] = sv
		}
		if !ok {
			continue
		}

		key := groupKey(tags, values)
		g := byKey[key]
		if g == nil {
			g = &TagGroup{Tags: values}
			byKey[key] = g
			order = append(order, key)
		}
		g.Indexes = append(g.Indexes, rec)
	}

	out := make([]TagGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out, nil
}

func groupKey(tags []string, values map[string]string) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, values[t])
	}
	return strings.Join(parts, "\x00")
}

// scalarString renders a tag value as a string. Stores may surface
// numeric-looking tag values as float64; those format the shortest way that
// round-trips, and sequences contribute their first element.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case []string:
		if len(t) > 0 {
			return t[0], true
		}
	case []float64:
		if len(t) > 0 {
			return strconv.FormatFloat(t[0], 'g', -1, 64), true
		}
	}
	return "", false
}

// Aggregate statistic prefixes, matching the Mean_/Median_/StDev_ per-image
// column convention.
var aggregateNames = []string{"Mean", "Median", "StDev"}

// AggregateObjects computes the full aggregate-column set for one record
// from a store's object measurements: for every object entity and every
// per-object feature, a Mean_, Median_ and StDev_ column named
// <Agg>_<entity>_<feature>. Features with no objects for the record are
// omitted rather than reported as zero.
//
// Backends use this as their Aggregates implementation unless they can push
// the computation into SQL.
func AggregateObjects(ctx context.Context, s Store, rec int) (map[string]float64, error) {
	entities, err := s.ObjectEntities(ctx)
	if err != nil {
		return nil, err
	}

	out := map[string]float64{}
	for _, entity := range entities {
		features, err := s.FeatureNames(ctx, entity)
		if err != nil {
			return nil, err
		}
		for _, feature := range features {
			v, err := s.Value(ctx, entity, feature, rec)
			if err != nil {
				return nil, err
			}
			vec, ok := v.([]float64)
			if !ok || len(vec) == 0 {
				continue
			}

			sorted := append([]float64(nil), vec...)
			sort.Float64s(sorted)

			for _, agg := range aggregateNames {
				name := fmt.Sprintf("%s_%s_%s", agg, entity, feature)
				switch agg {
				case "Mean":
					out[name] = stat.Mean(vec, nil)
				case "Median":
					out[name] = stat.Quantile(0.5, stat.Empirical, sorted, nil)
				case "StDev":
					if len(vec) > 1 {
						out[name] = stat.StdDev(vec, nil)
					} else {
						out[name] = 0
					}
				}
			}
		}
	}
	return out, nil
}
