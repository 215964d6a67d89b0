package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"cellpipe/internal/config"
	"cellpipe/internal/measure"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "run.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.SetExperiment(ctx, "Pipeline", "exp.cp"); err != nil {
		t.Fatalf("SetExperiment: %v", err)
	}
	if err := s.SetImage(ctx, 0, "FileName", "a.tif"); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := s.SetImage(ctx, 0, "Count_Nuclei", "2"); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := s.SetObjects(ctx, "Nuclei", 0, "Area", []float64{10, 20}); err != nil {
		t.Fatalf("SetObjects: %v", err)
	}

	v, err := s.Value(ctx, measure.ExperimentEntity, "Pipeline", 0)
	if err != nil || v != "exp.cp" {
		t.Fatalf("experiment Value = %v, %v", v, err)
	}

	// Numeric-looking text surfaces as float64, free text as string.
	v, err = s.Value(ctx, measure.ImageEntity, "Count_Nuclei", 0)
	if err != nil || v != 2.0 {
		t.Fatalf("Count_Nuclei = %v (%T), %v", v, v, err)
	}
	v, err = s.Value(ctx, measure.ImageEntity, "FileName", 0)
	if err != nil || v != "a.tif" {
		t.Fatalf("FileName = %v, %v", v, err)
	}

	v, err = s.Value(ctx, "Nuclei", "Area", 0)
	if err != nil {
		t.Fatalf("object Value: %v", err)
	}
	if !reflect.DeepEqual(v, []float64{10, 20}) {
		t.Fatalf("object Value = %v", v)
	}

	names, err := s.FeatureNames(ctx, measure.ImageEntity)
	if err != nil {
		t.Fatalf("FeatureNames: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"Count_Nuclei", "FileName"}) {
		t.Fatalf("FeatureNames = %v", names)
	}

	entities, err := s.ObjectEntities(ctx)
	if err != nil || !reflect.DeepEqual(entities, []string{"Nuclei"}) {
		t.Fatalf("ObjectEntities = %v, %v", entities, err)
	}

	n, err := s.RecordCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RecordCount = %d, %v", n, err)
	}
}

// Missing measurements are nil, never a zero value.
func TestStore_MissingValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	v, err := s.Value(ctx, measure.ImageEntity, "Nope", 0)
	if err != nil || v != nil {
		t.Fatalf("missing image Value = %v, %v", v, err)
	}
	v, err = s.Value(ctx, "Nuclei", "Area", 0)
	if err != nil || v != nil {
		t.Fatalf("missing object Value = %v, %v", v, err)
	}

	n, err := s.RecordCount(ctx)
	if err != nil || n != 0 {
		t.Fatalf("empty RecordCount = %d, %v", n, err)
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.SetImage(ctx, 0, "F", "1"); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := s.SetImage(ctx, 0, "F", "2"); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if err := s.SetObjects(ctx, "Nuclei", 0, "Area", []float64{1, 2, 3}); err != nil {
		t.Fatalf("SetObjects: %v", err)
	}
	if err := s.SetObjects(ctx, "Nuclei", 0, "Area", []float64{4}); err != nil {
		t.Fatalf("SetObjects: %v", err)
	}

	v, err := s.Value(ctx, measure.ImageEntity, "F", 0)
	if err != nil || v != 2.0 {
		t.Fatalf("Value = %v, %v", v, err)
	}
	ov, err := s.Value(ctx, "Nuclei", "Area", 0)
	if err != nil || !reflect.DeepEqual(ov, []float64{4}) {
		t.Fatalf("object Value = %v, %v", ov, err)
	}
}

// Metadata tag values stay strings even when numeric-looking, so records
// with numeric tags still partition and zero-padded tags keep their text.
func TestStore_NumericMetadataTags(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	for rec, site := range []string{"1", "2"} {
		if err := s.SetImage(ctx, rec, measure.MetadataFeature("Site"), site); err != nil {
			t.Fatalf("SetImage: %v", err)
		}
		if err := s.SetImage(ctx, rec, measure.MetadataFeature("Plate"), "0002"); err != nil {
			t.Fatalf("SetImage: %v", err)
		}
	}

	v, err := s.Value(ctx, measure.ImageEntity, measure.MetadataFeature("Plate"), 0)
	if err != nil || v != "0002" {
		t.Fatalf("Metadata_Plate = %v (%T), %v; want the exact text", v, v, err)
	}

	groups, err := measure.GroupByTags(ctx, s, []string{"Plate", "Site"})
	if err != nil {
		t.Fatalf("GroupByTags: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %v", len(groups), groups)
	}
	if groups[0].Tags["Plate"] != "0002" || groups[0].Tags["Site"] != "1" {
		t.Fatalf("group 0 tags = %v", groups[0].Tags)
	}
	if !reflect.DeepEqual(groups[0].Indexes, []int{0}) || !reflect.DeepEqual(groups[1].Indexes, []int{1}) {
		t.Fatalf("group indexes = %v, %v", groups[0].Indexes, groups[1].Indexes)
	}
}

// The factory path honors the "create" option and satisfies measure.Store.
func TestNew_CreateOption(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := New(ctx, config.StoreConfig{
		DSN:     filepath.Join(t.TempDir(), "run.db"),
		Options: config.Options{"create": true},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	agg, err := s.Aggregates(ctx, 0)
	if err != nil {
		t.Fatalf("Aggregates: %v", err)
	}
	if len(agg) != 0 {
		t.Fatalf("Aggregates of empty store = %v", agg)
	}
}
