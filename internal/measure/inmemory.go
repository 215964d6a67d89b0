package measure

import (
	"context"
	"sort"
)

// InMemory is a Store backed by plain maps. It is the store used by tests
// and by pipelines that compute measurements in-process; the storage
// backends provide the same contract over a database.
type InMemory struct {
	experiment map[string]any
	image      []map[string]any
	objects    map[string][]map[string][]float64
}

// NewInMemory returns an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		experiment: map[string]any{},
		objects:    map[string][]map[string][]float64{},
	}
}

// SetExperiment records an experiment-wide feature value.
func (m *InMemory) SetExperiment(feature string, value any) {
	m.experiment[feature] = value
}

// SetImage records a per-image feature value for one record, growing the
// record list as needed.
func (m *InMemory) SetImage(rec int, feature string, value any) {
	for len(m.image) <= rec {
		m.image = append(m.image, map[string]any{})
	}
	m.image[rec][feature] = value
}

// SetObjects records a per-object feature vector for one record.
func (m *InMemory) SetObjects(entity string, rec int, feature string, values []float64) {
	perRec := m.objects[entity]
	for len(perRec) <= rec {
		perRec = append(perRec, map[string][]float64{})
	}
	perRec[rec][feature] = values
	m.objects[entity] = perRec

	// Keep the record list at least as long as the object data so
	// RecordCount covers records that only have object measurements.
	for len(m.image) <= rec {
		m.image = append(m.image, map[string]any{})
	}
}

func (m *InMemory) FeatureNames(_ context.Context, entity string) ([]string, error) {
	seen := map[string]bool{}
	switch entity {
	case ExperimentEntity:
		for f := range m.experiment {
			seen[f] = true
		}
	case ImageEntity:
		for _, rec := range m.image {
			for f := range rec {
				seen[f] = true
			}
		}
	default:
		for _, rec := range m.objects[entity] {
			for f := range rec {
				seen[f] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for f := range seen {
		names = append(names, f)
	}
	sort.Strings(names)
	return names, nil
}

func (m *InMemory) Value(_ context.Context, entity, feature string, rec int) (any, error) {
	switch entity {
	case ExperimentEntity:
		if v, ok := m.experiment[feature]; ok {
			return v, nil
		}
	case ImageEntity:
		if rec >= 0 && rec < len(m.image) {
			if v, ok := m.image[rec][feature]; ok {
				return v, nil
			}
		}
	default:
		perRec := m.objects[entity]
		if rec >= 0 && rec < len(perRec) {
			if v, ok := perRec[rec][feature]; ok {
				return v, nil
			}
		}
	}
	return nil, nil
}

func (m *InMemory) ObjectEntities(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.objects))
	for e := range m.objects {
		names = append(names, e)
	}
	sort.Strings(names)
	return names, nil
}

func (m *InMemory) Aggregates(ctx context.Context, rec int) (map[string]float64, error) {
	return AggregateObjects(ctx, m, rec)
}

func (m *InMemory) RecordCount(_ context.Context) (int, error) {
	return len(m.image), nil
}

func (m *InMemory) Close() {}

var _ Store = (*InMemory)(nil)
