// Package export writes per-image, per-object and experiment measurement
// tables to delimited text files, with optional metadata-driven file
// splitting and merging of one-to-one object tables.
package export

import (
	"cellpipe/internal/config"
	"cellpipe/internal/measure"
)

// Group is one configured data source: an entity to export and the file
// that receives it.
type Group struct {
	Entity            string
	MergeWithPrevious bool
	FileName          string
}

// GroupsFromConfig converts the serialized group list.
func GroupsFromConfig(cs []config.GroupConfig) []Group {
	groups := make([]Group, 0, len(cs))
	for _, c := range cs {
		groups = append(groups, Group{
			Entity:            c.Entity,
			MergeWithPrevious: c.MergeWithPrevious,
			FileName:          c.FileName,
		})
	}
	return groups
}

// Unit is one output unit: the entities whose columns share a file, and the
// target file name (taken from the first group of the run).
type Unit struct {
	Entities []string
	FileName string
}

// PartitionUnits walks the ordered group list and coalesces runs of
// consecutive object-entity groups whose followers declare
// merge-with-previous. A group that does not merge, or a synthetic
// Image/Experiment group, starts a new unit.
func PartitionUnits(groups []Group) []Unit {
	var units []Unit
	var entities []string
	var fileName string

	for i, g := range groups {
		if len(entities) == 0 {
			fileName = g.FileName
		}
		entities = append(entities, g.Entity)

		lastInFile := i == len(groups)-1 ||
			measure.IsSynthetic(g.Entity) ||
			measure.IsSynthetic(groups[i+1].Entity) ||
			!groups[i+1].MergeWithPrevious

		if lastInFile {
			units = append(units, Unit{Entities: entities, FileName: fileName})
			entities = nil
		}
	}
	return units
}
