// Package metadata extracts tag/value metadata from image path records by
// applying an ordered list of configured extraction rules.
package metadata

import "path/filepath"

// Record identifies one image plane: its path (or URL), the series index
// within the file, the index within the series, and the channel. Tags holds
// the metadata accumulated for the record so far; extraction reads Path and
// merges new tags on top of Tags.
type Record struct {
	Path    string
	Series  int
	Index   int
	Channel string
	Tags    map[string]string
}

// FileName returns the file-name component of the record's path.
func (r Record) FileName() string {
	return filepath.Base(r.Path)
}

// Directory returns the directory component of the record's path, without a
// trailing separator.
func (r Record) Directory() string {
	return filepath.Dir(r.Path)
}

// Extension returns the path extension including the dot, lower-cased by the
// caller if needed.
func (r Record) Extension() string {
	return filepath.Ext(r.Path)
}
