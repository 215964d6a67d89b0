// Package config defines the JSON pipeline configuration and its validation.
//
// The config deliberately holds plain serializable values only (strings,
// bools, numbers). Compiled forms — regular expressions, filter expression
// trees, resolved delimiters — are built by the consuming packages from
// these structs, so the persistence shape stays decoupled from runtime
// representations.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Extraction method names accepted in RuleConfig.Method.
const (
	MethodManual    = "manual"
	MethodAutomatic = "automatic"
	MethodImported  = "imported"
)

// Extraction source names accepted in RuleConfig.Source.
const (
	SourceFileName   = "file_name"
	SourceFolderName = "folder_name"
)

// Delimiter choice names accepted in ExportConfig.Delimiter. Anything else
// must be a single custom character.
const (
	DelimiterTab   = "tab"
	DelimiterComma = "comma"
)

// Output encoding names accepted in ExportConfig.Encoding.
const (
	EncodingUTF8        = ""
	EncodingUTF8BOM     = "utf8_bom"
	EncodingWindows1252 = "windows_1252"
)

// Pipeline is the top-level configuration for one run. Module sections are
// optional; a binary uses the section it needs and ignores the rest.
type Pipeline struct {
	Job       string           `json:"job"`
	Metadata  *MetadataConfig  `json:"metadata,omitempty"`
	Threshold *ThresholdConfig `json:"threshold,omitempty"`
	Export    *ExportConfig    `json:"export,omitempty"`
}

// MetadataConfig configures the metadata extraction module.
type MetadataConfig struct {
	Rules []RuleConfig `json:"rules"`
}

// RuleConfig is one extraction rule. Rules are applied in list order; later
// rules overwrite same-named tags from earlier ones.
type RuleConfig struct {
	// Method: "manual" | "automatic" | "imported".
	// Automatic and imported are recognized but contribute no tags; they are
	// reserved variants, not silent no-ops at validation time.
	Method string `json:"method"`

	// Source: "file_name" | "folder_name". Only meaningful for manual rules.
	Source string `json:"source"`

	// Pattern is a regular expression with named capture groups, e.g.
	// ^(?P<Plate>.*)_(?P<Well>[A-P][0-9]{2})_s(?P<Site>[0-9]).
	// It is applied as a search, not an anchored match.
	Pattern string `json:"pattern"`

	// Filter restricts which records the rule applies to. Nil means all.
	Filter *FilterConfig `json:"filter,omitempty"`
}

// FilterConfig is a serialized predicate expression tree.
//
// Branch nodes use Op "and" | "or" | "not" with Args.
// Leaf nodes use Op "file" | "directory" | "extension" | "image" with Test
// and (for the text tests) Value.
type FilterConfig struct {
	Op   string         `json:"op"`
	Args []FilterConfig `json:"args,omitempty"`

	// Test names for leaves: "contains", "does_not_contain", "starts_with",
	// "ends_with", "eq", "regexp" for file/directory subjects;
	// "is_tif", "is_jpg", "is_png", "is_image" for the extension subject;
	// "is_color", "is_monochrome", "is_stack" for the image subject.
	Test  string `json:"test,omitempty"`
	Value string `json:"value,omitempty"`
}

// ThresholdConfig configures the apply-threshold module.
type ThresholdConfig struct {
	// Output: "grayscale" | "binary".
	Output string `json:"output"`

	// Grayscale options.
	Low           bool    `json:"low"`
	LowThreshold  float64 `json:"low_threshold"`
	Shift         bool    `json:"shift"`
	High          bool    `json:"high"`
	HighThreshold float64 `json:"high_threshold"`
	Dilation      float64 `json:"dilation"`

	// Binary options. Method: "manual" | "otsu" | "background".
	Method           string  `json:"method"`
	ManualThreshold  float64 `json:"manual_threshold"`
	RangeMin         float64 `json:"range_min"`
	RangeMax         float64 `json:"range_max"`
	CorrectionFactor float64 `json:"correction_factor"`

	// Otsu options.
	ThreeClass       bool `json:"three_class"`
	Entropy          bool `json:"entropy"`
	MiddleForeground bool `json:"middle_foreground"`
}

// ExportConfig configures the measurement export module.
type ExportConfig struct {
	// Delimiter: "tab", "comma", or a single custom character.
	Delimiter string `json:"delimiter"`

	PrependOutputFileName bool `json:"prepend_output_file_name"`
	AddMetadata           bool `json:"add_metadata"`
	AddIndexes            bool `json:"add_indexes"`
	ExcelLimits           bool `json:"excel_limits"`
	PickColumns           bool `json:"pick_columns"`

	// Encoding: "" (UTF-8), "utf8_bom", or "windows_1252".
	Encoding string `json:"encoding,omitempty"`

	// OutputDir is the default output directory that a leading "." in a
	// group file name resolves to.
	OutputDir string `json:"output_dir"`

	// OutputFileName is the run's own output file; its base name prefixes
	// data file names when PrependOutputFileName is set.
	OutputFileName string `json:"output_file_name,omitempty"`

	Groups []GroupConfig `json:"groups"`

	Store StoreConfig `json:"store"`
}

// GroupConfig is one export data source: the entity to export and the file
// that receives it. Entity is "Image", "Experiment", or a user-defined
// object name.
type GroupConfig struct {
	Entity string `json:"entity"`

	// MergeWithPrevious joins this group's columns onto the previous
	// group's file instead of starting a new one. Only valid when both
	// this and the previous entity are object entities.
	MergeWithPrevious bool `json:"merge_with_previous"`

	// FileName may embed \g<tag> metadata placeholders. Ignored (may be
	// empty) when MergeWithPrevious is set.
	FileName string `json:"file_name"`
}

// StoreConfig selects the measurement store backend.
type StoreConfig struct {
	// Kind: "sqlite" | "postgres" | "mssql".
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`

	// Options are backend-specific knobs (e.g. "schema" for postgres).
	Options Options `json:"options,omitempty"`
}

// Load reads and decodes a pipeline config file.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return p, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}
