package config

import (
	"fmt"
	"regexp"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path locates the offending setting using
// a dotted form like "export.groups[2].file_name".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// ValidatePipeline checks a pipeline config for configuration-time errors.
//
// Everything reported here blocks execution when Severity is error: invalid
// regular expressions, malformed filter trees, bad delimiters, inconsistent
// group merge flags. Per-record conditions (a regex that matches nothing, a
// missing measurement) are runtime non-errors and are not checked here.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if p.Metadata != nil {
		issues = append(issues, validateMetadata(*p.Metadata)...)
	}
	if p.Threshold != nil {
		issues = append(issues, validateThreshold(*p.Threshold)...)
	}
	if p.Export != nil {
		issues = append(issues, validateExport(*p.Export)...)
	}
	return issues
}

// HasErrors reports whether any issue is severity error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func errorf(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)}
}

func warnf(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, a...)}
}

func validateMetadata(c MetadataConfig) []Issue {
	var issues []Issue

	if len(c.Rules) == 0 {
		issues = append(issues, warnf("metadata.rules", "no extraction rules configured"))
	}

	for i, r := range c.Rules {
		path := fmt.Sprintf("metadata.rules[%d]", i)

		switch r.Method {
		case MethodManual:
			switch r.Source {
			case SourceFileName, SourceFolderName:
			default:
				issues = append(issues, errorf(path+".source", "unknown source %q", r.Source))
			}
			if r.Pattern == "" {
				issues = append(issues, errorf(path+".pattern", "manual rule requires a pattern"))
			} else if _, err := regexp.Compile(r.Pattern); err != nil {
				issues = append(issues, errorf(path+".pattern", "invalid regular expression: %v", err))
			}
		case MethodAutomatic, MethodImported:
			issues = append(issues, warnf(path+".method",
				"method %q is not yet supported and contributes no tags", r.Method))
		default:
			issues = append(issues, errorf(path+".method", "unknown method %q", r.Method))
		}

		if r.Filter != nil {
			issues = append(issues, validateFilter(*r.Filter, path+".filter")...)
		}
	}
	return issues
}

var validLeafTests = map[string]map[string]bool{
	"file": {
		"contains": true, "does_not_contain": true, "starts_with": true,
		"ends_with": true, "eq": true, "regexp": true,
	},
	"directory": {
		"contains": true, "does_not_contain": true, "starts_with": true,
		"ends_with": true, "eq": true, "regexp": true,
	},
	"extension": {
		"is_tif": true, "is_jpg": true, "is_png": true, "is_image": true,
	},
	"image": {
		"is_color": true, "is_monochrome": true, "is_stack": true,
	},
}

func validateFilter(f FilterConfig, path string) []Issue {
	var issues []Issue

	switch f.Op {
	case "and", "or":
		if len(f.Args) == 0 {
			issues = append(issues, errorf(path, "%s node requires at least one argument", f.Op))
		}
		for i, arg := range f.Args {
			issues = append(issues, validateFilter(arg, fmt.Sprintf("%s.args[%d]", path, i))...)
		}
	case "not":
		if len(f.Args) != 1 {
			issues = append(issues, errorf(path, "not node requires exactly one argument"))
		}
		for i, arg := range f.Args {
			issues = append(issues, validateFilter(arg, fmt.Sprintf("%s.args[%d]", path, i))...)
		}
	case "file", "directory", "extension", "image":
		tests := validLeafTests[f.Op]
		if !tests[f.Test] {
			issues = append(issues, errorf(path+".test", "unknown test %q for subject %q", f.Test, f.Op))
		}
		if f.Test == "regexp" {
			if _, err := regexp.Compile(f.Value); err != nil {
				issues = append(issues, errorf(path+".value", "invalid regular expression: %v", err))
			}
		}
	default:
		issues = append(issues, errorf(path+".op", "unknown filter op %q", f.Op))
	}
	return issues
}

func validateThreshold(c ThresholdConfig) []Issue {
	var issues []Issue

	switch c.Output {
	case "grayscale":
		if !c.Low && !c.High {
			issues = append(issues, warnf("threshold",
				"grayscale output with neither low nor high set leaves the image unchanged"))
		}
		if c.Low && (c.LowThreshold < 0 || c.LowThreshold > 1) {
			issues = append(issues, errorf("threshold.low_threshold", "must be in [0,1]"))
		}
		if c.High && (c.HighThreshold < 0 || c.HighThreshold > 1) {
			issues = append(issues, errorf("threshold.high_threshold", "must be in [0,1]"))
		}
		if c.Dilation < 0 {
			issues = append(issues, errorf("threshold.dilation", "must be >= 0"))
		}
	case "binary":
		switch c.Method {
		case "manual":
			if c.ManualThreshold < 0 || c.ManualThreshold > 1 {
				issues = append(issues, errorf("threshold.manual_threshold", "must be in [0,1]"))
			}
		case "otsu", "background":
			if c.RangeMin > c.RangeMax {
				issues = append(issues, errorf("threshold.range_min", "range_min must be <= range_max"))
			}
			if c.CorrectionFactor < 0 {
				issues = append(issues, errorf("threshold.correction_factor", "must be >= 0"))
			}
		default:
			issues = append(issues, errorf("threshold.method", "unknown method %q", c.Method))
		}
	default:
		issues = append(issues, errorf("threshold.output", "unknown output kind %q", c.Output))
	}
	return issues
}

func validateExport(c ExportConfig) []Issue {
	var issues []Issue

	if _, err := c.DelimiterRune(); err != nil {
		issues = append(issues, errorf("export.delimiter", "%v", err))
	}

	switch c.Encoding {
	case EncodingUTF8, EncodingUTF8BOM, EncodingWindows1252:
	default:
		issues = append(issues, errorf("export.encoding", "unknown encoding %q", c.Encoding))
	}

	if len(c.Groups) == 0 {
		issues = append(issues, errorf("export.groups", "at least one export group is required"))
	}

	for i, g := range c.Groups {
		path := fmt.Sprintf("export.groups[%d]", i)
		if g.Entity == "" {
			issues = append(issues, errorf(path+".entity", "entity is required"))
		}
		if g.MergeWithPrevious {
			if i == 0 {
				issues = append(issues, errorf(path, "first group cannot merge with a previous group"))
			} else {
				prev := c.Groups[i-1]
				if isSynthetic(g.Entity) || isSynthetic(prev.Entity) {
					issues = append(issues, errorf(path,
						"merge_with_previous is only valid between object entities"))
				}
			}
		} else if g.FileName == "" {
			issues = append(issues, errorf(path+".file_name", "file name is required"))
		}
	}

	if c.Store.Kind == "" {
		issues = append(issues, errorf("export.store.kind", "store kind is required"))
	}
	return issues
}

// isSynthetic reports whether entity is one of the two reserved names that
// never participate in merged object files. The canonical constants live in
// internal/measure; the strings are duplicated here so config stays a leaf
// package.
func isSynthetic(entity string) bool {
	return entity == "Image" || entity == "Experiment"
}

// DelimiterRune resolves the configured delimiter to a single rune.
// "tab" and "comma" are named choices; anything else must be exactly one
// character.
func (c ExportConfig) DelimiterRune() (rune, error) {
	switch c.Delimiter {
	case DelimiterTab:
		return '\t', nil
	case DelimiterComma, "":
		return ',', nil
	}
	r := []rune(c.Delimiter)
	if len(r) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	return r[0], nil
}
