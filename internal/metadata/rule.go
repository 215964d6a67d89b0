package metadata

import (
	"fmt"
	"regexp"

	"cellpipe/internal/config"
)

// Method is the closed set of extraction methods.
type Method int

const (
	// Manual extracts tags with a named-group regular expression.
	Manual Method = iota
	// Automatic is a recognized but not-yet-supported method. It always
	// contributes no tags; its intended behavior is undefined upstream and
	// deliberately not guessed here.
	Automatic
	// Imported is a recognized but not-yet-supported method, like Automatic.
	Imported
)

// Source selects the path component a manual rule matches against.
type Source int

const (
	FromFileName Source = iota
	FromFolderName
)

// Rule is one compiled extraction rule. Immutable once compiled; rules are
// applied in list order and later rules overwrite earlier tags.
type Rule struct {
	Method Method
	Source Source

	re     *regexp.Regexp
	filter *Expr
}

// CompileRule builds a Rule from its config form. A malformed pattern or
// filter is a configuration error, surfaced here rather than per record.
func CompileRule(c config.RuleConfig) (Rule, error) {
	var r Rule

	switch c.Method {
	case config.MethodManual:
		r.Method = Manual
	case config.MethodAutomatic:
		r.Method = Automatic
	case config.MethodImported:
		r.Method = Imported
	default:
		return r, fmt.Errorf("rule: unknown method %q", c.Method)
	}

	switch c.Source {
	case config.SourceFileName, "":
		r.Source = FromFileName
	case config.SourceFolderName:
		r.Source = FromFolderName
	default:
		return r, fmt.Errorf("rule: unknown source %q", c.Source)
	}

	if r.Method == Manual {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return r, fmt.Errorf("rule: invalid pattern %q: %w", c.Pattern, err)
		}
		r.re = re
	}

	if c.Filter != nil {
		f, err := CompileFilter(*c.Filter)
		if err != nil {
			return r, err
		}
		r.filter = &f
	}
	return r, nil
}

// CompileRules compiles all rules of a metadata config, preserving order.
func CompileRules(c config.MetadataConfig) ([]Rule, error) {
	rules := make([]Rule, 0, len(c.Rules))
	for i, rc := range c.Rules {
		r, err := CompileRule(rc)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Extract applies the rules to one record and returns the merged tag map:
// the record's existing tags plus each rule's contribution, applied in
// order, later rules overwriting earlier keys.
//
// A rule whose filter evaluates to explicit False is skipped; Unknown is a
// pass. A manual rule whose pattern does not match the source text simply
// contributes nothing — a per-record miss is not an error.
func Extract(rec Record, rules []Rule) map[string]string {
	tags := make(map[string]string, len(rec.Tags))
	for k, v := range rec.Tags {
		tags[k] = v
	}

	for _, r := range rules {
		if r.filter != nil && r.filter.Eval(rec) == False {
			continue
		}
		for k, v := range r.apply(rec) {
			tags[k] = v
		}
	}
	return tags
}

// apply returns the rule's tag contribution for one record.
func (r Rule) apply(rec Record) map[string]string {
	if r.Method != Manual {
		// Automatic and imported extraction are reserved; no contribution.
		return nil
	}

	text := rec.FileName()
	if r.Source == FromFolderName {
		text = rec.Directory()
	}

	// Search semantics: the pattern may match anywhere in the text.
	m := r.re.FindStringSubmatchIndex(text)
	if m == nil {
		return nil
	}

	out := make(map[string]string)
	for i, name := range r.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		// An optional group that did not participate in the match
		// contributes no key, as opposed to an empty-string value.
		if m[2*i] < 0 {
			continue
		}
		out[name] = text[m[2*i]:m[2*i+1]]
	}
	return out
}
