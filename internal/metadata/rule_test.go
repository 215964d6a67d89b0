package metadata

import (
	"reflect"
	"testing"

	"cellpipe/internal/config"
)

func mustRule(t *testing.T, c config.RuleConfig) Rule {
	t.Helper()
	r, err := CompileRule(c)
	if err != nil {
		t.Fatalf("CompileRule: %v", err)
	}
	return r
}

func TestExtract_NamedGroupsFromFileName(t *testing.T) {
	t.Parallel()

	r := mustRule(t, config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFileName,
		Pattern: `^(?P<Plate>.*)_(?P<Well>[A-P][0-9]{2})_s(?P<Site>[0-9])`,
	})

	got := Extract(Record{Path: "/images/P-12345_B08_s1_w2.tif"}, []Rule{r})
	want := map[string]string{"Plate": "P-12345", "Well": "B08", "Site": "1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
}

func TestExtract_NoMatchYieldsNoKeys(t *testing.T) {
	t.Parallel()

	r := mustRule(t, config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFileName,
		Pattern: `^(?P<Well>[A-P][0-9]{2})_`,
	})

	got := Extract(Record{Path: "/images/nomatch.tif"}, []Rule{r})
	if len(got) != 0 {
		t.Fatalf("expected no tags for non-matching pattern, got %v", got)
	}
}

// A pattern may match anywhere in the text, not only at the start.
func TestExtract_SearchNotAnchoredMatch(t *testing.T) {
	t.Parallel()

	r := mustRule(t, config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFileName,
		Pattern: `_w(?P<Wavelength>[0-9])`,
	})

	got := Extract(Record{Path: "/images/P1_B08_s1_w2.tif"}, []Rule{r})
	if got["Wavelength"] != "2" {
		t.Fatalf("Wavelength = %q, want %q", got["Wavelength"], "2")
	}
}

// An optional group that did not participate in a match contributes no key,
// not an empty-string value.
func TestExtract_UnmatchedOptionalGroupContributesNoKey(t *testing.T) {
	t.Parallel()

	r := mustRule(t, config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFileName,
		Pattern: `^(?P<Plate>[^_]+)(?:_(?P<Well>[A-P][0-9]{2}))?`,
	})

	got := Extract(Record{Path: "/images/plateonly.tif"}, []Rule{r})
	if _, ok := got["Well"]; ok {
		t.Fatalf("expected no Well key for unmatched optional group, got %q", got["Well"])
	}
	if got["Plate"] != "plateonly.tif" {
		t.Fatalf("Plate = %q", got["Plate"])
	}
}

func TestExtract_FolderNameSource(t *testing.T) {
	t.Parallel()

	r := mustRule(t, config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFolderName,
		Pattern: `(?P<Date>[0-9]{4}-[0-9]{2}-[0-9]{2})$`,
	})

	got := Extract(Record{Path: "/data/2024-03-01/img.tif"}, []Rule{r})
	if got["Date"] != "2024-03-01" {
		t.Fatalf("Date = %q, want %q", got["Date"], "2024-03-01")
	}
}

// Rules apply in order; a later rule's value wins for a shared key.
func TestExtract_LaterRuleOverwritesEarlierKey(t *testing.T) {
	t.Parallel()

	first := mustRule(t, config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFileName,
		Pattern: `^(?P<Plate>[^_]+)`,
	})
	second := mustRule(t, config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFileName,
		Pattern: `_(?P<Plate>[A-P][0-9]{2})_`,
	})

	got := Extract(Record{Path: "/images/P1_B08_s1.tif"}, []Rule{first, second})
	if got["Plate"] != "B08" {
		t.Fatalf("Plate = %q, want the later rule's value %q", got["Plate"], "B08")
	}
}

// A filter that evaluates to explicit False skips the rule; a filter that
// cannot decide (Unknown) behaves as if no filter were set.
func TestExtract_FilterFalseSkipsUnknownPasses(t *testing.T) {
	t.Parallel()

	pattern := `^(?P<Name>[a-z]+)`

	skipped := mustRule(t, config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFileName,
		Pattern: pattern,
		Filter:  &config.FilterConfig{Op: "extension", Test: "is_png"},
	})
	unknown := mustRule(t, config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFileName,
		Pattern: pattern,
		Filter:  &config.FilterConfig{Op: "image", Test: "is_color"},
	})

	rec := Record{Path: "/images/cells.tif"}

	if got := Extract(rec, []Rule{skipped}); len(got) != 0 {
		t.Fatalf("expected False filter to skip the rule, got %v", got)
	}
	if got := Extract(rec, []Rule{unknown}); got["Name"] != "cells" {
		t.Fatalf("expected Unknown filter to pass, got %v", got)
	}
}

// Automatic and imported methods are recognized but contribute no tags.
func TestExtract_ReservedMethodsContributeNothing(t *testing.T) {
	t.Parallel()

	auto := mustRule(t, config.RuleConfig{Method: config.MethodAutomatic})
	imp := mustRule(t, config.RuleConfig{Method: config.MethodImported})

	got := Extract(Record{Path: "/images/P1_B08_s1.tif"}, []Rule{auto, imp})
	if len(got) != 0 {
		t.Fatalf("expected no tags from reserved methods, got %v", got)
	}
}

func TestExtract_KeepsExistingRecordTags(t *testing.T) {
	t.Parallel()

	rec := Record{Path: "/images/a.tif", Tags: map[string]string{"Run": "7"}}
	got := Extract(rec, nil)
	if got["Run"] != "7" {
		t.Fatalf("expected existing tags preserved, got %v", got)
	}
	// The returned map is a copy; the record's own tags stay untouched.
	got["Run"] = "8"
	if rec.Tags["Run"] != "7" {
		t.Fatalf("Extract mutated the record's tag map")
	}
}

func TestCompileRule_InvalidPatternIsConfigError(t *testing.T) {
	t.Parallel()

	_, err := CompileRule(config.RuleConfig{
		Method:  config.MethodManual,
		Source:  config.SourceFileName,
		Pattern: `(?P<Broken>[`,
	})
	if err == nil {
		t.Fatalf("expected error for malformed pattern")
	}
}

func TestCompileRule_UnknownMethod(t *testing.T) {
	t.Parallel()

	_, err := CompileRule(config.RuleConfig{Method: "guesswork"})
	if err == nil {
		t.Fatalf("expected error for unknown method")
	}
}
