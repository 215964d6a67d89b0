package metadata

import (
	"testing"

	"cellpipe/internal/config"
)

func mustFilter(t *testing.T, c config.FilterConfig) Expr {
	t.Helper()
	e, err := CompileFilter(c)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	return e
}

func TestFilter_LeafTests(t *testing.T) {
	t.Parallel()

	rec := Record{Path: "/data/plate1/cells_B08.tif"}

	cases := []struct {
		name string
		cfg  config.FilterConfig
		want Verdict
	}{
		{"file contains", config.FilterConfig{Op: "file", Test: "contains", Value: "B08"}, True},
		{"file does not contain", config.FilterConfig{Op: "file", Test: "does_not_contain", Value: "B08"}, False},
		{"file starts with", config.FilterConfig{Op: "file", Test: "starts_with", Value: "cells"}, True},
		{"file ends with", config.FilterConfig{Op: "file", Test: "ends_with", Value: ".png"}, False},
		{"file eq", config.FilterConfig{Op: "file", Test: "eq", Value: "cells_B08.tif"}, True},
		{"file regexp", config.FilterConfig{Op: "file", Test: "regexp", Value: `_B[0-9]{2}\.`}, True},
		{"directory contains", config.FilterConfig{Op: "directory", Test: "contains", Value: "plate1"}, True},
		{"extension is tif", config.FilterConfig{Op: "extension", Test: "is_tif"}, True},
		{"extension is png", config.FilterConfig{Op: "extension", Test: "is_png"}, False},
		{"extension is image", config.FilterConfig{Op: "extension", Test: "is_image"}, True},
		{"image property unknown", config.FilterConfig{Op: "image", Test: "is_color"}, Unknown},
	}

	for _, tc := range cases {
		e := mustFilter(t, tc.cfg)
		if got := e.Eval(rec); got != tc.want {
			t.Fatalf("%s: Eval = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// Three-valued logic: Unknown does not decide an And or Or, and Not of
// Unknown stays Unknown.
func TestFilter_ThreeValuedLogic(t *testing.T) {
	t.Parallel()

	rec := Record{Path: "/data/cells.tif"}

	isTif := config.FilterConfig{Op: "extension", Test: "is_tif"}
	isPng := config.FilterConfig{Op: "extension", Test: "is_png"}
	unknown := config.FilterConfig{Op: "image", Test: "is_color"}

	cases := []struct {
		name string
		cfg  config.FilterConfig
		want Verdict
	}{
		{"and true", config.FilterConfig{Op: "and", Args: []config.FilterConfig{isTif, isTif}}, True},
		{"and short-circuits false", config.FilterConfig{Op: "and", Args: []config.FilterConfig{isPng, unknown}}, False},
		{"and unknown", config.FilterConfig{Op: "and", Args: []config.FilterConfig{isTif, unknown}}, Unknown},
		{"or true beats unknown", config.FilterConfig{Op: "or", Args: []config.FilterConfig{unknown, isTif}}, True},
		{"or unknown", config.FilterConfig{Op: "or", Args: []config.FilterConfig{isPng, unknown}}, Unknown},
		{"not true", config.FilterConfig{Op: "not", Args: []config.FilterConfig{isTif}}, False},
		{"not false", config.FilterConfig{Op: "not", Args: []config.FilterConfig{isPng}}, True},
		{"not unknown", config.FilterConfig{Op: "not", Args: []config.FilterConfig{unknown}}, Unknown},
	}

	for _, tc := range cases {
		e := mustFilter(t, tc.cfg)
		if got := e.Eval(rec); got != tc.want {
			t.Fatalf("%s: Eval = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCompileFilter_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  config.FilterConfig
	}{
		{"unknown op", config.FilterConfig{Op: "maybe"}},
		{"unknown test", config.FilterConfig{Op: "file", Test: "sounds_like"}},
		{"not arity", config.FilterConfig{Op: "not", Args: []config.FilterConfig{
			{Op: "extension", Test: "is_tif"},
			{Op: "extension", Test: "is_png"},
		}}},
		{"empty and", config.FilterConfig{Op: "and"}},
		{"bad regexp", config.FilterConfig{Op: "file", Test: "regexp", Value: "["}},
	}

	for _, tc := range cases {
		if _, err := CompileFilter(tc.cfg); err == nil {
			t.Fatalf("%s: expected compile error", tc.name)
		}
	}
}
