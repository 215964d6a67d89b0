package export

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestTagTokens(t *testing.T) {
	t.Parallel()

	got := TagTokens(`plate\g<Plate>_well\g<Well>_\g<Plate>.csv`)
	want := []string{"Plate", "Well"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TagTokens = %v, want %v", got, want)
	}

	if got := TagTokens("plain.csv"); got != nil {
		t.Fatalf("TagTokens(plain) = %v, want nil", got)
	}
}

func TestSubstituteTags(t *testing.T) {
	t.Parallel()

	got := SubstituteTags(`plate\g<Plate>_\g<Well>.csv`, map[string]string{
		"Plate": "A", "Well": "B08",
	})
	if got != "plateA_B08.csv" {
		t.Fatalf("SubstituteTags = %q", got)
	}

	// Placeholders with no value stay untouched.
	got = SubstituteTags(`\g<Missing>.csv`, map[string]string{})
	if got != `\g<Missing>.csv` {
		t.Fatalf("SubstituteTags = %q", got)
	}
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := New(nil, Options{
		OutputDir:             dir,
		PrependOutputFileName: true,
		OutputFileName:        "DefaultOUT.mat",
	})

	got, err := e.resolvePath(`sub/plate\g<Plate>.csv`, map[string]string{"Plate": "A"})
	if err != nil {
		t.Fatalf("resolvePath: %v", err)
	}
	want := filepath.Join(dir, "sub", "DefaultOUTplateA.csv")
	if got != want {
		t.Fatalf("resolvePath = %q, want %q", got, want)
	}
}
