package grammar

import (
	"reflect"
	"sort"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello,  World! ", "hello world"},
		{"black coffee in bed", "black coffee in bed"},
		{"one_ring", "one_ring"},
		{"@Bob <shifty>", "bob shifty"},
		{"???", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOmnigrams(t *testing.T) {
	got := Omnigrams("Black Coffee Bed")
	want := []string{
		"black",
		"black coffee",
		"black coffee bed",
		"coffee",
		"coffee bed",
		"bed",
	}
	sort.Strings(got)
	sort.Strings(want)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Omnigrams = %v, want %v", got, want)
	}
}

func TestOmnigramsIncludesFullString(t *testing.T) {
	got := Omnigrams("john smith")
	found := false
	for _, g := range got {
		if g == "john smith" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected full normalized string in omnigrams, got %v", got)
	}
}

func TestOmnigramsEmpty(t *testing.T) {
	if got := Omnigrams("  !! "); got != nil {
		t.Fatalf("expected nil for punctuation-only input, got %v", got)
	}
}
