package search

import (
	"reflect"
	"testing"
)

func TestFold(t *testing.T) {
	cases := map[string][]string{
		"foo.bfh.ch = 147.87.250.3(A)": {"foo.bfh.ch", "147.87.250.3", "a"},
		"DMZ":                          {"dmz"},
		"02:42:d7:e4:aa:59":            {"02:42:d7:e4:aa:59"},
		"2a07:6b40::/32":               {"2a07:6b40::/32"},
		"  ":                           nil,
		"Hello, World!":                {"hello", "world"},
	}
	for input, want := range cases {
		got := Fold(input)
		if len(got) == 0 && len(want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Fold(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestTokenBag(t *testing.T) {
	got := TokenBag("DMZ", "147.87.250.0/24", "")
	if got != "dmz 147.87.250.0/24" {
		t.Errorf("TokenBag = %q", got)
	}
}

func TestBuildTsquery(t *testing.T) {
	cases := map[string]string{
		"dmz":              "'dmz'",
		"dmz subnet":       "'dmz' & 'subnet'",
		`"bfh.ch record"`:  "('bfh.ch' <-> 'record')",
		"dmz -deleted":     "'dmz' & !'deleted'",
		"dmz OR lan":       "('dmz') | ('lan')",
		"a b OR c":         "('a' & 'b') | ('c')",
		"-only":            "",
		"":                 "",
		"OR":               "",
	}
	for input, want := range cases {
		if got := BuildTsquery(input); got != want {
			t.Errorf("BuildTsquery(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildTsqueryFoldsCase(t *testing.T) {
	if got := BuildTsquery("DMZ"); got != "'dmz'" {
		t.Errorf("BuildTsquery(DMZ) = %q", got)
	}
}
