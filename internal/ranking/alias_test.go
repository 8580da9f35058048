package ranking_test

import (
	"reflect"
	"testing"

	"stayfinder/internal/ranking"
)

func TestExpand_AddsCanonicalAndAliases(t *testing.T) {
	al := ranking.DefaultAliases()
	got := al.Expand(ranking.TokensOf("jacuzzi cabin"))

	for _, tok := range []string{"jacuzzi", "cabin", "hot", "tub", "hottub"} {
		if !got.Has(tok) {
			t.Errorf("expected %q in %v", tok, got)
		}
	}
	if got.Has("beach") {
		t.Errorf("unrelated canonical leaked into %v", got)
	}
}

func TestExpand_MultiWordPhraseNeedsAllTokens(t *testing.T) {
	al := ranking.DefaultAliases()
	if got := al.Expand(ranking.TokensOf("hot day")); got.Has("jacuzzi") {
		t.Fatalf("single token of a phrase must not trigger its group: %v", got)
	}
	if got := al.Expand(ranking.TokensOf("hot tub")); !got.Has("jacuzzi") {
		t.Fatalf("full phrase should trigger its group: %v", got)
	}
}

func TestExpand_MonotonicAndIdempotent(t *testing.T) {
	al := ranking.DefaultAliases()
	inputs := []string{"", "seaside villa", "downtown loft wi-fi", "swimming pool lakeside", "alpine chalet hot tub", "nothing here"}
	for _, in := range inputs {
		base := ranking.TokensOf(in)
		once := al.Expand(base)
		for tok := range base {
			if !once.Has(tok) {
				t.Errorf("%q: expansion dropped %q", in, tok)
			}
		}
		if twice := al.Expand(once); !reflect.DeepEqual(once, twice) {
			t.Errorf("%q: expand not idempotent: %v vs %v", in, once, twice)
		}
	}
}

func TestExpand_DoesNotMutateInput(t *testing.T) {
	in := ranking.TokensOf("ocean")
	_ = ranking.DefaultAliases().Expand(in)
	if len(in) != 1 {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestExpand_FixpointAcrossGroups(t *testing.T) {
	// "b" only appears through group x, and completes the phrase of group y.
	al := ranking.NewAliasTable(map[string][]string{
		"x": {"a b"},
		"y": {"b c"},
		"z": {"c"},
	})
	got := al.Expand(ranking.TokensOf("x c"))
	for _, tok := range []string{"x", "a", "b", "c", "y", "z"} {
		if !got.Has(tok) {
			t.Fatalf("expected %q in %v", tok, got)
		}
	}
	if again := al.Expand(got); !reflect.DeepEqual(got, again) {
		t.Fatalf("not idempotent: %v vs %v", got, again)
	}
}

func TestCanonical(t *testing.T) {
	al := ranking.DefaultAliases()
	cases := map[string]string{
		"Jacuzzi":       "hot tub",
		"swimming pool": "pool",
		"Wi-Fi":         "wifi",
		"Oceanfront":    "beach",
		"beach":         "beach",
		"Treehouse":     "treehouse",
	}
	for in, want := range cases {
		if got := al.Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}
