package util

import (
	"strings"
	"testing"
	"unicode"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeStationNames(t *testing.T) {
	input := []string{"Métro Côte-Vertu", "rue st-denis / sherbrooke", "rue st-denis / sherbrooke"}
	want := []string{"mtrocte-vertu", "ruest-denis_sherbrooke", "ruest-denis_sherbrooke"}

	got := NormalizeStationNames(input)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
}

func TestNormalizeStationNamesEmpty(t *testing.T) {
	got := NormalizeStationNames(nil)
	if len(got) != 0 {
		t.Fatalf("len=%d", len(got))
	}
}

func TestNormalizeStationName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "accents dropped", input: "Émile-Journault", want: "mile-journault"},
		{name: "slash", input: "A/B", want: "a_b"},
		{name: "tabs trimmed", input: "\tGare Centrale\n", want: "garecentrale"},
		{name: "only non-ascii", input: "éèà", want: ""},
		{name: "already clean", input: "metro_mont-royal", want: "metro_mont-royal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeStationName(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizeStationNameProperties(t *testing.T) {
	inputs := []string{
		"Métro Côte-Vertu",
		"de la Commune / Place Jacques-Cartier",
		"  Square Victoria (Viger / Saint-Antoine)  ",
		"Ste-Catherine / Dézéry",
		"",
	}
	for _, in := range inputs {
		once := NormalizeStationName(in)
		if twice := NormalizeStationName(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
		if strings.ContainsAny(once, " /") {
			t.Fatalf("space or slash left in %q", once)
		}
		for _, r := range once {
			if r > unicode.MaxASCII {
				t.Fatalf("non-ascii rune %q left in %q", r, once)
			}
		}
	}
}
