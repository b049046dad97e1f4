package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var dropNonASCII = runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII }))

// NormalizeStationName cleans a station name so it can be joined across years
// and sources: non-ASCII runes are dropped, the rest is lowercased, spaces are
// removed and slashes become underscores.
func NormalizeStationName(input string) string {
	s, _, err := transform.String(dropNonASCII, input)
	if err != nil {
		s = asciiOnly(input)
	}
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "/", "_")
	return strings.TrimSpace(s)
}

// NormalizeStationNames applies NormalizeStationName to every element, keeping
// order and length. Each distinct name is cleaned once.
func NormalizeStationNames(names []string) []string {
	cleaned := make(map[string]string, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		v, ok := cleaned[name]
		if !ok {
			v = NormalizeStationName(name)
			cleaned[name] = v
		}
		out[i] = v
	}
	return out
}

func asciiOnly(input string) string {
	out := strings.Builder{}
	for _, r := range input {
		if r <= unicode.MaxASCII {
			out.WriteRune(r)
		}
	}
	return out.String()
}
