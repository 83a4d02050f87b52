package wordnet

import (
	"slices"
	"strings"
)

type detachment struct {
	suffix, ending string
}

// WordNet's inflectional detachment rules (morphy).
var detachments = map[POS][]detachment{
	Noun: {
		{"s", ""},
		{"ses", "s"},
		{"xes", "x"},
		{"zes", "z"},
		{"ches", "ch"},
		{"shes", "sh"},
		{"men", "man"},
		{"ies", "y"},
	},
	Adjective: {
		{"er", ""},
		{"est", ""},
		{"er", "e"},
		{"est", "e"},
	},
}

// BaseForms returns the candidate base forms of an inflected word, in rule
// order, without duplicates. For multi-word lemmas only the last word is
// inflected.
func BaseForms(lemma string, pos POS) []string {
	head, last := "", lemma
	if i := strings.LastIndexByte(lemma, '_'); i >= 0 {
		head, last = lemma[:i+1], lemma[i+1:]
	}

	var out []string
	for _, d := range detachments[pos] {
		if !strings.HasSuffix(last, d.suffix) || len(last) <= len(d.suffix) {
			continue
		}
		base := head + strings.TrimSuffix(last, d.suffix) + d.ending
		if base != lemma && !slices.Contains(out, base) {
			out = append(out, base)
		}
	}
	return out
}
