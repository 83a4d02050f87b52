// Package wordnet provides sense lookup for lemmas, backed by the WordNet
// index files. It supplies the semantic capability used to relate
// synonymous keyphrases.
package wordnet

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// POS is a WordNet part of speech.
type POS byte

const (
	Noun      POS = 'n'
	Adjective POS = 'a'
)

func (p POS) String() string {
	switch p {
	case Noun:
		return "noun"
	case Adjective:
		return "adjective"
	default:
		return fmt.Sprintf("pos(%c)", byte(p))
	}
}

// Lexicon looks up the sense identifiers of a lemma. An unknown lemma yields
// an empty result and a nil error; errors are reserved for backend failures.
type Lexicon interface {
	LookupSenses(ctx context.Context, lemma string, pos POS) ([]string, error)
}

// ExactFunc looks a normalized lemma up without any morphological
// processing.
type ExactFunc func(ctx context.Context, lemma string, pos POS) ([]string, error)

// Normalize turns a lemma or phrase into WordNet's index form: lower-case
// with words joined by underscores.
func Normalize(lemma string) string {
	return strings.Join(strings.Fields(strings.ToLower(lemma)), "_")
}

// SenseID formats a synset offset as a sense identifier, e.g. "02084071-n".
func SenseID(offset string, pos POS) string {
	return fmt.Sprintf("%s-%c", offset, byte(pos))
}

// Resolve looks lemma up through exact, falling back to WordNet's
// morphological detachment rules when the lemma itself is unknown. Senses of
// every base form found are returned, deduplicated, in discovery order.
func Resolve(ctx context.Context, exact ExactFunc, lemma string, pos POS) ([]string, error) {
	lemma = Normalize(lemma)
	if lemma == "" {
		return nil, nil
	}

	senses, err := exact(ctx, lemma, pos)
	if err != nil {
		return nil, err
	}
	if len(senses) > 0 {
		return slices.Clone(senses), nil
	}

	var out []string
	for _, base := range BaseForms(lemma, pos) {
		found, err := exact(ctx, base, pos)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			if !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out, nil
}
