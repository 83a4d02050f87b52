// Package langtest provides a deterministic, dependency-free Language for
// tests. Tags come from a fixed word list instead of a statistical model.
package langtest

import (
	"strings"
	"time"

	"github.com/brunobiangulo/keyrank/lang"
)

// Fake is a table-driven Language. Words found in Tags get that tag, any
// other word is tagged "DT" and is therefore not relevant. Sentences end at
// '.', '!' or '?'. Stemming strips a plural "s" or "es".
type Fake struct {
	Tags map[string]string

	// Delay is slept once per TagTokens call, to make runs slow.
	Delay time.Duration
}

// Default tags the words of the quick brown fox sentences.
func Default() *Fake {
	return &Fake{Tags: map[string]string{
		"quick": "JJ", "brown": "JJ", "lazy": "JJ", "red": "JJ",
		"fox": "NN", "foxes": "NNS", "dog": "NN", "dogs": "NNS",
		"hen": "NN", "barn": "NN", "fence": "NN", "field": "NN",
		"graph": "NN", "rank": "NN", "text": "NN", "keyphrase": "NN",
		"extraction": "NN", "algorithm": "NN", "node": "NN", "edge": "NN",
		"weighted": "JJ", "iterative": "JJ", "semantic": "JJ",
	}}
}

func (f *Fake) Code() string { return "test" }

func (f *Fake) SplitParagraph(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func (f *Fake) TokenizeSentence(sentence string) []string {
	fields := strings.FieldsFunc(sentence, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	return lang.CleanTokens(fields)
}

func (f *Fake) TagTokens(tokens []string) []string {
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
	tags := make([]string, len(tokens))
	for i, t := range tokens {
		tag, ok := f.Tags[t]
		if !ok {
			tag = "DT"
		}
		tags[i] = tag
	}
	return tags
}

func (f *Fake) StemToken(token string) string {
	switch {
	case len(token) > 4 && strings.HasSuffix(token, "es"):
		return strings.TrimSuffix(token, "es")
	case len(token) > 3 && strings.HasSuffix(token, "s"):
		return strings.TrimSuffix(token, "s")
	}
	return token
}

func (f *Fake) NodeKey(text, pos string) string {
	prefix := pos
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return prefix + strings.ToLower(f.StemToken(lang.Scrub(text)))
}

func (f *Fake) IsNoun(pos string) bool      { return strings.HasPrefix(pos, "NN") }
func (f *Fake) IsAdjective(pos string) bool { return strings.HasPrefix(pos, "JJ") }
func (f *Fake) IsRelevant(pos string) bool  { return f.IsNoun(pos) || f.IsAdjective(pos) }
