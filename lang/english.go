package lang

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/kljensen/snowball"
)

// untagged is assigned when the tagger output cannot be aligned with a
// token. It is never relevant.
const untagged = "XX"

// English tags with the prose averaged-perceptron model (Penn Treebank tag
// set) and stems with the Snowball English stemmer.
type English struct{}

// NewEnglish loads the English models. The first document forces prose to
// load its tagger so a broken model surfaces here rather than mid-run.
func NewEnglish() (*English, error) {
	if _, err := prose.NewDocument("Models load once.", prose.WithExtraction(false)); err != nil {
		return nil, fmt.Errorf("loading english tagger: %w", err)
	}
	if _, err := snowball.Stem("loading", "english", true); err != nil {
		return nil, fmt.Errorf("loading english stemmer: %w", err)
	}
	return &English{}, nil
}

func (e *English) Code() string { return "en" }

func (e *English) SplitParagraph(text string) []string {
	return splitSentences(text)
}

func (e *English) TokenizeSentence(sentence string) []string {
	return CleanTokens(tokenize(sentence))
}

// TagTokens tags the already-cleaned tokens. The tokens are re-joined and
// passed through prose so the tagger sees them in context; prose may split
// a token further, in which case the token takes the tag of its first piece.
func (e *English) TagTokens(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	doc, err := prose.NewDocument(strings.Join(tokens, " "),
		prose.WithSegmentation(false),
		prose.WithExtraction(false))
	if err != nil {
		slog.Debug("lang: tagging failed", "lang", "en", "error", err)
		tags := make([]string, len(tokens))
		for i := range tags {
			tags[i] = untagged
		}
		return tags
	}
	return alignTags(tokens, doc.Tokens())
}

func (e *English) StemToken(token string) string {
	stem, err := snowball.Stem(token, "english", true)
	if err != nil {
		return token
	}
	return stem
}

func (e *English) NodeKey(text, pos string) string {
	return tagPrefix(pos, 2) + strings.ToLower(e.StemToken(Scrub(text)))
}

func (e *English) IsNoun(pos string) bool      { return strings.HasPrefix(pos, "NN") }
func (e *English) IsAdjective(pos string) bool { return strings.HasPrefix(pos, "JJ") }
func (e *English) IsRelevant(pos string) bool  { return e.IsNoun(pos) || e.IsAdjective(pos) }

// alignTags maps tagger tokens back onto the input tokens by consuming
// tagger pieces until their text covers each input token.
func alignTags(tokens []string, tagged []prose.Token) []string {
	tags := make([]string, len(tokens))
	j := 0
	for i, tok := range tokens {
		tags[i] = untagged
		covered := 0
		for j < len(tagged) && covered < len(tok) {
			if covered == 0 {
				tags[i] = tagged[j].Tag
			}
			covered += len(tagged[j].Text)
			j++
		}
	}
	return tags
}

// splitSentences segments text with the prose punkt segmenter, dropping
// blank sentences.
func splitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		slog.Debug("lang: segmentation failed, using whole text", "error", err)
		return []string{strings.TrimSpace(text)}
	}

	var out []string
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// tokenize runs the prose tokenizer over a single sentence.
func tokenize(sentence string) []string {
	doc, err := prose.NewDocument(sentence,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		return strings.Fields(sentence)
	}
	toks := doc.Tokens()
	raw := make([]string, len(toks))
	for i, t := range toks {
		raw[i] = t.Text
	}
	return raw
}
