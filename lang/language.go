// Package lang provides the per-language natural-language front end used by
// the keyphrase pipeline: sentence splitting, tokenization, part-of-speech
// tagging, stemming and node key derivation.
package lang

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// ErrUnsupportedLanguage is returned by New for an unknown language code.
var ErrUnsupportedLanguage = errors.New("lang: unsupported language")

// Language is the capability the pipeline needs from a language. A
// Language is immutable once constructed and safe for concurrent use.
type Language interface {
	// Code returns the language code, e.g. "en".
	Code() string

	// SplitParagraph splits text into sentences.
	SplitParagraph(text string) []string

	// TokenizeSentence splits a sentence into cleaned tokens: lower-cased,
	// quote-stripped, trimmed, and starting with a letter or digit.
	TokenizeSentence(sentence string) []string

	// TagTokens returns one part-of-speech tag per token.
	TagTokens(tokens []string) []string

	// StemToken returns the stem of a token.
	StemToken(token string) string

	// NodeKey derives the stable graph key for a token: a prefix of the
	// tag followed by the lower-cased stem.
	NodeKey(text, pos string) string

	IsNoun(pos string) bool
	IsAdjective(pos string) bool

	// IsRelevant reports whether tokens with this tag become graph nodes.
	IsRelevant(pos string) bool
}

var constructors = map[string]func() (Language, error){
	"en": func() (Language, error) { return NewEnglish() },
	"nl": func() (Language, error) { return NewDutch() },
}

// New constructs the Language for code. It fails with ErrUnsupportedLanguage
// for unknown codes, or with the underlying error when the language's
// resources cannot be loaded.
func New(code string) (Language, error) {
	ctor, ok := constructors[strings.ToLower(code)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return ctor()
}

// Supported returns the supported language codes, sorted.
func Supported() []string {
	codes := make([]string, 0, len(constructors))
	for c := range constructors {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}

// CleanTokens applies the token cleaning shared by all languages: drop '"',
// lower-case, trim, and keep only tokens whose first rune is a letter or
// digit.
func CleanTokens(raw []string) []string {
	cleaned := make([]string, 0, len(raw))
	for _, tok := range raw {
		c := strings.TrimSpace(strings.ToLower(strings.ReplaceAll(tok, `"`, "")))
		if c == "" {
			continue
		}
		r := []rune(c)[0]
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		cleaned = append(cleaned, c)
	}
	return cleaned
}

// Scrub trims leading and trailing runes that are neither letters nor digits.
func Scrub(token string) string {
	return strings.TrimFunc(token, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tagPrefix(pos string, n int) string {
	if len(pos) < n {
		return pos
	}
	return pos[:n]
}
