// Package ngram collects collocations: maximal runs of adjacent high-rank
// keyword nodes within a sentence.
package ngram

import (
	"strings"

	"github.com/brunobiangulo/keyrank/graph"
	"github.com/brunobiangulo/keyrank/sentence"
)

// MaxLength is the longest phrase, in tokens, that is ever emitted.
const MaxLength = 5

// KeyPrefix namespaces collocation nodes inside the shared graph.
const KeyPrefix = "ngram:"

// Phrase is a candidate keyphrase. A single-token phrase stands for an
// existing keyword node; longer phrases become collocation nodes once the
// set is added to the graph.
type Phrase struct {
	Text     string
	Nodes    []int
	Count    int
	Contexts []*sentence.Sentence

	// Node is the graph node whose rank scores this phrase.
	Node int
}

// Len returns the number of tokens in the phrase.
func (p *Phrase) Len() int { return len(p.Nodes) }

// IsCollocation reports whether the phrase spans more than one token.
func (p *Phrase) IsCollocation() bool { return len(p.Nodes) > 1 }

// Set is the deduplicated collection of phrases of one document, in the
// order they were first seen.
type Set struct {
	Phrases  []*Phrase
	MaxCount int

	byText map[string]*Phrase
	maxLen int
}

// Collect scans every sentence for maximal runs of nodes ranked at or above
// threshold. A gap in the sentence's node list ends a run. Runs longer than
// maxLen keep their first maxLen tokens.
func Collect(sents []*sentence.Sentence, g *graph.Graph, threshold float64, maxLen int) *Set {
	if maxLen <= 0 || maxLen > MaxLength {
		maxLen = MaxLength
	}

	set := &Set{byText: make(map[string]*Phrase), maxLen: maxLen}
	for _, s := range sents {
		var run []int
		flush := func() {
			if len(run) > 0 {
				set.add(g, run, s)
				run = nil
			}
		}
		for _, id := range s.Nodes {
			if id == graph.NoNode || g.Node(id).Rank < threshold {
				flush()
				continue
			}
			run = append(run, id)
		}
		flush()
	}
	return set
}

func (set *Set) add(g *graph.Graph, run []int, s *sentence.Sentence) {
	if len(run) > set.maxLen {
		run = run[:set.maxLen]
	}

	words := make([]string, len(run))
	for i, id := range run {
		words[i] = g.Node(id).Value.Text
	}
	text := strings.Join(words, " ")

	p, ok := set.byText[text]
	if !ok {
		p = &Phrase{
			Text:  text,
			Nodes: append([]int(nil), run...),
			Node:  graph.NoNode,
		}
		if len(run) == 1 {
			p.Node = run[0]
		}
		set.byText[text] = p
		set.Phrases = append(set.Phrases, p)
	}
	p.Count++
	p.Contexts = append(p.Contexts, s)
	set.MaxCount = max(set.MaxCount, p.Count)
}

// Get returns the phrase with the given text.
func (set *Set) Get(text string) (*Phrase, bool) {
	p, ok := set.byText[text]
	return p, ok
}

// Len returns the number of distinct phrases.
func (set *Set) Len() int { return len(set.Phrases) }

// Augment inserts every multi-token phrase into g as a collocation node and
// connects it to each of its keyword nodes, so that re-ranking lets phrases
// and their words reinforce each other. It returns the number of
// collocation nodes added.
func (set *Set) Augment(g *graph.Graph) int {
	added := 0
	for _, p := range set.Phrases {
		if !p.IsCollocation() {
			continue
		}
		id, created := g.Put(KeyPrefix+p.Text, graph.Value{
			Kind: graph.KindCollocation,
			Text: p.Text,
		})
		p.Node = id
		if !created {
			continue
		}
		added++
		for _, kw := range p.Nodes {
			g.Connect(id, kw)
		}
	}
	return added
}

// RankNodes returns the scoring node of every phrase that has one, in
// phrase order.
func (set *Set) RankNodes() []int {
	ids := make([]int, 0, len(set.Phrases))
	for _, p := range set.Phrases {
		if p.Node != graph.NoNode {
			ids = append(ids, p.Node)
		}
	}
	return ids
}
