// Package sentence maps the tokens of one sentence onto graph nodes and
// co-occurrence edges.
package sentence

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/brunobiangulo/keyrank/graph"
	"github.com/brunobiangulo/keyrank/lang"
)

// DefaultWindow connects each content token to the one before it.
const DefaultWindow = 2

// Sentence is one sentence of the input, with the graph node of each token
// in occurrence order. Tokens that did not become nodes hold graph.NoNode.
type Sentence struct {
	Text   string
	Hash   string
	Tokens []string
	Nodes  []int
}

// New returns a sentence for the trimmed text, without any nodes.
func New(text string) *Sentence {
	text = strings.TrimSpace(text)
	sum := md5.Sum([]byte(text))
	return &Sentence{Text: text, Hash: hex.EncodeToString(sum[:])}
}

// Map tokenizes and tags the sentence, inserts a keyword node for every
// content-bearing token and connects each such node to the window-1 content
// nodes before it. Non-content tokens leave a gap in Nodes but do not break
// adjacency between the content tokens around them.
func (s *Sentence) Map(l lang.Language, g *graph.Graph, window int) {
	if window < 2 {
		window = DefaultWindow
	}

	s.Tokens = l.TokenizeSentence(s.Text)
	tags := l.TagTokens(s.Tokens)
	s.Nodes = make([]int, len(s.Tokens))

	recent := make([]int, 0, window-1)
	for i, tok := range s.Tokens {
		s.Nodes[i] = graph.NoNode
		if i >= len(tags) || !l.IsRelevant(tags[i]) {
			continue
		}

		id, _ := g.Put(l.NodeKey(tok, tags[i]), graph.Value{
			Kind: graph.KindKeyword,
			Text: tok,
			POS:  tags[i],
		})
		s.Nodes[i] = id

		for _, prev := range recent {
			g.Connect(prev, id)
		}
		if len(recent) == window-1 {
			recent = recent[1:]
		}
		recent = append(recent, id)
	}
}

// Map splits text into sentences and maps each one onto g.
func Map(l lang.Language, g *graph.Graph, text string, window int) []*Sentence {
	var out []*Sentence
	for _, raw := range l.SplitParagraph(text) {
		s := New(raw)
		if s.Text == "" {
			continue
		}
		s.Map(l, g, window)
		out = append(out, s)
	}
	return out
}
