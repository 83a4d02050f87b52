package sentence

import (
	"slices"
	"testing"

	"github.com/brunobiangulo/keyrank/graph"
	"github.com/brunobiangulo/keyrank/lang/langtest"
)

const foxText = "The quick brown fox jumps over the lazy dog. The quick fox runs."

func mustLookup(t *testing.T, g *graph.Graph, key string) int {
	t.Helper()
	id, ok := g.Lookup(key)
	if !ok {
		t.Fatalf("no node for key %q", key)
	}
	return id
}

func TestMapFoxSentences(t *testing.T) {
	g := graph.New()
	sents := Map(langtest.Default(), g, foxText, DefaultWindow)

	if len(sents) != 2 {
		t.Fatalf("sentences: got %d, want 2", len(sents))
	}
	if g.Len() != 5 {
		t.Fatalf("graph size: got %d, want 5 (quick, brown, fox, lazy, dog)", g.Len())
	}

	quick := mustLookup(t, g, "JJquick")
	brown := mustLookup(t, g, "JJbrown")
	fox := mustLookup(t, g, "NNfox")
	lazy := mustLookup(t, g, "JJlazy")
	dog := mustLookup(t, g, "NNdog")

	wantNodes := [][]int{
		{graph.NoNode, quick, brown, fox, graph.NoNode, graph.NoNode, graph.NoNode, lazy, dog},
		{graph.NoNode, quick, fox, graph.NoNode},
	}
	for i, s := range sents {
		if !slices.Equal(s.Nodes, wantNodes[i]) {
			t.Errorf("sentence %d nodes: got %v, want %v", i, s.Nodes, wantNodes[i])
		}
		if len(s.Tokens) != len(s.Nodes) {
			t.Errorf("sentence %d: %d tokens but %d node slots", i, len(s.Tokens), len(s.Nodes))
		}
	}

	edges := []struct {
		a, b int
		want float64
	}{
		{quick, brown, 1},
		{brown, fox, 1},
		{fox, lazy, 1}, // adjacency survives the gap left by "jumps over the"
		{lazy, dog, 1},
		{quick, fox, 1},
		{quick, dog, 0},
		{brown, lazy, 0},
	}
	for _, e := range edges {
		if got := g.Weight(e.a, e.b); got != e.want {
			t.Errorf("weight %s-%s: got %v, want %v", g.Node(e.a).Key, g.Node(e.b).Key, got, e.want)
		}
	}
}

func TestMapCountsRepeatedCooccurrence(t *testing.T) {
	g := graph.New()
	Map(langtest.Default(), g, "Quick fox. A quick fox! Quick foxes?", DefaultWindow)

	if g.Len() != 2 {
		t.Fatalf("graph size: got %d, want 2", g.Len())
	}
	quick := mustLookup(t, g, "JJquick")
	fox := mustLookup(t, g, "NNfox")
	if w := g.Weight(quick, fox); w != 3 {
		t.Errorf("weight quick-fox: got %v, want 3", w)
	}
	if v := g.Node(fox).Value; v.Kind != graph.KindKeyword || v.Text != "fox" {
		t.Errorf("fox value: got %+v, want first surface form", v)
	}
}

func TestMapWindow(t *testing.T) {
	g := graph.New()
	Map(langtest.Default(), g, foxText, 3)

	quick := mustLookup(t, g, "JJquick")
	fox := mustLookup(t, g, "NNfox")
	brown := mustLookup(t, g, "JJbrown")
	lazy := mustLookup(t, g, "JJlazy")

	if w := g.Weight(quick, fox); w != 2 {
		t.Errorf("weight quick-fox with window 3: got %v, want 2", w)
	}
	if w := g.Weight(brown, lazy); w != 1 {
		t.Errorf("weight brown-lazy with window 3: got %v, want 1", w)
	}
}

func TestMapNoSelfEdges(t *testing.T) {
	g := graph.New()
	Map(langtest.Default(), g, "fox fox foxes.", DefaultWindow)
	fox := mustLookup(t, g, "NNfox")
	if n := len(g.Node(fox).Edges()); n != 0 {
		t.Errorf("repeated token produced %d edges", n)
	}
}

func TestMapEmpty(t *testing.T) {
	g := graph.New()
	if sents := Map(langtest.Default(), g, "   ", DefaultWindow); len(sents) != 0 {
		t.Errorf("blank text: got %d sentences", len(sents))
	}

	sents := Map(langtest.Default(), g, "It was over.", DefaultWindow)
	if len(sents) != 1 || g.Len() != 0 {
		t.Errorf("no content tokens: got %d sentences, %d nodes", len(sents), g.Len())
	}
}

func TestNewHashesTrimmedText(t *testing.T) {
	a, b := New("  The fox.  "), New("The fox.")
	if a.Text != "The fox." {
		t.Errorf("text not trimmed: %q", a.Text)
	}
	if a.Hash != b.Hash || len(a.Hash) != 32 {
		t.Errorf("hashes: %q vs %q", a.Hash, b.Hash)
	}
}
