package synset

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/brunobiangulo/keyrank/graph"
	"github.com/brunobiangulo/keyrank/lang/langtest"
	"github.com/brunobiangulo/keyrank/ngram"
	"github.com/brunobiangulo/keyrank/sentence"
	"github.com/brunobiangulo/keyrank/wordnet"
)

type fixture struct {
	g   *graph.Graph
	set *ngram.Set
	ids map[string]int
}

// newFixture builds dog, hound, fox (nouns), lazy, quick (adjectives), an
// untagged "runs" and the collocation "lazy dog".
func newFixture(t *testing.T) fixture {
	t.Helper()
	g := graph.New()
	ids := make(map[string]int)
	for _, kw := range []struct{ text, pos string }{
		{"dog", "NN"}, {"hound", "NN"}, {"fox", "NN"},
		{"lazy", "JJ"}, {"quick", "JJ"}, {"runs", "VBZ"},
	} {
		id, _ := g.Put(kw.pos[:2]+kw.text, graph.Value{Kind: graph.KindKeyword, Text: kw.text, POS: kw.pos})
		ids[kw.text] = id
	}
	g.Connect(ids["lazy"], ids["dog"])
	g.Connect(ids["quick"], ids["fox"])

	s := sentence.New("The lazy dog.")
	s.Nodes = []int{graph.NoNode, ids["lazy"], ids["dog"]}
	set := ngram.Collect([]*sentence.Sentence{s}, g, 0, ngram.MaxLength)
	set.Augment(g)
	p, _ := set.Get("lazy dog")
	ids["lazy dog"] = p.Node

	return fixture{g: g, set: set, ids: ids}
}

func testDict() *wordnet.Dict {
	d := wordnet.NewDict()
	d.Add(wordnet.Noun, "dog", "02084071-n", "10114209-n")
	d.Add(wordnet.Noun, "hound", "02084071-n")
	d.Add(wordnet.Noun, "fox", "02118333-n")
	d.Add(wordnet.Noun, "lazy dog", "99999999-n")
	d.Add(wordnet.Adjective, "lazy", "01097102-a")
	d.Add(wordnet.Noun, "runs", "00000001-n")
	return d
}

func build(t *testing.T, f fixture) *Overlay {
	t.Helper()
	o, err := Build(context.Background(), testDict(), f.g, f.set, langtest.Default())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	o.Prune()
	return o
}

// ---------------------------------------------------------------------------
// Build + Prune
// ---------------------------------------------------------------------------

func TestBuildAndPrune(t *testing.T) {
	f := newFixture(t)
	o := build(t, f)

	wantMembers := []int{f.ids["dog"], f.ids["hound"], f.ids["fox"], f.ids["lazy"], f.ids["lazy dog"]}
	if got := o.Members(); !slices.Equal(got, wantMembers) {
		t.Errorf("members: got %v, want %v", got, wantMembers)
	}

	var senses, synonyms int
	for _, l := range o.Links() {
		switch l.Relation {
		case RelSense:
			senses++
		case RelSynonym:
			synonyms++
			if l.Member != f.ids["dog"] || l.Mate != f.ids["hound"] || l.Sense != "02084071-n" {
				t.Errorf("unexpected synonym link %v", l)
			}
		}
	}
	if senses != 6 || synonyms != 1 {
		t.Errorf("links: got %d sense, %d synonym; want 6, 1", senses, synonyms)
	}
	if o.Dropped() != 4 {
		t.Errorf("dropped senses: got %d, want 4", o.Dropped())
	}

	if got := o.Mates(f.ids["dog"]); !slices.Equal(got, []int{f.ids["hound"]}) {
		t.Errorf("mates of dog: got %v", got)
	}
	if got := o.Mates(f.ids["fox"]); len(got) != 0 {
		t.Errorf("fox should have no mates, got %v", got)
	}

	clusters := o.Clusters()
	if len(clusters) != 1 || !slices.Equal(clusters[0], []int{f.ids["dog"], f.ids["hound"]}) {
		t.Errorf("clusters: got %v", clusters)
	}
	if got := o.Describe(clusters[0]); got != "dog, hound" {
		t.Errorf("Describe: got %q", got)
	}
}

func TestBuildLeavesMainGraphUntouched(t *testing.T) {
	f := newFixture(t)
	size := f.g.Len()
	weights := make([]float64, size)
	for _, n := range f.g.Nodes() {
		weights[n.ID] = n.OutWeight()
	}

	build(t, f)

	if f.g.Len() != size {
		t.Fatalf("graph size changed: %d -> %d", size, f.g.Len())
	}
	for _, n := range f.g.Nodes() {
		if n.OutWeight() != weights[n.ID] {
			t.Errorf("node %s out weight changed: %v -> %v", n.Key, weights[n.ID], n.OutWeight())
		}
	}
}

// ---------------------------------------------------------------------------
// MaxNeighbor
// ---------------------------------------------------------------------------

func TestMaxNeighbor(t *testing.T) {
	f := newFixture(t)
	ranks := map[string]float64{"dog": 2, "hound": 1, "fox": 0.5, "lazy": 1.5, "lazy dog": 3}
	for text, r := range ranks {
		f.g.Node(f.ids[text]).Rank = r
	}
	o := build(t, f)
	stats := o.Stats()
	if stats.Min != 0.5 || stats.Max != 3 {
		t.Fatalf("member stats: %v", stats)
	}

	tests := []struct {
		node   string
		want   float64
		wantOK bool
	}{
		{"dog", 0.2, true},
		{"hound", 0.6, true},
		{"fox", 0, false},
		{"lazy dog", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.node, func(t *testing.T) {
			got, ok := o.MaxNeighbor(f.ids[tt.node], stats)
			if ok != tt.wantOK || math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MaxNeighbor(%s): got %v,%v want %v,%v", tt.node, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMaxNeighborFlatRange(t *testing.T) {
	f := newFixture(t)
	o := build(t, f)
	// every node still holds the initial rank
	got, ok := o.MaxNeighbor(f.ids["dog"], o.Stats())
	if !ok || got != 1 {
		t.Errorf("flat range: got %v,%v want 1,true", got, ok)
	}
}

func TestNilOverlay(t *testing.T) {
	var o *Overlay
	if got, ok := o.MaxNeighbor(0, graph.Stats{}); ok || got != 0 {
		t.Errorf("nil overlay MaxNeighbor: %v,%v", got, ok)
	}
	if o.Members() != nil || o.Clusters() != nil || o.Links() != nil || o.Dropped() != 0 {
		t.Error("nil overlay accessors should be empty")
	}
	if s := o.Stats(); s.N != 0 {
		t.Errorf("nil overlay stats: %v", s)
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

type failingLexicon struct{ err error }

func (f failingLexicon) LookupSenses(context.Context, string, wordnet.POS) ([]string, error) {
	return nil, f.err
}

func TestBuildPropagatesLookupErrors(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("disk on fire")
	_, err := Build(context.Background(), failingLexicon{boom}, f.g, f.set, langtest.Default())
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped %v", err, boom)
	}
}

func TestBuildCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, testDict(), f.g, f.set, langtest.Default()); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
