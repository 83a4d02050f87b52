// Package synset relates keywords and collocations that share a lexical
// sense. It keeps its own side graph so the main co-occurrence graph, and
// therefore every structural score, is the same whether or not it runs.
package synset

import (
	"context"
	"fmt"
	"strings"

	"github.com/brunobiangulo/keyrank/graph"
	"github.com/brunobiangulo/keyrank/lang"
	"github.com/brunobiangulo/keyrank/ngram"
	"github.com/brunobiangulo/keyrank/wordnet"
)

// Relations recorded on links.
const (
	RelSense   = "sense"
	RelSynonym = "synonym"
)

// SenseKeyPrefix namespaces sense nodes inside the side graph.
const SenseKeyPrefix = "sense:"

// Link ties a main-graph node to a sense, or to another node sharing one.
type Link struct {
	Member   int
	Sense    string
	Relation string
	Mate     int
}

func (l Link) String() string {
	if l.Relation == RelSynonym {
		return fmt.Sprintf("%d %s %d via %s", l.Member, l.Relation, l.Mate, l.Sense)
	}
	return fmt.Sprintf("%d %s %s", l.Member, l.Relation, l.Sense)
}

// Overlay is the sense side graph of one run.
type Overlay struct {
	main *graph.Graph
	side *graph.Graph

	sideOf map[int]int // main id -> side id
	mainOf map[int]int // side id -> main id

	links    []Link
	mates    map[int][]int
	clusters [][]int
	dropped  int
}

// Build queries lex for every noun and adjective keyword node of g and for
// every multi-word phrase of set, and links each hit to its senses. Unknown
// lemmas are skipped. Phrases must already be in g (see ngram.Set.Augment).
func Build(ctx context.Context, lex wordnet.Lexicon, g *graph.Graph, set *ngram.Set, l lang.Language) (*Overlay, error) {
	o := &Overlay{
		main:   g,
		side:   graph.New(),
		sideOf: make(map[int]int),
		mainOf: make(map[int]int),
		mates:  make(map[int][]int),
	}

	for _, n := range g.Nodes() {
		if n.Value.Kind != graph.KindKeyword {
			continue
		}
		var pos wordnet.POS
		switch {
		case l.IsNoun(n.Value.POS):
			pos = wordnet.Noun
		case l.IsAdjective(n.Value.POS):
			pos = wordnet.Adjective
		default:
			continue
		}
		if err := o.add(ctx, lex, n.ID, n.Value.Text, pos); err != nil {
			return nil, err
		}
	}

	if set != nil {
		for _, p := range set.Phrases {
			if !p.IsCollocation() || p.Node == graph.NoNode {
				continue
			}
			if err := o.add(ctx, lex, p.Node, p.Text, wordnet.Noun); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}

func (o *Overlay) add(ctx context.Context, lex wordnet.Lexicon, id int, text string, pos wordnet.POS) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	senses, err := lex.LookupSenses(ctx, text, pos)
	if err != nil {
		return fmt.Errorf("looking up %q as %s: %w", text, pos, err)
	}
	if len(senses) == 0 {
		return nil
	}

	member, ok := o.sideOf[id]
	if !ok {
		n := o.main.Node(id)
		member, _ = o.side.Put(n.Key, n.Value)
		o.sideOf[id] = member
		o.mainOf[member] = id
	}
	for _, s := range senses {
		sense, _ := o.side.Put(SenseKeyPrefix+s, graph.Value{
			Kind:     graph.KindSense,
			Text:     s,
			Relation: RelSense,
		})
		if o.side.Weight(member, sense) == 0 {
			o.side.Connect(member, sense)
			o.links = append(o.links, Link{Member: id, Sense: s, Relation: RelSense, Mate: graph.NoNode})
		}
	}
	return nil
}

// Prune discards senses held by a single member, connects the members of
// every remaining sense to each other and groups them into clusters.
func (o *Overlay) Prune() {
	for _, n := range o.side.Nodes() {
		if n.Value.Kind != graph.KindSense {
			continue
		}
		edges := n.Edges()
		if len(edges) < 2 {
			o.dropped++
			continue
		}
		for i, a := range edges {
			for _, b := range edges[i+1:] {
				ma, mb := o.mainOf[a.To], o.mainOf[b.To]
				if o.side.Weight(a.To, b.To) == 0 {
					o.mates[ma] = append(o.mates[ma], mb)
					o.mates[mb] = append(o.mates[mb], ma)
				}
				o.side.Connect(a.To, b.To)
				o.links = append(o.links, Link{Member: ma, Sense: n.Value.Text, Relation: RelSynonym, Mate: mb})
			}
		}
	}

	o.clusters = o.clusters[:0]
	for _, comp := range o.side.Components(func(n *graph.Node) bool {
		return n.Value.Kind != graph.KindSense
	}) {
		if len(comp) < 2 {
			continue
		}
		ids := make([]int, len(comp))
		for i, sid := range comp {
			ids[i] = o.mainOf[sid]
		}
		o.clusters = append(o.clusters, ids)
	}
}

// Members returns the main-graph ids that matched at least one sense, in
// the order they were first matched.
func (o *Overlay) Members() []int {
	if o == nil {
		return nil
	}
	ids := make([]int, 0, len(o.sideOf))
	for _, n := range o.side.Nodes() {
		if id, ok := o.mainOf[n.ID]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Stats returns the main-graph rank statistics of the overlay members, read
// at call time.
func (o *Overlay) Stats() graph.Stats {
	members := o.Members()
	if len(members) == 0 {
		return graph.Stats{}
	}
	return o.main.Stats(members...)
}

// Mates returns the nodes sharing a sense with id.
func (o *Overlay) Mates(id int) []int {
	if o == nil {
		return nil
	}
	return o.mates[id]
}

// MaxNeighbor returns the best rank among the sense-mates of id, normalized
// against stats. A flat range counts as fully ranked. ok is false when id has
// no sense-mates.
func (o *Overlay) MaxNeighbor(id int, stats graph.Stats) (score float64, ok bool) {
	mates := o.Mates(id)
	if len(mates) == 0 {
		return 0, false
	}
	best := 0.0
	for _, m := range mates {
		best = max(best, stats.Normalize(o.main.Node(m).Rank, 1))
	}
	return min(best, 1), true
}

// Clusters returns the groups of main-graph ids connected through shared
// senses, as computed by the last Prune.
func (o *Overlay) Clusters() [][]int {
	if o == nil {
		return nil
	}
	return o.clusters
}

// Links returns every sense and synonym link in creation order.
func (o *Overlay) Links() []Link {
	if o == nil {
		return nil
	}
	return o.links
}

// Dropped returns the number of senses Prune discarded.
func (o *Overlay) Dropped() int {
	if o == nil {
		return 0
	}
	return o.dropped
}

// Describe renders a cluster with node texts, for debug logs.
func (o *Overlay) Describe(cluster []int) string {
	words := make([]string, len(cluster))
	for i, id := range cluster {
		words[i] = o.main.Node(id).Value.Text
	}
	return strings.Join(words, ", ")
}
