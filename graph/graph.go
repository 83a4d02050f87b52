// Package graph implements the weighted, undirected co-occurrence graph
// used by the keyphrase pipeline: an insertion-ordered arena of nodes,
// an iterative rank procedure and rank distribution statistics.
package graph

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// NoNode marks a token position that did not produce a node.
const NoNode = -1

// Kind discriminates the value carried by a node.
type Kind uint8

const (
	// KindKeyword is a single content-bearing token.
	KindKeyword Kind = iota + 1
	// KindCollocation is a multi-word phrase built from keyword nodes.
	KindCollocation
	// KindSense is a sense identifier from a lexical database.
	KindSense
)

func (k Kind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindCollocation:
		return "collocation"
	case KindSense:
		return "sense"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is the payload of a node. Only the fields relevant to Kind are set:
// keywords carry Text and POS, collocations carry Text, sense nodes carry
// Text (the sense id) and Relation.
type Value struct {
	Kind     Kind
	Text     string
	POS      string
	Relation string
}

// Edge is a weighted reference to a neighbor node.
type Edge struct {
	To     int
	Weight float64
}

// Node is one vertex of the graph. Edges are kept in the order they were
// first created so that rank sums are reproducible.
type Node struct {
	ID    int
	Key   string
	Value Value
	Rank  float64

	edges []Edge
	index map[int]int
}

// Edges returns the node's neighbors in creation order. The slice must
// not be modified.
func (n *Node) Edges() []Edge { return n.edges }

// OutWeight is the sum of the node's edge weights.
func (n *Node) OutWeight() float64 {
	var sum float64
	for _, e := range n.edges {
		sum += e.Weight
	}
	return sum
}

// Graph is an arena of nodes addressed by id. Ids are assigned in insertion
// order and never reused, so iterating ids is iterating insertion order.
type Graph struct {
	nodes []*Node
	keys  map[string]int
	top   []int
	bar   float64
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{keys: make(map[string]int)}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Put inserts a node for key, or returns the existing node's id when the key
// is already present. The value of an existing node is left untouched.
func (g *Graph) Put(key string, v Value) (id int, created bool) {
	if id, ok := g.keys[key]; ok {
		return id, false
	}
	id = len(g.nodes)
	g.nodes = append(g.nodes, &Node{
		ID:    id,
		Key:   key,
		Value: v,
		Rank:  InitialRank,
		index: make(map[int]int),
	})
	g.keys[key] = id
	return id, true
}

// Lookup returns the id for key.
func (g *Graph) Lookup(key string) (int, bool) {
	id, ok := g.keys[key]
	return id, ok
}

// Node returns the node with the given id. It panics on an out of range id,
// like a slice index would.
func (g *Graph) Node(id int) *Node { return g.nodes[id] }

// Nodes returns all nodes in insertion order. The slice must not be modified.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Connect increments the weight of the undirected edge a-b by one, creating
// it with weight 1 when absent. Self-edges are ignored.
func (g *Graph) Connect(a, b int) {
	if a == b {
		return
	}
	g.nodes[a].link(b, 1)
	g.nodes[b].link(a, 1)
}

// Weight returns the weight of the edge a-b, or 0 when there is none.
func (g *Graph) Weight(a, b int) float64 {
	n := g.nodes[a]
	if i, ok := n.index[b]; ok {
		return n.edges[i].Weight
	}
	return 0
}

func (n *Node) link(to int, w float64) {
	if i, ok := n.index[to]; ok {
		n.edges[i].Weight += w
		return
	}
	n.index[to] = len(n.edges)
	n.edges = append(n.edges, Edge{To: to, Weight: w})
}

// SortResults retains the ids of the k highest ranked nodes, ordered by rank
// descending and id ascending. k is clamped to [0, Len()]. The graph itself
// is not modified; the retained set only feeds RankThreshold.
func (g *Graph) SortResults(k int) []int {
	k = max(0, min(k, len(g.nodes)))

	ids := make([]int, len(g.nodes))
	for i := range ids {
		ids[i] = i
	}
	slices.SortStableFunc(ids, func(a, b int) int {
		if c := cmp.Compare(g.nodes[b].Rank, g.nodes[a].Rank); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	g.top = ids[:k]
	g.bar = math.Inf(1)
	if k > 0 {
		g.bar = g.nodes[g.top[k-1]].Rank
	}
	return slices.Clone(g.top)
}

// RankThreshold returns the lowest rank among the nodes retained by the last
// SortResults call, as it was when they were sorted. With nothing retained
// it returns +Inf so that no node passes the bar.
func (g *Graph) RankThreshold() float64 {
	if g.top == nil {
		return math.Inf(1)
	}
	return g.bar
}
