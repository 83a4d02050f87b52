package graph

import (
	"context"
	"math"
)

const (
	// Damping is the TextRank/PageRank damping factor.
	Damping = 0.85

	// InitialRank is the rank every node starts from.
	InitialRank = 1.0

	// DefaultThreshold stops iteration once no node moves by more than this.
	DefaultThreshold = 1e-4

	// DefaultMaxIterations caps the number of rank iterations.
	DefaultMaxIterations = 100
)

// RankOptions tunes the rank iteration. Zero values select the defaults.
type RankOptions struct {
	Threshold     float64
	MaxIterations int
}

func (o RankOptions) withDefaults() RankOptions {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Rank runs weighted TextRank over the whole graph:
//
//	rank(n) = (1-d) + d * sum(w(n,m) / out(m) * rank(m))
//
// Every iteration is computed from the previous iteration's ranks, visiting
// nodes in id order, until the largest change drops below the threshold or
// the iteration cap is hit. ctx is checked before each iteration; when it is
// done the ranks of the last completed iteration are kept and ctx.Err() is
// returned. The number of completed iterations is returned either way.
func (g *Graph) Rank(ctx context.Context, opts RankOptions) (int, error) {
	opts = opts.withDefaults()

	n := len(g.nodes)
	if n == 0 {
		return 0, ctx.Err()
	}

	out := make([]float64, n)
	for i, node := range g.nodes {
		out[i] = node.OutWeight()
	}

	prev := make([]float64, n)
	next := make([]float64, n)
	for i, node := range g.nodes {
		prev[i] = node.Rank
	}

	iterations := 0
	for iterations < opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return iterations, err
		}

		maxDelta := 0.0
		for i, node := range g.nodes {
			sum := 0.0
			for _, e := range node.edges {
				if out[e.To] > 0 {
					sum += e.Weight / out[e.To] * prev[e.To]
				}
			}
			next[i] = (1 - Damping) + Damping*sum
			maxDelta = math.Max(maxDelta, math.Abs(next[i]-prev[i]))
		}

		prev, next = next, prev
		iterations++
		for i, node := range g.nodes {
			node.Rank = prev[i]
		}

		if maxDelta < opts.Threshold {
			break
		}
	}

	return iterations, nil
}
