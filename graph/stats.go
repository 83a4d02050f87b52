package graph

import (
	"fmt"
	"math"
)

// Stats summarizes a rank distribution.
type Stats struct {
	N      int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Width returns Max - Min.
func (s Stats) Width() float64 { return s.Max - s.Min }

// Normalize maps v into [0,1] using the min-max range. A zero-width range
// has no spread to normalize against, so it yields ifFlat instead.
func (s Stats) Normalize(v, ifFlat float64) float64 {
	w := s.Width()
	if s.N == 0 || w == 0 {
		return ifFlat
	}
	return (v - s.Min) / w
}

func (s Stats) String() string {
	return fmt.Sprintf("n=%d min=%.4f max=%.4f mean=%.4f stddev=%.4f",
		s.N, s.Min, s.Max, s.Mean, s.StdDev)
}

// Stats computes rank statistics over the given node ids, or over every node
// when ids is empty. Ranks are read at call time.
func (g *Graph) Stats(ids ...int) Stats {
	if len(ids) == 0 {
		ids = make([]int, len(g.nodes))
		for i := range ids {
			ids[i] = i
		}
	}
	ranks := make([]float64, len(ids))
	for i, id := range ids {
		ranks[i] = g.nodes[id].Rank
	}
	return ComputeStats(ranks)
}

// ComputeStats returns the population statistics of values.
func ComputeStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{N: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
	}
	s.Mean = sum / float64(s.N)

	var sq float64
	for _, v := range values {
		d := v - s.Mean
		sq += d * d
	}
	s.StdDev = math.Sqrt(sq / float64(s.N))
	return s
}
