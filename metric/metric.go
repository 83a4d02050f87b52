// Package metric combines the structural, frequency and semantic evidence
// for each candidate phrase into one comparable score.
package metric

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/brunobiangulo/keyrank/graph"
	"github.com/brunobiangulo/keyrank/ngram"
)

// MinScore is the lowest composite score that is reported.
const MinScore = 0.05

// Zero-width range values.
const (
	flatLink   = 1.0
	flatSynset = 1.0
)

// Vector holds the normalized sub-scores of one phrase and their mean.
type Vector struct {
	Phrase     string
	LinkRank   float64
	FreqRank   float64
	SynsetRank float64
	Score      float64
}

// New returns a vector whose Score is the arithmetic mean of the three
// components.
func New(phrase string, link, freq, synset float64) Vector {
	return Vector{
		Phrase:     phrase,
		LinkRank:   link,
		FreqRank:   freq,
		SynsetRank: synset,
		Score:      (link + freq + synset) / 3,
	}
}

func (v Vector) String() string {
	return fmt.Sprintf("%.4f link=%.4f freq=%.4f synset=%.4f %q",
		v.Score, v.LinkRank, v.FreqRank, v.SynsetRank, v.Phrase)
}

// Compare orders vectors by descending score, then ascending phrase.
func Compare(a, b Vector) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Phrase, b.Phrase)
}

// LinkRank min-max normalizes a phrase rank. When every phrase has the same
// rank they are all jointly on top.
func LinkRank(rank float64, s graph.Stats) float64 {
	return s.Normalize(rank, flatLink)
}

// FreqRank normalizes an occurrence count to [0,1]. With no phrase seen more
// than once there is no repetition evidence and the result is 0.
func FreqRank(count, maxCount int) float64 {
	if maxCount <= 1 {
		return 0
	}
	return float64(count-1) / float64(maxCount-1)
}

// Semantic supplies the best normalized rank among a node's sense-mates.
// *synset.Overlay implements it, including as a nil pointer.
type Semantic interface {
	Stats() graph.Stats
	MaxNeighbor(id int, stats graph.Stats) (float64, bool)
}

// Build scores every phrase of set that has a graph node, reading ranks from
// g. sem may be nil, in which case every synset rank is 0.
func Build(g *graph.Graph, set *ngram.Set, sem Semantic) []Vector {
	ids := set.RankNodes()
	if len(ids) == 0 {
		return nil
	}
	link := g.Stats(ids...)

	var synStats graph.Stats
	if sem != nil {
		synStats = sem.Stats()
	}

	out := make([]Vector, 0, len(ids))
	for _, p := range set.Phrases {
		if p.Node == graph.NoNode {
			continue
		}
		var syn float64
		if sem != nil {
			if s, ok := sem.MaxNeighbor(p.Node, synStats); ok {
				syn = s
			}
		}
		out = append(out, New(p.Text,
			LinkRank(g.Node(p.Node).Rank, link),
			FreqRank(p.Count, set.MaxCount),
			syn,
		))
	}
	return out
}

// Filter returns the vectors scoring at least minScore, sorted by Compare.
func Filter(vectors []Vector, minScore float64) []Vector {
	out := make([]Vector, 0, len(vectors))
	for _, v := range vectors {
		if v.Score >= minScore {
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, Compare)
	return out
}
