package keyrank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/keyrank/graph"
	"github.com/brunobiangulo/keyrank/lang"
	"github.com/brunobiangulo/keyrank/metric"
	"github.com/brunobiangulo/keyrank/ngram"
	"github.com/brunobiangulo/keyrank/sentence"
	"github.com/brunobiangulo/keyrank/synset"
	"github.com/brunobiangulo/keyrank/wordnet"
)

// Pipeline stage names, in execution order.
const (
	StageConstruct = "construct"
	StageRank      = "rank"
	StageAugment   = "augment"
	StageRerank    = "rerank"
	StageNormalize = "normalize"
)

// StageTiming is the wall time of one pipeline stage.
type StageTiming struct {
	Stage   string        `json:"stage"`
	Elapsed time.Duration `json:"elapsed"`
}

// RunStats describes a finished run. Pass a RunStats with WithStats to have
// it filled in.
type RunStats struct {
	RunID        string          `json:"run_id"`
	TextBytes    int             `json:"text_bytes"`
	Sentences    int             `json:"sentences"`
	GraphSize    int             `json:"graph_size"`   // keyword nodes, after the first rank
	Threshold    float64         `json:"-"`            // collocation acceptance bar, +Inf when empty
	Phrases      int             `json:"phrases"`      // candidates before scoring
	Collocations int             `json:"collocations"` // nodes added by augmentation
	SenseMembers int             `json:"sense_members"`
	Clusters     int             `json:"clusters"`
	Components   int             `json:"components"`        // connected components after augmentation
	Largest      int             `json:"largest_component"` // nodes in the biggest one
	Iterations   [2]int          `json:"iterations"`        // first rank, re-rank
	Rank         graph.Stats     `json:"rank"`              // after re-rank
	Vectors      []metric.Vector `json:"vectors"`           // every scored phrase, before the floor
	Stages       []StageTiming   `json:"stages"`
	Elapsed      time.Duration   `json:"elapsed"`
}

// runParams are the tunables of one run.
type runParams struct {
	window          int
	reductionFactor float64
	rank            graph.RankOptions
	maxPhraseLength int
}

// fingerprint identifies the settings a stored result was produced with.
func (p runParams) fingerprint(semantic bool) string {
	return fmt.Sprintf("semantic=%t window=%d reduction=%g threshold=%g iterations=%d max_length=%d",
		semantic, p.window, p.reductionFactor, p.rank.Threshold, p.rank.MaxIterations, p.maxPhraseLength)
}

// run owns all per-run state. Stages execute strictly in order on one
// goroutine, so nothing here is locked.
type run struct {
	id      string
	text    string
	lang    lang.Language
	lexicon wordnet.Lexicon // nil disables the semantic pass
	params  runParams
	log     *slog.Logger

	graph     *graph.Graph
	sentences []*sentence.Sentence
	phrases   *ngram.Set
	overlay   *synset.Overlay
	vectors   []metric.Vector
	kept      []metric.Vector // vectors above the floor, best first

	stats RunStats
}

func newRun(text string, l lang.Language, lexicon wordnet.Lexicon, p runParams) *run {
	id := uuid.NewString()
	return &run{
		id:      id,
		text:    text,
		lang:    l,
		lexicon: lexicon,
		params:  p,
		log:     slog.With("run_id", id, "language", l.Code()),
		graph:   graph.New(),
		stats:   RunStats{RunID: id, TextBytes: len(text)},
	}
}

// execute runs the five stages. Any error, including cancellation, aborts
// the run and discards its output.
func (r *run) execute(ctx context.Context) ([]Keyphrase, error) {
	start := time.Now()
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageConstruct, r.construct},
		{StageRank, r.rankAndCollect},
		{StageAugment, r.augment},
		{StageRerank, r.rerank},
		{StageNormalize, r.normalize},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stageStart := time.Now()
		if err := s.fn(ctx); err != nil {
			r.log.Debug("run: stage aborted", "stage", s.name, "error", err)
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		elapsed := time.Since(stageStart)
		r.stats.Stages = append(r.stats.Stages, StageTiming{Stage: s.name, Elapsed: elapsed})
		r.log.Debug("run: stage complete", "stage", s.name, "elapsed", elapsed.Round(time.Microsecond))
	}
	r.stats.Elapsed = time.Since(start)

	r.kept = metric.Filter(r.vectors, metric.MinScore)
	out := make([]Keyphrase, 0, len(r.kept))
	for _, v := range r.kept {
		out = append(out, Keyphrase{Phrase: v.Phrase, Score: v.Score})
	}
	r.log.Info("run: complete",
		"text_bytes", r.stats.TextBytes, "graph_size", r.graph.Len(),
		"keyphrases", len(out), "elapsed", r.stats.Elapsed.Round(time.Millisecond))
	return out, nil
}

// construct maps every sentence onto the graph.
func (r *run) construct(ctx context.Context) error {
	for _, raw := range r.lang.SplitParagraph(r.text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := sentence.New(raw)
		if s.Text == "" {
			continue
		}
		s.Map(r.lang, r.graph, r.params.window)
		r.sentences = append(r.sentences, s)
	}
	r.stats.Sentences = len(r.sentences)
	return nil
}

// rankAndCollect ranks the keyword graph, keeps the top share of nodes as
// the acceptance bar and collects the runs of nodes that clear it.
func (r *run) rankAndCollect(ctx context.Context) error {
	iters, err := r.graph.Rank(ctx, r.params.rank)
	r.stats.Iterations[0] = iters
	if err != nil {
		return err
	}

	size := r.graph.Len()
	k := int(math.Round(float64(size) * r.params.reductionFactor))
	r.graph.SortResults(k)
	threshold := r.graph.RankThreshold()

	r.stats.GraphSize = size
	r.stats.Threshold = threshold
	r.log.Debug("run: ranked", "text_bytes", r.stats.TextBytes, "graph_size", size,
		"top_k", k, "threshold", threshold, "iterations", iters)

	r.phrases = ngram.Collect(r.sentences, r.graph, threshold, r.params.maxPhraseLength)
	r.stats.Phrases = r.phrases.Len()
	return nil
}

// augment adds collocation nodes to the graph and, when a lexicon is
// available, builds the sense overlay.
func (r *run) augment(ctx context.Context) error {
	r.stats.Collocations = r.phrases.Augment(r.graph)

	if r.lexicon == nil {
		return nil
	}
	overlay, err := synset.Build(ctx, r.lexicon, r.graph, r.phrases, r.lang)
	if err != nil {
		return fmt.Errorf("building sense overlay: %w", err)
	}
	overlay.Prune()
	r.overlay = overlay

	r.stats.SenseMembers = len(overlay.Members())
	r.stats.Clusters = len(overlay.Clusters())
	if r.log.Enabled(ctx, slog.LevelDebug) {
		for _, c := range overlay.Clusters() {
			r.log.Debug("run: sense cluster", "members", overlay.Describe(c))
		}
		r.log.Debug("run: senses pruned", "dropped", overlay.Dropped(), "links", len(overlay.Links()))
	}
	return nil
}

// rerank ranks the augmented graph so phrases and their words reinforce
// each other.
func (r *run) rerank(ctx context.Context) error {
	// Every node restarts from the same rank.
	for _, n := range r.graph.Nodes() {
		n.Rank = graph.InitialRank
	}
	iters, err := r.graph.Rank(ctx, r.params.rank)
	r.stats.Iterations[1] = iters
	if err != nil {
		return err
	}
	r.stats.Rank = r.graph.Stats()
	comps := r.graph.Components(nil)
	r.stats.Components = len(comps)
	r.stats.Largest = graph.Largest(comps)
	r.log.Debug("run: re-ranked", "graph_size", r.graph.Len(), "stats", r.stats.Rank.String(),
		"components", r.stats.Components, "iterations", iters)
	return nil
}

// normalize scores every phrase.
func (r *run) normalize(_ context.Context) error {
	var sem metric.Semantic
	if r.overlay != nil {
		sem = r.overlay
	}
	r.vectors = metric.Build(r.graph, r.phrases, sem)
	r.stats.Vectors = r.vectors
	return nil
}
