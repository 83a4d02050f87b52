package keyrank

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brunobiangulo/keyrank/lang/langtest"
	"github.com/brunobiangulo/keyrank/metric"
	"github.com/brunobiangulo/keyrank/wordnet"
)

const foxText = "The quick brown fox jumps over the lazy dog. The quick fox runs."

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StorageDir = "none"
	cfg.TimeoutMS = 0
	return cfg
}

func newTestEngine(t *testing.T, opts ...Option) Engine {
	t.Helper()
	opts = append([]Option{WithLanguage(langtest.Default())}, opts...)
	e, err := New(testConfig(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// foxLexicon makes "lazy" and "quick brown fox" sense-mates.
func foxLexicon() *wordnet.Dict {
	d := wordnet.NewDict()
	d.Add(wordnet.Adjective, "lazy", "00000001-a")
	d.Add(wordnet.Noun, "quick brown fox", "00000001-a")
	return d
}

func vectorsByPhrase(vs []metric.Vector) map[string]metric.Vector {
	m := make(map[string]metric.Vector, len(vs))
	for _, v := range vs {
		m[v.Phrase] = v
	}
	return m
}

func TestExtractFox(t *testing.T) {
	e := newTestEngine(t)

	var stats RunStats
	got, err := e.Extract(context.Background(), foxText, WithStats(&stats))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// quick, brown, fox, lazy, dog: both "fox" tokens share one node.
	if stats.GraphSize != 5 {
		t.Errorf("GraphSize = %d, want 5", stats.GraphSize)
	}
	if stats.Sentences != 2 {
		t.Errorf("Sentences = %d, want 2", stats.Sentences)
	}
	if stats.Collocations != 2 {
		t.Errorf("Collocations = %d, want 2", stats.Collocations)
	}
	if stats.Components < 1 || stats.Largest < 1 || stats.Largest > stats.GraphSize+stats.Collocations {
		t.Errorf("Components = %d, Largest = %d", stats.Components, stats.Largest)
	}

	phrases := make([]string, len(got))
	for i, kp := range got {
		phrases[i] = kp.Phrase
	}
	want := []string{"quick brown fox", "lazy"}
	if !slices.Equal(phrases, want) {
		t.Fatalf("phrases = %q, want %q", phrases, want)
	}
	if math.Abs(got[0].Score-1.0/3) > 1e-9 {
		t.Errorf("score of %q = %v, want 1/3", got[0].Phrase, got[0].Score)
	}

	// "quick fox" is the lowest ranked phrase and falls under the floor.
	v, ok := vectorsByPhrase(stats.Vectors)["quick fox"]
	if !ok {
		t.Fatal("quick fox was not scored")
	}
	if v.Score != 0 {
		t.Errorf("quick fox score = %v, want 0", v.Score)
	}

	wantStages := []string{StageConstruct, StageRank, StageAugment, StageRerank, StageNormalize}
	if len(stats.Stages) != len(wantStages) {
		t.Fatalf("got %d stage timings, want %d", len(stats.Stages), len(wantStages))
	}
	for i, s := range stats.Stages {
		if s.Stage != wantStages[i] {
			t.Errorf("stage %d = %q, want %q", i, s.Stage, wantStages[i])
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := newTestEngine(t, WithLexicon(foxLexicon()))
	ctx := context.Background()

	first, err := e.Extract(ctx, foxText)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Extract(ctx, foxText)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(first, again) {
			t.Fatalf("run %d = %v, want %v", i, again, first)
		}
	}
}

// TestExtractEnglish runs the fox text through the real English model.
// Tagger output may shift between model versions, so only the shape of the
// result is checked.
func TestExtractEnglish(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	var stats RunStats
	got, err := e.Extract(context.Background(), foxText, WithStats(&stats))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if e.Language() != "en" || stats.Sentences != 2 {
		t.Errorf("language %q, %d sentences", e.Language(), stats.Sentences)
	}
	// quick, brown, fox, lazy, dog and at most one mistagged verb. A second
	// fox node would push the graph past that.
	if stats.GraphSize < 5 || stats.GraphSize > 6 {
		t.Errorf("GraphSize = %d, want 5 or 6", stats.GraphSize)
	}

	i := slices.IndexFunc(got, func(kp Keyphrase) bool { return kp.Phrase == "quick brown fox" })
	if i < 0 {
		t.Fatalf("quick brown fox missing from %v", got)
	}
	for _, kp := range got {
		if !strings.Contains(kp.Phrase, " ") && kp.Score >= got[i].Score {
			t.Errorf("single word %v ranks with quick brown fox (%v)", kp, got[i].Score)
		}
	}
}

func TestExtractEmpty(t *testing.T) {
	e := newTestEngine(t)

	for _, text := range []string{"", "   ", "the over a the."} {
		got, err := e.Extract(context.Background(), text)
		if err != nil {
			t.Fatalf("Extract(%q): %v", text, err)
		}
		if len(got) != 0 {
			t.Errorf("Extract(%q) = %v, want none", text, got)
		}
	}
}

func TestExtractScoreFloorAndOrder(t *testing.T) {
	e := newTestEngine(t, WithLexicon(foxLexicon()))

	text := foxText + " The red hen sees the fox. The lazy dog sleeps in the barn. " +
		"A red fox jumps the fence in the field."
	got, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("no keyphrases")
	}
	for i, kp := range got {
		if kp.Score < metric.MinScore || kp.Score > 1 {
			t.Errorf("%q score %v outside [%v, 1]", kp.Phrase, kp.Score, metric.MinScore)
		}
		if i > 0 {
			prev := got[i-1]
			if prev.Score < kp.Score || (prev.Score == kp.Score && prev.Phrase > kp.Phrase) {
				t.Errorf("%v sorted before %v", prev, kp)
			}
		}
	}
}

func TestExtractSemanticOnlyChangesSynsetRank(t *testing.T) {
	e := newTestEngine(t, WithLexicon(foxLexicon()))
	ctx := context.Background()

	var with, without RunStats
	if _, err := e.Extract(ctx, foxText, WithStats(&with)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Extract(ctx, foxText, WithoutSemantic(), WithStats(&without)); err != nil {
		t.Fatal(err)
	}

	if with.SenseMembers != 2 || with.Clusters != 1 {
		t.Errorf("SenseMembers = %d, Clusters = %d, want 2 and 1", with.SenseMembers, with.Clusters)
	}
	if without.SenseMembers != 0 {
		t.Errorf("SenseMembers without semantic = %d, want 0", without.SenseMembers)
	}

	a, b := vectorsByPhrase(with.Vectors), vectorsByPhrase(without.Vectors)
	if len(a) != len(b) {
		t.Fatalf("got %d and %d vectors", len(a), len(b))
	}
	for phrase, va := range a {
		vb, ok := b[phrase]
		if !ok {
			t.Fatalf("%q missing without semantic", phrase)
		}
		if va.LinkRank != vb.LinkRank || va.FreqRank != vb.FreqRank {
			t.Errorf("%q: link/freq %v/%v with semantic, %v/%v without",
				phrase, va.LinkRank, va.FreqRank, vb.LinkRank, vb.FreqRank)
		}
		if vb.SynsetRank != 0 {
			t.Errorf("%q: synset rank %v without semantic, want 0", phrase, vb.SynsetRank)
		}
	}
	if got := a["lazy"].SynsetRank; got != 1 {
		t.Errorf("lazy synset rank = %v, want 1", got)
	}
	if got := a["quick brown fox"].SynsetRank; got != 0 {
		t.Errorf("quick brown fox synset rank = %v, want 0", got)
	}
}

func TestExtractTimeout(t *testing.T) {
	slow := langtest.Default()
	slow.Delay = 50 * time.Millisecond
	e, err := New(testConfig(), WithLanguage(slow))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	ctx := context.Background()

	got, err := e.Extract(ctx, foxText, WithTimeout(time.Millisecond))
	if !errors.Is(err, ErrRunTimeout) {
		t.Fatalf("err = %v, want ErrRunTimeout", err)
	}
	if got != nil {
		t.Errorf("got %v with a timeout, want nil", got)
	}

	// The engine keeps working afterwards.
	got, err = e.Extract(ctx, foxText, WithTimeout(10*time.Second))
	if err != nil {
		t.Fatalf("Extract after timeout: %v", err)
	}
	if len(got) == 0 {
		t.Error("no keyphrases after timeout")
	}
}

func TestExtractTimeoutWhileQueued(t *testing.T) {
	slow := langtest.Default()
	slow.Delay = 50 * time.Millisecond
	e, err := New(testConfig(), WithLanguage(slow))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = e.Extract(ctx, foxText)
	}()
	time.Sleep(10 * time.Millisecond)

	if _, err := e.Extract(ctx, "The lazy dog.", WithTimeout(time.Millisecond)); !errors.Is(err, ErrRunTimeout) {
		t.Errorf("queued run err = %v, want ErrRunTimeout", err)
	}
	wg.Wait()
	if firstErr != nil {
		t.Errorf("first run: %v", firstErr)
	}
}

func TestExtractCancelled(t *testing.T) {
	slow := langtest.Default()
	slow.Delay = 50 * time.Millisecond
	e, err := New(testConfig(), WithLanguage(slow))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(5*time.Millisecond, cancel)
	if _, err := e.Extract(ctx, foxText); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLexiconErrorAbortsRun(t *testing.T) {
	boom := errors.New("sense backend down")
	e := newTestEngine(t, WithLexicon(failingLexicon{boom}))

	got, err := e.Extract(context.Background(), foxText)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !strings.HasPrefix(err.Error(), StageAugment+":") {
		t.Errorf("err = %q, want it to name the %s stage", err, StageAugment)
	}
	if got != nil {
		t.Errorf("got %v from an aborted run", got)
	}
}

type failingLexicon struct{ err error }

func (f failingLexicon) LookupSenses(context.Context, string, wordnet.POS) ([]string, error) {
	return nil, f.err
}

func TestClosedEngine(t *testing.T) {
	e, err := New(testConfig(), WithLanguage(langtest.Default()))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := e.Extract(context.Background(), foxText); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("err = %v, want ErrEngineClosed", err)
	}
}

func TestStoreRequired(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Similar(ctx, "doc.txt", 3); !errors.Is(err, ErrStoreRequired) {
		t.Errorf("Similar err = %v, want ErrStoreRequired", err)
	}
	if _, err := e.Documents(ctx); !errors.Is(err, ErrStoreRequired) {
		t.Errorf("Documents err = %v, want ErrStoreRequired", err)
	}
	if _, err := e.Search(ctx, "fox", 3); !errors.Is(err, ErrStoreRequired) {
		t.Errorf("Search err = %v, want ErrStoreRequired", err)
	}
	if err := e.Delete(ctx, "doc.txt"); !errors.Is(err, ErrStoreRequired) {
		t.Errorf("Delete err = %v, want ErrStoreRequired", err)
	}
}

func TestNewErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Language = "xx"
	if _, err := New(cfg); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("unknown language err = %v, want ErrUnsupportedLanguage", err)
	}

	cfg = testConfig()
	cfg.ReductionFactor = 0
	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("invalid config err = %v, want ErrInvalidConfig", err)
	}
}

func TestLanguage(t *testing.T) {
	e := newTestEngine(t)
	if e.Language() != "test" {
		t.Errorf("Language() = %q, want test", e.Language())
	}
}

func TestKeyphraseString(t *testing.T) {
	kp := Keyphrase{Phrase: "quick brown fox", Score: 0.5}
	if got, want := kp.String(), "0.5\tquick brown fox"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestURLFilename(t *testing.T) {
	tests := map[string]string{
		"https://example.com/news/ranking.html": "ranking.html",
		"https://example.com/":                  "example.com",
		"https://example.com":                   "example.com",
	}
	for in, want := range tests {
		if got := urlFilename(in); got != want {
			t.Errorf("urlFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
