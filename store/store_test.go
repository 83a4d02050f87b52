//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/brunobiangulo/keyrank/wordnet"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.ProfileDim() != 4 {
		t.Fatalf("expected profile dim 4, got %d", s.ProfileDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != migrations[len(migrations)-1].version {
		t.Errorf("schema version: got %d, want %d", v, migrations[len(migrations)-1].version)
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	s, err := New(filepath.Join(dir, "test.db"), 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestReopenSkipsAppliedMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 2; i++ {
		s, err := New(dbPath, 4)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		s.Close()
	}
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func sampleDoc(path string) Document {
	return Document{
		Path:        path,
		Filename:    filepath.Base(path),
		Format:      "txt",
		ContentHash: "abc123",
		Language:    "en",
		ParseMethod: "native",
		Status:      "ready",
		Metadata:    `{"source":"test"}`,
		RunParams:   "semantic=true window=2",
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDoc("/tmp/a.txt"))
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero document id")
	}

	got, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("getting document by id: %v", err)
	}
	if got.Path != "/tmp/a.txt" || got.Language != "en" || got.Metadata != `{"source":"test"}` ||
		got.RunParams != "semantic=true window=2" {
		t.Errorf("unexpected document: %+v", got)
	}

	byPath, err := s.GetDocumentByPath(ctx, "/tmp/a.txt")
	if err != nil {
		t.Fatalf("getting document by path: %v", err)
	}
	if byPath.ID != id {
		t.Errorf("id by path: got %d, want %d", byPath.ID, id)
	}
}

func TestGetDocumentByPathNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocumentByPath(context.Background(), "/nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpsertDocumentUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, _ := s.UpsertDocument(ctx, sampleDoc("/tmp/a.txt"))
	doc := sampleDoc("/tmp/a.txt")
	doc.ContentHash = "def456"
	doc.Language = "nl"
	doc.Metadata = ""
	doc.RunParams = "semantic=false window=2"
	id2, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("upsert changed id: %d -> %d", id1, id2)
	}

	got, _ := s.GetDocument(ctx, id1)
	if got.ContentHash != "def456" || got.Language != "nl" || got.Metadata != "" ||
		got.RunParams != "semantic=false window=2" {
		t.Errorf("document not updated: %+v", got)
	}
}

func TestListDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertDocument(ctx, sampleDoc("/a.txt"))
	s.UpsertDocument(ctx, sampleDoc("/b.txt"))

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Path != "/b.txt" {
		t.Errorf("expected most recent first, got %q", docs[0].Path)
	}
}

func TestUpdateDocumentStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertDocument(ctx, sampleDoc("/a.txt"))
	if err := s.UpdateDocumentStatus(ctx, id, "error"); err != nil {
		t.Fatalf("updating status: %v", err)
	}
	got, _ := s.GetDocument(ctx, id)
	if got.Status != "error" {
		t.Errorf("status: got %q, want error", got.Status)
	}
}

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertDocument(ctx, sampleDoc("/a.txt"))
	s.ReplaceKeyphrases(ctx, id, []Keyphrase{{Phrase: "quick fox", Score: 0.9}})
	s.UpsertProfile(ctx, id, []float32{1, 0, 0, 0})
	s.LogRun(ctx, RunLog{RunID: "r1", DocumentID: id, Language: "en"})

	if err := s.DeleteDocument(ctx, id); err != nil {
		t.Fatalf("deleting: %v", err)
	}

	stats, err := s.DBStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Documents != 0 || stats.Keyphrases != 0 || stats.Profiles != 0 {
		t.Errorf("leftover rows after delete: %+v", stats)
	}
	if stats.Runs != 1 {
		t.Errorf("run log should survive document deletion, got %d runs", stats.Runs)
	}
}

// ---------------------------------------------------------------------------
// Keyphrases
// ---------------------------------------------------------------------------

func TestReplaceAndGetKeyphrases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.UpsertDocument(ctx, sampleDoc("/a.txt"))

	first := []Keyphrase{
		{Phrase: "quick fox", Score: 0.9, LinkRank: 1, FreqRank: 1, SynsetRank: 0.7},
		{Phrase: "dog", Score: 0.3, LinkRank: 0.9},
	}
	if err := s.ReplaceKeyphrases(ctx, id, first); err != nil {
		t.Fatalf("replacing: %v", err)
	}
	got, err := s.GetKeyphrases(ctx, id)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if len(got) != 2 || got[0].Phrase != "quick fox" || got[0].Position != 0 || got[1].Position != 1 {
		t.Fatalf("unexpected keyphrases: %+v", got)
	}
	if got[0].SynsetRank != 0.7 || got[1].LinkRank != 0.9 {
		t.Errorf("sub-scores not round-tripped: %+v", got)
	}

	if err := s.ReplaceKeyphrases(ctx, id, []Keyphrase{{Phrase: "lazy dog", Score: 0.5}}); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, _ = s.GetKeyphrases(ctx, id)
	if len(got) != 1 || got[0].Phrase != "lazy dog" {
		t.Errorf("replace did not drop old rows: %+v", got)
	}
}

func TestDocumentsWithPhrase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _ := s.UpsertDocument(ctx, sampleDoc("/a.txt"))
	b, _ := s.UpsertDocument(ctx, sampleDoc("/b.txt"))
	s.ReplaceKeyphrases(ctx, a, []Keyphrase{{Phrase: "fox", Score: 0.2}})
	s.ReplaceKeyphrases(ctx, b, []Keyphrase{{Phrase: "fox", Score: 0.8}, {Phrase: "dog", Score: 0.1}})

	results, err := s.DocumentsWithPhrase(ctx, "fox", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 || results[0].DocumentID != b || results[1].DocumentID != a {
		t.Errorf("unexpected results: %+v", results)
	}
}

// ---------------------------------------------------------------------------
// Profiles
// ---------------------------------------------------------------------------

func TestProfileRoundTripAndSimilar(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vecs := map[string][]float32{
		"/a.txt": {1, 0, 0, 0},
		"/b.txt": {0.8, 0.6, 0, 0},
		"/c.txt": {0, 0, 1, 0},
	}
	ids := make(map[string]int64)
	for _, p := range []string{"/a.txt", "/b.txt", "/c.txt"} {
		id, _ := s.UpsertDocument(ctx, sampleDoc(p))
		ids[p] = id
		if err := s.UpsertProfile(ctx, id, vecs[p]); err != nil {
			t.Fatalf("upserting profile %s: %v", p, err)
		}
	}
	// overwrite keeps one row per document
	if err := s.UpsertProfile(ctx, ids["/a.txt"], vecs["/a.txt"]); err != nil {
		t.Fatalf("re-upserting profile: %v", err)
	}

	got, err := s.GetProfile(ctx, ids["/b.txt"])
	if err != nil {
		t.Fatalf("getting profile: %v", err)
	}
	if !slices.Equal(got, vecs["/b.txt"]) {
		t.Errorf("profile round trip: got %v", got)
	}

	results, err := s.SimilarDocuments(ctx, vecs["/a.txt"], 2)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Path != "/a.txt" || results[1].Path != "/b.txt" {
		t.Errorf("order: got %s, %s", results[0].Path, results[1].Path)
	}
	if math.Abs(results[1].Score-0.8) > 1e-4 {
		t.Errorf("cosine similarity of b: got %v, want 0.8", results[1].Score)
	}
}

func TestUpsertProfileDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.UpsertDocument(context.Background(), sampleDoc("/a.txt"))
	if err := s.UpsertProfile(context.Background(), id, []float32{1, 0}); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestGetProfileMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetProfile(context.Background(), 42); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Senses
// ---------------------------------------------------------------------------

func TestImportAndLookupSenses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := wordnet.NewDict()
	d.Add(wordnet.Noun, "dog", "02084071-n", "10114209-n")
	d.Add(wordnet.Noun, "lazy dog", "99999999-n")
	d.Add(wordnet.Adjective, "lazy", "01097102-a")

	n, err := s.ImportSenses(ctx, d)
	if err != nil {
		t.Fatalf("importing: %v", err)
	}
	if n != 4 {
		t.Errorf("imported rows: got %d, want 4", n)
	}
	if c, _ := s.SenseCount(ctx); c != 4 {
		t.Errorf("sense count: got %d, want 4", c)
	}

	tests := []struct {
		lemma string
		pos   wordnet.POS
		want  []string
	}{
		{"dog", wordnet.Noun, []string{"02084071-n", "10114209-n"}},
		{"dogs", wordnet.Noun, []string{"02084071-n", "10114209-n"}},
		{"Lazy Dogs", wordnet.Noun, []string{"99999999-n"}},
		{"lazy", wordnet.Adjective, []string{"01097102-a"}},
		{"lazy", wordnet.Noun, nil},
		{"cat", wordnet.Noun, nil},
	}
	for _, tt := range tests {
		t.Run(tt.lemma, func(t *testing.T) {
			got, err := s.LookupSenses(ctx, tt.lemma, tt.pos)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	// a second import replaces the table
	small := wordnet.NewDict()
	small.Add(wordnet.Noun, "fox", "02118333-n")
	if _, err := s.ImportSenses(ctx, small); err != nil {
		t.Fatalf("re-importing: %v", err)
	}
	if c, _ := s.SenseCount(ctx); c != 1 {
		t.Errorf("sense count after re-import: got %d, want 1", c)
	}
}

// ---------------------------------------------------------------------------
// Run log
// ---------------------------------------------------------------------------

func TestLogRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runs := []RunLog{
		{RunID: "r1", Language: "en", TextBytes: 64, Sentences: 2, GraphSize: 5, Phrases: 4, Keyphrases: 3, Elapsed: 12 * time.Millisecond},
		{RunID: "r2", Language: "en", Semantic: true, Error: "rank: context deadline exceeded"},
	}
	for _, r := range runs {
		if err := s.LogRun(ctx, r); err != nil {
			t.Fatalf("logging %s: %v", r.RunID, err)
		}
	}

	var elapsed int64
	var semantic bool
	var runErr sql.NullString
	err := s.DB().QueryRowContext(ctx,
		"SELECT elapsed_ms, semantic, error FROM run_log WHERE run_id = ?", "r1").
		Scan(&elapsed, &semantic, &runErr)
	if err != nil {
		t.Fatalf("reading r1: %v", err)
	}
	if elapsed != 12 || semantic || runErr.Valid {
		t.Errorf("r1 row: elapsed=%d semantic=%v error=%v", elapsed, semantic, runErr)
	}

	if err := s.DB().QueryRowContext(ctx,
		"SELECT error FROM run_log WHERE run_id = ?", "r2").Scan(&runErr); err != nil {
		t.Fatalf("reading r2: %v", err)
	}
	if runErr.String != "rank: context deadline exceeded" {
		t.Errorf("r2 error: got %q", runErr.String)
	}
}
