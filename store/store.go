package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	Language    string `json:"language"`
	ParseMethod string `json:"parse_method"`
	Status      string `json:"status"`
	Metadata    string `json:"metadata,omitempty"`
	RunParams   string `json:"run_params,omitempty"` // settings the stored keyphrases were ranked with
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Keyphrase represents a row in the keyphrases table.
type Keyphrase struct {
	Position   int     `json:"position"`
	Phrase     string  `json:"phrase"`
	Score      float64 `json:"score"`
	LinkRank   float64 `json:"link_rank"`
	FreqRank   float64 `json:"freq_rank"`
	SynsetRank float64 `json:"synset_rank"`
}

// RunLog represents a row in the run_log table.
type RunLog struct {
	RunID      string
	DocumentID int64 // 0 for runs on raw text
	Language   string
	TextBytes  int
	Sentences  int
	GraphSize  int
	Phrases    int
	Keyphrases int
	Semantic   bool
	Elapsed    time.Duration
	Error      string
}

// SimilarResult is a document found by profile similarity.
type SimilarResult struct {
	DocumentID int64   `json:"document_id"`
	Path       string  `json:"path"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
}

// Store wraps the SQLite database for all keyrank persistence.
type Store struct {
	db         *sql.DB
	profileDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec profile table.
func New(dbPath string, profileDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(profileDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, profileDim: profileDim}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ProfileDim returns the configured profile vector dimension.
func (s *Store) ProfileDim() int {
	return s.profileDim
}

// --- Document operations ---

const documentColumns = `id, path, filename, format, content_hash, language, parse_method, status, metadata, run_params, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	doc := &Document{}
	var metadata, params sql.NullString
	if err := row.Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.Format,
		&doc.ContentHash, &doc.Language, &doc.ParseMethod, &doc.Status,
		&metadata, &params, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Metadata = metadata.String
	doc.RunParams = params.String
	return doc, nil
}

// UpsertDocument inserts or updates a document record. Returns the document ID.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	var metadata any
	if doc.Metadata != "" {
		metadata = doc.Metadata
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, filename, format, content_hash, language, parse_method, status, metadata, run_params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			content_hash = excluded.content_hash,
			language = excluded.language,
			parse_method = excluded.parse_method,
			status = excluded.status,
			metadata = excluded.metadata,
			run_params = excluded.run_params,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Path, doc.Filename, doc.Format, doc.ContentHash, doc.Language, doc.ParseMethod, doc.Status, metadata, doc.RunParams)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	// If UPSERT did an UPDATE, LastInsertId may not reflect the existing row.
	if id == 0 {
		row := s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE path = ?", doc.Path)
		if err := row.Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// GetDocumentByPath retrieves a document by its path or URL. It returns
// sql.ErrNoRows when there is none.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE path = ?", path))
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id))
}

// ListDocuments returns all documents, most recently updated first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus updates just the status field.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// DeleteDocument removes a document, its keyphrases and its profile.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM vec_profiles WHERE document_id = ?", id); err != nil {
			return err
		}
		// keyphrases cascade, run_log rows are kept with a NULL document
		_, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
		return err
	})
}

// --- Keyphrase operations ---

// ReplaceKeyphrases swaps the stored keyphrases of a document for kps, in
// order.
func (s *Store) ReplaceKeyphrases(ctx context.Context, docID int64, kps []Keyphrase) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM keyphrases WHERE document_id = ?", docID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO keyphrases (document_id, position, phrase, score, link_rank, freq_rank, synset_rank)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, kp := range kps {
			if _, err := stmt.ExecContext(ctx, docID, i, kp.Phrase, kp.Score,
				kp.LinkRank, kp.FreqRank, kp.SynsetRank); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetKeyphrases returns the stored keyphrases of a document in rank order.
func (s *Store) GetKeyphrases(ctx context.Context, docID int64) ([]Keyphrase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, phrase, score, COALESCE(link_rank, 0), COALESCE(freq_rank, 0), COALESCE(synset_rank, 0)
		FROM keyphrases WHERE document_id = ? ORDER BY position
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kps []Keyphrase
	for rows.Next() {
		var kp Keyphrase
		if err := rows.Scan(&kp.Position, &kp.Phrase, &kp.Score,
			&kp.LinkRank, &kp.FreqRank, &kp.SynsetRank); err != nil {
			return nil, err
		}
		kps = append(kps, kp)
	}
	return kps, rows.Err()
}

// DocumentsWithPhrase returns the documents whose stored keyphrases include
// phrase, best score first.
func (s *Store) DocumentsWithPhrase(ctx context.Context, phrase string, limit int) ([]SimilarResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.path, d.filename, k.score
		FROM keyphrases k
		JOIN documents d ON d.id = k.document_id
		WHERE k.phrase = ?
		ORDER BY k.score DESC, d.id
		LIMIT ?
	`, phrase, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SimilarResult
	for rows.Next() {
		var r SimilarResult
		if err := rows.Scan(&r.DocumentID, &r.Path, &r.Filename, &r.Score); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Profile vector operations ---

// UpsertProfile stores the keyphrase profile vector of a document.
func (s *Store) UpsertProfile(ctx context.Context, docID int64, profile []float32) error {
	if len(profile) != s.profileDim {
		return fmt.Errorf("profile has %d dimensions, store expects %d", len(profile), s.profileDim)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM vec_profiles WHERE document_id = ?", docID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO vec_profiles (document_id, profile) VALUES (?, ?)",
			docID, serializeFloat32(profile))
		return err
	})
}

// DeleteProfile removes the profile of a document, if any.
func (s *Store) DeleteProfile(ctx context.Context, docID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM vec_profiles WHERE document_id = ?", docID)
	return err
}

// GetProfile returns the stored profile vector of a document, or
// sql.ErrNoRows.
func (s *Store) GetProfile(ctx context.Context, docID int64) ([]float32, error) {
	var blob []byte
	if err := s.db.QueryRowContext(ctx,
		"SELECT profile FROM vec_profiles WHERE document_id = ?", docID).Scan(&blob); err != nil {
		return nil, err
	}
	return deserializeFloat32(blob), nil
}

// SimilarDocuments returns the k documents whose profiles are closest to
// profile by cosine distance.
func (s *Store) SimilarDocuments(ctx context.Context, profile []float32, k int) ([]SimilarResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.document_id, v.distance, d.path, d.filename
		FROM vec_profiles v
		JOIN documents d ON d.id = v.document_id
		WHERE v.profile MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(profile), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SimilarResult
	for rows.Next() {
		var r SimilarResult
		var distance float64
		if err := rows.Scan(&r.DocumentID, &distance, &r.Path, &r.Filename); err != nil {
			return nil, err
		}
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Run log ---

// LogRun records one pipeline run.
func (s *Store) LogRun(ctx context.Context, r RunLog) error {
	var docID any
	if r.DocumentID != 0 {
		docID = r.DocumentID
	}
	var runErr any
	if r.Error != "" {
		runErr = r.Error
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_log (run_id, document_id, language, text_bytes, sentences, graph_size,
			phrases, keyphrases, semantic, elapsed_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, docID, r.Language, r.TextBytes, r.Sentences, r.GraphSize,
		r.Phrases, r.Keyphrases, r.Semantic, r.Elapsed.Milliseconds(), runErr)
	return err
}

// DBStats holds row counts for diagnostics.
type DBStats struct {
	Documents  int `json:"documents"`
	Keyphrases int `json:"keyphrases"`
	Profiles   int `json:"profiles"`
	Senses     int `json:"senses"`
	Runs       int `json:"runs"`
}

// DBStats returns row counts of the main tables.
func (s *Store) DBStats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	for _, q := range []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM keyphrases", &stats.Keyphrases},
		{"SELECT COUNT(*) FROM vec_profiles", &stats.Profiles},
		{"SELECT COUNT(*) FROM senses", &stats.Senses},
		{"SELECT COUNT(*) FROM run_log", &stats.Runs},
	} {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting rows: %w", err)
		}
	}
	return stats, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
