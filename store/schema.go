package store

import "fmt"

// schemaSQL returns the DDL for all tables. profileDim controls the
// vec0 virtual table dimension.
func schemaSQL(profileDim int) string {
	return fmt.Sprintf(`
-- Extracted documents with hash-based change detection
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    language TEXT NOT NULL,
    parse_method TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Ranked keyphrases of the last successful run per document
CREATE TABLE IF NOT EXISTS keyphrases (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    phrase TEXT NOT NULL,
    score REAL NOT NULL,
    link_rank REAL,
    freq_rank REAL,
    synset_rank REAL,
    UNIQUE(document_id, position)
);

-- Keyphrase profile vectors via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_profiles USING vec0(
    document_id INTEGER PRIMARY KEY,
    profile float[%d] distance_metric=cosine
);

-- WordNet senses, imported from the index files
CREATE TABLE IF NOT EXISTS senses (
    pos TEXT NOT NULL,
    lemma TEXT NOT NULL,
    sense TEXT NOT NULL,
    ord INTEGER NOT NULL,
    PRIMARY KEY (pos, lemma, sense)
);

-- Run audit log
CREATE TABLE IF NOT EXISTS run_log (
    id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL,
    document_id INTEGER REFERENCES documents(id) ON DELETE SET NULL,
    language TEXT NOT NULL,
    text_bytes INTEGER DEFAULT 0,
    sentences INTEGER DEFAULT 0,
    graph_size INTEGER DEFAULT 0,
    phrases INTEGER DEFAULT 0,
    keyphrases INTEGER DEFAULT 0,
    semantic INTEGER DEFAULT 0,
    elapsed_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_keyphrases_document ON keyphrases(document_id);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_run_log_document ON run_log(document_id);
`, profileDim)
}
