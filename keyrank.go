// Package keyrank extracts ranked keyphrases from text and documents with a
// five-pass TextRank pipeline: graph construction, ranking with collocation
// discovery, semantic augmentation, re-ranking and metric normalization.
package keyrank

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/brunobiangulo/keyrank/graph"
	"github.com/brunobiangulo/keyrank/lang"
	"github.com/brunobiangulo/keyrank/parser"
	"github.com/brunobiangulo/keyrank/store"
	"github.com/brunobiangulo/keyrank/wordnet"
)

// Engine is the main entry point for keyphrase extraction.
type Engine interface {
	// Extract ranks the keyphrases of text, best first.
	Extract(ctx context.Context, text string, opts ...RunOption) ([]Keyphrase, error)

	// ExtractFile parses a document and extracts its keyphrases. Results
	// are cached in the store by content hash and language.
	ExtractFile(ctx context.Context, path string, opts ...RunOption) (*Document, error)

	// ExtractURL fetches a web page, keeps its readable article text and
	// extracts its keyphrases like ExtractFile.
	ExtractURL(ctx context.Context, pageURL string, opts ...RunOption) (*Document, error)

	// Similar returns up to k stored documents whose keyphrase profiles
	// are closest to that of the document at path.
	Similar(ctx context.Context, path string, k int) ([]Match, error)

	// Search returns up to k stored documents that have phrase among their
	// keyphrases, best scoring first.
	Search(ctx context.Context, phrase string, k int) ([]Match, error)

	// Documents lists every stored document, most recently updated first.
	Documents(ctx context.Context) ([]Document, error)

	// Delete forgets the stored result of the document at path.
	Delete(ctx context.Context, path string) error

	// Language returns the language code the engine extracts for.
	Language() string

	// Close stops the worker after the queued runs finish and closes the
	// store. It is safe to call more than once.
	Close() error
}

// Keyphrase is one extracted phrase with its composite score in [0, 1].
type Keyphrase struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
}

func (k Keyphrase) String() string {
	return fmt.Sprintf("%v\t%s", k.Score, k.Phrase)
}

// Document is an extracted document and its keyphrases.
type Document struct {
	ID          int64             `json:"id,omitempty"`
	Path        string            `json:"path"`
	Filename    string            `json:"filename"`
	Format      string            `json:"format"`
	ContentHash string            `json:"content_hash"`
	Language    string            `json:"language"`
	ParseMethod string            `json:"parse_method"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Keyphrases  []Keyphrase       `json:"keyphrases,omitempty"`
	Cached      bool              `json:"cached"`
	CreatedAt   string            `json:"created_at,omitempty"`
	UpdatedAt   string            `json:"updated_at,omitempty"`
}

// Match is a document found by keyphrase profile similarity.
type Match struct {
	DocumentID int64   `json:"document_id"`
	Path       string  `json:"path"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
}

// RunOption configures a single extraction.
type RunOption func(*runOptions)

type runOptions struct {
	timeout    time.Duration
	noSemantic bool
	forceRerun bool
	stats      *RunStats
}

// WithTimeout overrides the configured time budget of the run. Zero means
// no limit.
func WithTimeout(d time.Duration) RunOption {
	return func(o *runOptions) { o.timeout = d }
}

// WithoutSemantic skips the semantic pass for this run.
func WithoutSemantic() RunOption {
	return func(o *runOptions) { o.noSemantic = true }
}

// WithForceRerun ignores cached results of an unchanged document.
func WithForceRerun() RunOption {
	return func(o *runOptions) { o.forceRerun = true }
}

// WithStats fills in s when the run finishes. A cached result leaves s
// untouched.
func WithStats(s *RunStats) RunOption {
	return func(o *runOptions) { o.stats = s }
}

// Option configures an engine.
type Option func(*engineOptions)

type engineOptions struct {
	lang       lang.Language
	lexicon    wordnet.Lexicon
	hasLexicon bool
	parsers    *parser.Registry
	store      *store.Store
	httpClient *http.Client
}

// WithLanguage uses l instead of the built-in capability for the
// configured language code.
func WithLanguage(l lang.Language) Option {
	return func(o *engineOptions) { o.lang = l }
}

// WithLexicon sets the sense source of the semantic pass. A nil lexicon
// disables the pass.
func WithLexicon(lex wordnet.Lexicon) Option {
	return func(o *engineOptions) { o.lexicon, o.hasLexicon = lex, true }
}

// WithParsers replaces the default document parser registry.
func WithParsers(r *parser.Registry) Option {
	return func(o *engineOptions) { o.parsers = r }
}

// WithStore uses an already open store. The engine does not close it.
func WithStore(s *store.Store) Option {
	return func(o *engineOptions) { o.store = s }
}

// WithHTTPClient sets the client ExtractURL fetches with.
func WithHTTPClient(c *http.Client) Option {
	return func(o *engineOptions) { o.httpClient = c }
}

// job is one queued run. The worker closes done after setting out and err.
type job struct {
	ctx  context.Context
	run  *run
	done chan struct{}
	out  []Keyphrase
	err  error
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg        Config
	lang       lang.Language
	lexicon    wordnet.Lexicon
	parsers    *parser.Registry
	store      *store.Store
	ownStore   bool
	httpClient *http.Client

	mu      sync.RWMutex
	closed  bool
	jobs    chan *job
	stopped chan struct{}
}

// New creates a keyrank engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Apply defaults for zero values
	if cfg.ProfileDim == 0 {
		cfg.ProfileDim = DefaultConfig().ProfileDim
	}

	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	l := o.lang
	var dict *wordnet.Dict
	if l == nil {
		caps, err := loadCapabilities(cfg.Language, cfg.WordNetDir)
		if err != nil {
			return nil, err
		}
		l, dict = caps.lang, caps.dict
	}

	e := &engine{
		cfg:        cfg,
		lang:       l,
		parsers:    o.parsers,
		store:      o.store,
		httpClient: o.httpClient,
		jobs:       make(chan *job, cfg.QueueSize),
		stopped:    make(chan struct{}),
	}
	if e.parsers == nil {
		e.parsers = parser.NewRegistry()
	}

	if e.store == nil && !cfg.storeDisabled() {
		dbPath := cfg.resolveDBPath()
		s, err := store.New(dbPath, cfg.ProfileDim)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		e.store, e.ownStore = s, true
		slog.Info("engine: store opened", "path", dbPath)
	}

	lexicon, err := e.selectLexicon(o, dict)
	if err != nil {
		if e.ownStore {
			e.store.Close()
		}
		return nil, err
	}
	e.lexicon = lexicon

	go e.work()

	slog.Info("engine: started", "language", l.Code(),
		"semantic", e.lexicon != nil, "store", e.store != nil,
		"queue_size", cfg.QueueSize, "timeout_ms", cfg.TimeoutMS)
	return e, nil
}

// selectLexicon picks the sense source: an explicit option, then the
// store-backed sense table, then the in-memory dictionary.
func (e *engine) selectLexicon(o *engineOptions, dict *wordnet.Dict) (wordnet.Lexicon, error) {
	switch {
	case e.cfg.DisableSemantic:
		return nil, nil
	case o.hasLexicon:
		return o.lexicon, nil
	case e.cfg.SenseStore:
		if e.store == nil {
			return nil, ErrStoreRequired
		}
		if dict != nil {
			ctx := context.Background()
			n, err := e.store.SenseCount(ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: counting stored senses: %w", ErrResourceLoad, err)
			}
			if n == 0 {
				if _, err := e.store.ImportSenses(ctx, dict); err != nil {
					return nil, fmt.Errorf("%w: importing senses: %w", ErrResourceLoad, err)
				}
			}
		}
		return e.store, nil
	case dict != nil:
		return dict, nil
	}
	return nil, nil
}

// work runs queued jobs one at a time until the queue is closed.
func (e *engine) work() {
	defer close(e.stopped)
	for j := range e.jobs {
		if err := j.ctx.Err(); err != nil {
			// Abandoned while queued.
			j.err = err
			close(j.done)
			continue
		}
		j.out, j.err = j.run.execute(j.ctx)
		close(j.done)
	}
}

func (e *engine) runOptions(opts []RunOption) *runOptions {
	o := &runOptions{timeout: time.Duration(e.cfg.TimeoutMS) * time.Millisecond}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (e *engine) newRun(text string, o *runOptions) *run {
	lexicon := e.lexicon
	if o.noSemantic {
		lexicon = nil
	}
	return newRun(text, e.lang, lexicon, e.params())
}

func (e *engine) params() runParams {
	return runParams{
		window:          e.cfg.Window,
		reductionFactor: e.cfg.ReductionFactor,
		rank: graph.RankOptions{
			Threshold:     e.cfg.ConvergenceThreshold,
			MaxIterations: e.cfg.MaxIterations,
		},
		maxPhraseLength: e.cfg.MaxPhraseLength,
	}
}

// fingerprint describes the run o would start, for the result cache.
func (e *engine) fingerprint(o *runOptions) string {
	return e.params().fingerprint(e.lexicon != nil && !o.noSemantic)
}

// submit queues r and waits for it. The time budget starts now, so time
// spent waiting in the queue counts. When the budget runs out or ctx is
// cancelled, the job is cancelled and awaited before returning.
func (e *engine) submit(ctx context.Context, r *run, timeout time.Duration) ([]Keyphrase, error) {
	start := time.Now()

	var (
		jctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		jctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		jctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	j := &job{ctx: jctx, run: r, done: make(chan struct{})}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrEngineClosed
	}
	select {
	case e.jobs <- j:
	case <-jctx.Done():
		e.mu.RUnlock()
		return nil, e.abortError(ctx, start)
	}
	e.mu.RUnlock()

	select {
	case <-j.done:
	case <-jctx.Done():
		cancel()
		<-j.done
	}

	if j.err != nil && jctx.Err() != nil {
		return nil, e.abortError(ctx, start)
	}
	return j.out, j.err
}

// abortError tells a caller cancellation from an expired time budget.
func (e *engine) abortError(ctx context.Context, start time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w after %s", ErrRunTimeout, time.Since(start).Round(time.Millisecond))
}

// Extract runs the pipeline over text.
func (e *engine) Extract(ctx context.Context, text string, opts ...RunOption) ([]Keyphrase, error) {
	o := e.runOptions(opts)
	r := e.newRun(text, o)
	out, err := e.submit(ctx, r, o.timeout)
	e.finishRun(r, o, 0, len(out), err)
	return out, err
}

// finishRun reports stats to the caller and records the run in the store.
func (e *engine) finishRun(r *run, o *runOptions, docID int64, keyphrases int, runErr error) {
	if o.stats != nil {
		*o.stats = r.stats
	}
	if e.store == nil || errors.Is(runErr, ErrEngineClosed) {
		return
	}
	entry := store.RunLog{
		RunID:      r.id,
		DocumentID: docID,
		Language:   e.lang.Code(),
		TextBytes:  r.stats.TextBytes,
		Sentences:  r.stats.Sentences,
		GraphSize:  r.stats.GraphSize,
		Phrases:    r.stats.Phrases,
		Keyphrases: keyphrases,
		Semantic:   r.lexicon != nil,
		Elapsed:    r.stats.Elapsed,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	// The caller's context may already be done; the log entry is still wanted.
	if err := e.store.LogRun(context.Background(), entry); err != nil {
		slog.Warn("engine: recording run failed", "run_id", r.id, "error", err)
	}
}

// ExtractFile parses the document at path and extracts its keyphrases.
func (e *engine) ExtractFile(ctx context.Context, path string, opts ...RunOption) (*Document, error) {
	o := e.runOptions(opts)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	if doc, ok := e.cached(ctx, absPath, hash, o); ok {
		return doc, nil
	}

	format := parser.Format(absPath)
	p, err := e.parsers.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	slog.Info("extract: parsing document", "file", filepath.Base(absPath), "format", format)
	parseStart := time.Now()
	parsed, err := p.Parse(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	slog.Info("extract: parsing complete", "file", filepath.Base(absPath),
		"method", parsed.Method, "sections", len(parsed.Sections),
		"elapsed", time.Since(parseStart).Round(time.Millisecond))

	return e.extractDocument(ctx, &Document{
		Path:        absPath,
		Filename:    filepath.Base(absPath),
		Format:      format,
		ContentHash: hash,
	}, parsed, o)
}

// ExtractURL fetches pageURL and extracts the keyphrases of its article
// text. The content hash covers the extracted text, not the raw page.
func (e *engine) ExtractURL(ctx context.Context, pageURL string, opts ...RunOption) (*Document, error) {
	o := e.runOptions(opts)

	parsed, err := parser.Fetch(ctx, e.httpClient, pageURL)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	text := parsed.Text()
	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])

	if doc, ok := e.cached(ctx, pageURL, hash, o); ok {
		return doc, nil
	}

	return e.extractDocument(ctx, &Document{
		Path:        pageURL,
		Filename:    urlFilename(pageURL),
		Format:      "html",
		ContentHash: hash,
	}, parsed, o)
}

// cached returns the stored result for an unchanged document.
func (e *engine) cached(ctx context.Context, path, hash string, o *runOptions) (*Document, bool) {
	if e.store == nil || o.forceRerun {
		return nil, false
	}
	existing, err := e.store.GetDocumentByPath(ctx, path)
	if err != nil || existing.ContentHash != hash ||
		existing.Language != e.lang.Code() || existing.Status != "ready" {
		return nil, false
	}
	if existing.RunParams != e.fingerprint(o) {
		slog.Info("extract: run settings changed, ranking again", "path", path,
			"stored", existing.RunParams)
		return nil, false
	}
	kps, err := e.store.GetKeyphrases(ctx, existing.ID)
	if err != nil {
		slog.Warn("extract: reading cached keyphrases failed", "path", path, "error", err)
		return nil, false
	}

	doc := documentFromStore(existing)
	doc.Cached = true
	doc.Keyphrases = make([]Keyphrase, len(kps))
	for i, kp := range kps {
		doc.Keyphrases[i] = Keyphrase{Phrase: kp.Phrase, Score: kp.Score}
	}
	slog.Info("extract: unchanged, using cached keyphrases", "path", path, "doc_id", doc.ID)
	return doc, true
}

// extractDocument runs the pipeline over parsed text and, with a store,
// persists the document, its keyphrases and its profile.
func (e *engine) extractDocument(ctx context.Context, doc *Document, parsed *parser.ParseResult, o *runOptions) (*Document, error) {
	doc.Language = e.lang.Code()
	doc.ParseMethod = parsed.Method
	doc.Metadata = parsed.Metadata

	var metadataJSON string
	if len(parsed.Metadata) > 0 {
		data, _ := json.Marshal(parsed.Metadata)
		metadataJSON = string(data)
	}

	if e.store != nil {
		id, err := e.store.UpsertDocument(ctx, store.Document{
			Path:        doc.Path,
			Filename:    doc.Filename,
			Format:      doc.Format,
			ContentHash: doc.ContentHash,
			Language:    doc.Language,
			ParseMethod: doc.ParseMethod,
			Status:      "processing",
			Metadata:    metadataJSON,
			RunParams:   e.fingerprint(o),
		})
		if err != nil {
			return nil, fmt.Errorf("upserting document: %w", err)
		}
		doc.ID = id
	}

	r := e.newRun(parsed.Text(), o)
	out, err := e.submit(ctx, r, o.timeout)
	e.finishRun(r, o, doc.ID, len(out), err)
	if err != nil {
		e.setStatus(doc, "error")
		return nil, err
	}
	doc.Keyphrases = out

	if e.store != nil {
		if err := e.persist(ctx, doc.ID, r); err != nil {
			e.setStatus(doc, "error")
			return nil, err
		}
	}
	e.setStatus(doc, "ready")

	slog.Info("extract: document ready", "file", doc.Filename, "doc_id", doc.ID,
		"keyphrases", len(out), "elapsed", r.stats.Elapsed.Round(time.Millisecond))
	return doc, nil
}

func (e *engine) persist(ctx context.Context, docID int64, r *run) error {
	kps := make([]store.Keyphrase, len(r.kept))
	for i, v := range r.kept {
		kps[i] = store.Keyphrase{
			Position:   i,
			Phrase:     v.Phrase,
			Score:      v.Score,
			LinkRank:   v.LinkRank,
			FreqRank:   v.FreqRank,
			SynsetRank: v.SynsetRank,
		}
	}
	if err := e.store.ReplaceKeyphrases(ctx, docID, kps); err != nil {
		return fmt.Errorf("storing keyphrases: %w", err)
	}

	// A document without keyphrases has no direction to compare by.
	if len(kps) == 0 {
		if err := e.store.DeleteProfile(ctx, docID); err != nil {
			return fmt.Errorf("clearing profile: %w", err)
		}
		return nil
	}
	if err := e.store.UpsertProfile(ctx, docID, store.Profile(kps, e.store.ProfileDim())); err != nil {
		return fmt.Errorf("storing profile: %w", err)
	}
	return nil
}

func (e *engine) setStatus(doc *Document, status string) {
	doc.Status = status
	if e.store == nil || doc.ID == 0 {
		return
	}
	if err := e.store.UpdateDocumentStatus(context.Background(), doc.ID, status); err != nil {
		slog.Warn("extract: updating status failed", "doc_id", doc.ID, "status", status, "error", err)
	}
}

// Similar finds the stored documents closest to the one at path.
func (e *engine) Similar(ctx context.Context, path string, k int) ([]Match, error) {
	if e.store == nil {
		return nil, ErrStoreRequired
	}
	if k <= 0 {
		k = 10
	}

	doc, err := e.storedDocument(ctx, path)
	if err != nil {
		return nil, err
	}

	profile, err := e.store.GetProfile(ctx, doc.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return []Match{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	// One extra neighbour since the document matches itself.
	results, err := e.store.SimilarDocuments(ctx, profile, k+1)
	if err != nil {
		return nil, fmt.Errorf("searching profiles: %w", err)
	}

	matches := make([]Match, 0, k)
	for _, res := range results {
		if res.DocumentID == doc.ID {
			continue
		}
		if len(matches) == k {
			break
		}
		matches = append(matches, Match{
			DocumentID: res.DocumentID,
			Path:       res.Path,
			Filename:   res.Filename,
			Score:      res.Score,
		})
	}
	return matches, nil
}

// storedDocument looks a document up by its path or URL.
func (e *engine) storedDocument(ctx context.Context, path string) (*store.Document, error) {
	key := path
	if !isURL(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		key = abs
	}

	doc, err := e.store.GetDocumentByPath(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, key)
	}
	return doc, err
}

// Search looks phrase up among the stored keyphrases. Keyphrases are stored
// lower-cased, so the lookup is too.
func (e *engine) Search(ctx context.Context, phrase string, k int) ([]Match, error) {
	if e.store == nil {
		return nil, ErrStoreRequired
	}
	if k <= 0 {
		k = 10
	}
	phrase = strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	if phrase == "" {
		return []Match{}, nil
	}

	results, err := e.store.DocumentsWithPhrase(ctx, phrase, k)
	if err != nil {
		return nil, fmt.Errorf("searching keyphrases: %w", err)
	}
	matches := make([]Match, len(results))
	for i, res := range results {
		matches[i] = Match{
			DocumentID: res.DocumentID,
			Path:       res.Path,
			Filename:   res.Filename,
			Score:      res.Score,
		}
	}
	return matches, nil
}

// Delete removes a stored document with its keyphrases and profile.
func (e *engine) Delete(ctx context.Context, path string) error {
	if e.store == nil {
		return ErrStoreRequired
	}
	doc, err := e.storedDocument(ctx, path)
	if err != nil {
		return err
	}
	if err := e.store.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	slog.Info("engine: document deleted", "path", doc.Path, "doc_id", doc.ID)
	return nil
}

// Documents returns every stored document without its keyphrases.
func (e *engine) Documents(ctx context.Context) ([]Document, error) {
	if e.store == nil {
		return nil, ErrStoreRequired
	}
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Document, len(docs))
	for i := range docs {
		result[i] = *documentFromStore(&docs[i])
	}
	return result, nil
}

func (e *engine) Language() string {
	return e.lang.Code()
}

// Close drains the queue and shuts the engine down.
func (e *engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	<-e.stopped
	slog.Info("engine: stopped", "language", e.lang.Code())

	if e.ownStore {
		return e.store.Close()
	}
	return nil
}

func documentFromStore(d *store.Document) *Document {
	doc := &Document{
		ID:          d.ID,
		Path:        d.Path,
		Filename:    d.Filename,
		Format:      d.Format,
		ContentHash: d.ContentHash,
		Language:    d.Language,
		ParseMethod: d.ParseMethod,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Metadata != "" {
		_ = json.Unmarshal([]byte(d.Metadata), &doc.Metadata)
	}
	return doc
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// urlFilename names a fetched page after the last element of its path, or
// its host for a site root.
func urlFilename(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	if base := path.Base(u.Path); base != "/" && base != "." && base != "" {
		return base
	}
	return u.Host
}
