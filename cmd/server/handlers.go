package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/brunobiangulo/keyrank"
)

// maxTextBytes bounds the JSON body of POST /extract.
const maxTextBytes = 8 << 20

type handler struct {
	engine keyrank.Engine

	// Uploads are kept under uploadDir by file name, so a re-upload maps to
	// the same stored document. uploadMu keeps a file from being replaced
	// while it is extracted.
	uploadDir string
	uploadMu  sync.Mutex
}

func newHandler(e keyrank.Engine, uploadDir string) *handler {
	return &handler{engine: e, uploadDir: uploadDir}
}

// POST /extract
func (h *handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text      string `json:"text"`
		TimeoutMS int    `json:"timeout_ms,omitempty"`
		Semantic  *bool  `json:"semantic,omitempty"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTextBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.TimeoutMS < 0 {
		writeError(w, http.StatusBadRequest, "timeout_ms must not be negative")
		return
	}

	var stats keyrank.RunStats
	opts := []keyrank.RunOption{keyrank.WithStats(&stats)}
	if req.TimeoutMS > 0 {
		opts = append(opts, keyrank.WithTimeout(time.Duration(req.TimeoutMS)*time.Millisecond))
	}
	if req.Semantic != nil && !*req.Semantic {
		opts = append(opts, keyrank.WithoutSemantic())
	}

	keyphrases, err := h.engine.Extract(r.Context(), req.Text, opts...)
	if err != nil {
		h.fail(w, r, "extract", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"language":   h.engine.Language(),
		"keyphrases": nonNil(keyphrases),
		"stats":      stats,
	})
}

// POST /extract/file
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleExtractFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)
			if safeName == "." || safeName == ".." || safeName == string(filepath.Separator) {
				writeError(w, http.StatusBadRequest, "invalid file name")
				return
			}

			h.uploadMu.Lock()
			defer h.uploadMu.Unlock()

			path, err := h.saveUpload(file, safeName)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "request_id", requestID(r.Context()), "error", err)
				return
			}

			doc, err := h.engine.ExtractFile(ctx, path, fileOptions(r.FormValue("force") == "true")...)
			if err != nil {
				h.fail(w, r, "extract file", err)
				return
			}
			writeJSON(w, http.StatusOK, doc)
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path  string `json:"path"`
		Force bool   `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	doc, err := h.engine.ExtractFile(ctx, absPath, fileOptions(req.Force)...)
	if err != nil {
		h.fail(w, r, "extract file", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// saveUpload writes src to uploadDir/name through a temporary file, so a
// failed copy leaves the previous upload in place.
func (h *handler) saveUpload(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(h.uploadDir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	path := filepath.Join(h.uploadDir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// POST /extract/url
func (h *handler) handleExtractURL(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		URL   string `json:"url"`
		Force bool   `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	doc, err := h.engine.ExtractURL(ctx, req.URL, fileOptions(req.Force)...)
	if err != nil {
		h.fail(w, r, "extract url", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// parseK reads the optional k query parameter.
func parseK(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("k")
	if v == "" {
		return 10, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 100 {
		return 0, false
	}
	return n, true
}

// GET /similar?path=...&k=...
func (h *handler) handleSimilar(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	k, ok := parseK(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "k must be between 1 and 100")
		return
	}

	matches, err := h.engine.Similar(r.Context(), path, k)
	if err != nil {
		h.fail(w, r, "similar", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":    path,
		"matches": matches,
	})
}

// GET /search?phrase=...&k=...
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	phrase := r.URL.Query().Get("phrase")
	if phrase == "" {
		writeError(w, http.StatusBadRequest, "phrase is required")
		return
	}
	k, ok := parseK(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "k must be between 1 and 100")
		return
	}

	matches, err := h.engine.Search(r.Context(), phrase, k)
	if err != nil {
		h.fail(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"phrase":  phrase,
		"matches": matches,
	})
}

// DELETE /documents?path=...
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if err := h.engine.Delete(r.Context(), path); err != nil {
		h.fail(w, r, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.Documents(r.Context())
	if err != nil {
		h.fail(w, r, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"language": h.engine.Language(),
	})
}

// fail maps engine errors to HTTP statuses. Client errors carry the error
// text; server errors are logged and answered generically.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" error", "request_id", requestID(r.Context()), "error", err)
		writeError(w, status, op+" failed")
		return
	}
	slog.Warn(op+" rejected", "request_id", requestID(r.Context()), "status", status, "error", err)
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, keyrank.ErrRunTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, keyrank.ErrUnsupportedFormat),
		errors.Is(err, keyrank.ErrUnsupportedLanguage),
		errors.Is(err, keyrank.ErrParsingFailed):
		return http.StatusBadRequest
	case errors.Is(err, keyrank.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, keyrank.ErrStoreRequired):
		return http.StatusNotImplemented
	case errors.Is(err, keyrank.ErrEngineClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

func fileOptions(force bool) []keyrank.RunOption {
	if force {
		return []keyrank.RunOption{keyrank.WithForceRerun()}
	}
	return nil
}

func nonNil(kps []keyrank.Keyphrase) []keyrank.Keyphrase {
	if kps == nil {
		return []keyrank.Keyphrase{}
	}
	return kps
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
