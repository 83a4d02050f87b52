//go:build cgo

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/keyrank"
	"github.com/brunobiangulo/keyrank/lang/langtest"
	"github.com/brunobiangulo/keyrank/store"
)

func newStoreServer(t *testing.T) http.Handler {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "keyrank.db"), 64)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := keyrank.DefaultConfig()
	cfg.TimeoutMS = 0
	engine, err := keyrank.New(cfg, keyrank.WithLanguage(langtest.Default()), keyrank.WithStore(s))
	if err != nil {
		t.Fatalf("keyrank.New: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return newServer(engine, t.TempDir(), "", nil)
}

func upload(t *testing.T, h http.Handler, filename, content string) keyrank.Document {
	t.Helper()
	var buf bytes.Buffer
	contentType := newMultipart(&buf, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/extract/file", &buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload %s: status = %d, body = %s", filename, rec.Code, rec.Body)
	}
	var doc keyrank.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestUploadsKeyedByName(t *testing.T) {
	h := newStoreServer(t)

	first := upload(t, h, "fox.txt", foxText)
	again := upload(t, h, "dir/fox.txt", foxText)
	if first.Cached || !again.Cached {
		t.Errorf("cached: first=%v again=%v, want false then true", first.Cached, again.Cached)
	}
	if again.ID != first.ID || again.Path != first.Path {
		t.Errorf("re-upload stored as %d %q, want %d %q", again.ID, again.Path, first.ID, first.Path)
	}

	edited := upload(t, h, "fox.txt", foxText+" The red hen sees the fox.")
	if edited.Cached || edited.ID != first.ID {
		t.Errorf("new version: cached=%v id=%d, want a fresh run on %d", edited.Cached, edited.ID, first.ID)
	}

	rec := do(t, h, http.MethodGet, "/documents", "", nil)
	var resp struct {
		Documents []keyrank.Document `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Documents) != 1 {
		t.Errorf("got %d stored documents, want 1", len(resp.Documents))
	}

	rec = do(t, h, http.MethodGet, "/similar?path="+url.QueryEscape(first.Path), "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("similar on uploaded path: status = %d, body = %s", rec.Code, rec.Body)
	}
}
