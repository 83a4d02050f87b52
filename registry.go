package keyrank

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brunobiangulo/keyrank/lang"
	"github.com/brunobiangulo/keyrank/wordnet"
)

// capabilities are the read-only, per-language resources shared by every
// engine in the process.
type capabilities struct {
	lang lang.Language
	dict *wordnet.Dict // nil when no dictionary is configured
}

type registryEntry struct {
	once sync.Once
	caps *capabilities
	err  error
}

// registry loads capabilities lazily, once per language code and sense
// source. A failed load is cached like a successful one.
var registry = struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}{entries: make(map[string]*registryEntry)}

// loadCapabilities returns the shared capabilities for code, loading them
// on first use.
func loadCapabilities(code, wordnetDir string) (*capabilities, error) {
	key := code + "\x00" + wordnetDir

	registry.mu.Lock()
	entry, ok := registry.entries[key]
	if !ok {
		entry = &registryEntry{}
		registry.entries[key] = entry
	}
	registry.mu.Unlock()

	entry.once.Do(func() {
		start := time.Now()
		entry.caps, entry.err = buildCapabilities(code, wordnetDir)
		if entry.err != nil {
			slog.Error("registry: loading capabilities failed", "language", code, "error", entry.err)
			return
		}
		slog.Info("registry: capabilities loaded",
			"language", code, "semantic", entry.caps.dict != nil,
			"elapsed", time.Since(start).Round(time.Millisecond))
	})
	return entry.caps, entry.err
}

func buildCapabilities(code, wordnetDir string) (*capabilities, error) {
	l, err := lang.New(code)
	if err != nil {
		if errors.Is(err, lang.ErrUnsupportedLanguage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceLoad, code, err)
	}

	caps := &capabilities{lang: l}
	// Sense dictionaries are English only.
	if wordnetDir != "" && l.Code() == "en" {
		dict, err := wordnet.Load(wordnetDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrResourceLoad, code, err)
		}
		caps.dict = dict
	}
	return caps, nil
}
