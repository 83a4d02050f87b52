package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/keyrank"
	"github.com/brunobiangulo/keyrank/parser"
)

// extractor runs every document of a scan and prints the results in path
// order.
type extractor struct {
	engine   keyrank.Engine
	opts     []keyrank.RunOption
	out      io.Writer
	parallel int
	jsonOut  bool

	mu sync.Mutex // serializes scans started by the watch schedule
}

type result struct {
	doc *keyrank.Document
	err error
}

// collectFiles returns target itself, or the supported files below it in
// lexical order. Files without an extension count as plain text. Hidden
// files and directories are skipped.
func collectFiles(target string, formats *parser.Registry) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != target && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, err := formats.ForPath(path); err != nil {
			slog.Info("skipping unsupported file", "path", path, "format", parser.Format(path))
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// scan extracts every file under target. Failures of single documents are
// reported and counted; the scan fails only when every document failed.
func (x *extractor) scan(ctx context.Context, target string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	start := time.Now()
	files, err := collectFiles(target, parser.NewRegistry())
	if err != nil {
		return err
	}

	results := make([]result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.parallel)
	for i, path := range files {
		g.Go(func() error {
			doc, err := x.engine.ExtractFile(gctx, path, x.opts...)
			results[i] = result{doc: doc, err: err}
			return nil
		})
	}
	g.Wait()

	var failed, cached int
	for i, res := range results {
		if res.err != nil {
			failed++
			slog.Error("extraction failed", "path", files[i], "error", res.err)
			continue
		}
		if res.doc.Cached {
			cached++
		}
		if err := x.print(files[i], res.doc, len(files) > 1); err != nil {
			return err
		}
	}

	slog.Info("scan complete", "target", target, "documents", len(files),
		"cached", cached, "failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if len(files) > 0 && failed == len(files) {
		if len(files) == 1 {
			return results[0].err
		}
		return fmt.Errorf("all %d documents failed", failed)
	}
	return ctx.Err()
}

func (x *extractor) print(path string, doc *keyrank.Document, header bool) error {
	if x.jsonOut {
		return json.NewEncoder(x.out).Encode(doc)
	}
	if header {
		if _, err := fmt.Fprintf(x.out, "# %s\n", path); err != nil {
			return err
		}
	}
	for _, kp := range doc.Keyphrases {
		if _, err := fmt.Fprintln(x.out, kp); err != nil {
			return err
		}
	}
	return nil
}

// watch scans once, then again on every tick of the cron schedule until ctx is
// done. Unchanged documents come from the result cache.
func watch(ctx context.Context, schedule string, x *extractor, target string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := x.scan(ctx, target); err != nil && ctx.Err() == nil {
			slog.Error("scheduled scan failed", "target", target, "error", err)
		}
	}); err != nil {
		return fmt.Errorf("parsing watch schedule %q: %w", schedule, err)
	}

	if err := x.scan(ctx, target); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial scan failed", "target", target, "error", err)
	}

	c.Start()
	slog.Info("watching", "target", target, "schedule", schedule)
	<-ctx.Done()

	// Wait for a running scan to finish.
	<-c.Stop().Done()
	return nil
}
