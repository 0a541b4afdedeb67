// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch ingests files dropped into a watched folder.
//
// # Description
//
// A drop-folder watcher observes one directory (non-recursive) for created
// or written files and feeds them through the ingestion pipeline. Events
// for the same file are debounced so a file still being copied in is
// ingested once, after writes settle. A rate limiter caps ingestion
// throughput so a bulk drop cannot saturate the completion backend.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
)

// Ingester is the pipeline surface the watcher drives.
type Ingester interface {
	Ingest(ctx context.Context, path, docID string) (sections []string, summary string, entities []string, err error)
}

// Options configures the Watcher.
type Options struct {
	// DebounceWindow is how long a file must be quiet before ingestion.
	// Default: 2s
	DebounceWindow time.Duration

	// IngestRate caps ingestions per second. Default: 1 every 5s.
	IngestRate rate.Limit

	// Extensions whitelists file extensions (lowercase, with dot).
	// Default: .txt, .text, .md, .markdown, .rst, .log
	Extensions []string
}

// DefaultOptions returns sensible drop-folder defaults.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 2 * time.Second,
		IngestRate:     rate.Every(5 * time.Second),
		Extensions:     []string{".txt", ".text", ".md", ".markdown", ".rst", ".log"},
	}
}

// Watcher observes a drop folder and ingests new files.
type Watcher struct {
	dir      string
	ingester Ingester
	watcher  *fsnotify.Watcher
	limiter  *rate.Limiter
	debounce time.Duration
	exts     map[string]bool

	mu      sync.Mutex
	pending map[string]*time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher for dir. Call Start to begin watching.
func New(dir string, ingester Ingester, opts *Options) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[e] = true
	}

	return &Watcher{
		dir:      dir,
		ingester: ingester,
		watcher:  fw,
		limiter:  rate.NewLimiter(opts.IngestRate, 1),
		debounce: opts.DebounceWindow,
		exts:     exts,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Returns after the event loop is running; ingestion
// happens on background goroutines until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	slog.Info("Watching drop folder", "dir", w.dir)
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		for path, timer := range w.pending {
			timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.exts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Drop folder watch error", "dir", w.dir, "error", err)
		}
	}
}

// schedule (re)arms the debounce timer for path. Each new event pushes the
// ingestion back by the debounce window.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	docID := datatypes.MakeDocID(filepath.Base(path))
	slog.Info("Ingesting dropped file", "path", path, "doc_id", docID)

	if _, _, _, err := w.ingester.Ingest(ctx, path, docID); err != nil {
		slog.Error("Drop folder ingestion failed", "path", path, "doc_id", docID, "error", err)
		return
	}
	slog.Info("Dropped file ingested", "path", path, "doc_id", docID)
}
