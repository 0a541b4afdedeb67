// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kb implements the in-process lexical knowledge base: a BM25-ranked
// inverted view over the chunks of all indexed documents.
//
// The index is an explicitly owned component: construct one with NewIndex
// and pass it to whatever needs it. There is no package-level singleton, so
// tests instantiate isolated indexes per case.
//
// # Concurrency
//
// All methods are safe for concurrent use. Index replaces a document's chunk
// set under the write lock, so a concurrent Search never observes a
// partially replaced set.
package kb

import (
	"errors"
	"math"
	"sort"
	"sync"
)

// BM25 parameters. Standard Okapi defaults tuned for short prose chunks.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// ErrEmptyCorpus is returned by Search when nothing has been indexed.
// It is a signal, not a failure; callers typically degrade to an explicit
// "empty knowledge base" context.
var ErrEmptyCorpus = errors.New("kb: no chunks indexed")

// ChunkRef identifies one indexed chunk by owning document and position.
type ChunkRef struct {
	DocID   string `json:"doc_id"`
	Ordinal int    `json:"ordinal"`
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Ref   ChunkRef `json:"ref"`
	Text  string   `json:"text"`
	Score float64  `json:"score"`
}

// Index is the lexical knowledge base.
type Index struct {
	mu sync.RWMutex

	// docs maps document id to its chunk texts and pre-tokenized forms.
	docs map[string]*docEntry

	// order lists document ids by first-index time. Together with chunk
	// ordinals it defines the global insertion order used for
	// deterministic tie-breaking.
	order []string

	tokenizer TokenizerMode
}

type docEntry struct {
	chunks [][]string // tokenized
	texts  []string
}

// NewIndex returns an empty index using the unicode tokenizer.
func NewIndex() *Index {
	return NewIndexWithTokenizer(TokenizerUnicode)
}

// NewIndexWithTokenizer returns an empty index using the given tokenizer
// mode for both chunks and queries.
func NewIndexWithTokenizer(mode TokenizerMode) *Index {
	return &Index{docs: make(map[string]*docEntry), tokenizer: mode}
}

// Tokenizer reports the tokenizer mode the index was built with.
func (ix *Index) Tokenizer() TokenizerMode { return ix.tokenizer }

// Index sets the chunk set owned by docID, replacing any prior set.
//
// # Description
//
// Re-indexing the same id is a full replacement: none of the previous
// chunks remain searchable. A document re-indexed with an empty chunk set
// is removed entirely. The document keeps its original position in the
// insertion order, so re-indexing does not perturb tie-breaking for other
// documents.
func (ix *Index) Index(docID string, chunks []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(chunks) == 0 {
		if _, ok := ix.docs[docID]; ok {
			delete(ix.docs, docID)
			for i, id := range ix.order {
				if id == docID {
					ix.order = append(ix.order[:i], ix.order[i+1:]...)
					break
				}
			}
		}
		return
	}

	entry := &docEntry{
		chunks: make([][]string, len(chunks)),
		texts:  make([]string, len(chunks)),
	}
	for i, c := range chunks {
		entry.chunks[i] = tokenize(c, ix.tokenizer)
		entry.texts[i] = c
	}

	if _, exists := ix.docs[docID]; !exists {
		ix.order = append(ix.order, docID)
	}
	ix.docs[docID] = entry
}

// Size returns the total number of indexed chunks across all documents.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, e := range ix.docs {
		n += len(e.texts)
	}
	return n
}

// Search ranks every indexed chunk against query by BM25 and returns the
// top k hits.
//
// # Description
//
// Scores sum, over the query terms, IDF(t) * f*(k1+1) / (f + k1*(1-b+b*L/avgL))
// with k1=1.5, b=0.75, f the term frequency in the chunk, L the chunk token
// length, and avgL the mean chunk length. IDF is ln((N-df+0.5)/(df+0.5)+1)
// over N chunks. Ties break toward the earliest-indexed chunk, so results
// are deterministic for a given index state.
//
// # Outputs
//
//   - Fewer than topK results when fewer chunks exist.
//   - ErrEmptyCorpus when nothing is indexed.
//
// A query with no recognizable tokens returns the first topK chunks in
// insertion order with zero scores rather than erroring.
func (ix *Index) Search(query string, topK int) ([]SearchResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.docs) == 0 {
		return nil, ErrEmptyCorpus
	}
	if topK < 1 {
		topK = 1
	}

	// Flatten the corpus in insertion order.
	var corpus [][]string
	var results []SearchResult
	for _, id := range ix.order {
		entry := ix.docs[id]
		for i, toks := range entry.chunks {
			corpus = append(corpus, toks)
			results = append(results, SearchResult{
				Ref:  ChunkRef{DocID: id, Ordinal: i},
				Text: entry.texts[i],
			})
		}
	}

	totalLen := 0
	df := make(map[string]int)
	for _, toks := range corpus {
		totalLen += len(toks)
		seen := make(map[string]struct{}, len(toks))
		for _, t := range toks {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}
	n := float64(len(corpus))
	avgLen := float64(totalLen) / n

	queryTerms := tokenize(query, ix.tokenizer)
	for i, toks := range corpus {
		tf := make(map[string]int, len(toks))
		for _, t := range toks {
			tf[t]++
		}
		length := float64(len(toks))
		var score float64
		for _, q := range queryTerms {
			f := float64(tf[q])
			if f == 0 {
				continue
			}
			idf := math.Log((n-float64(df[q])+0.5)/(float64(df[q])+0.5) + 1)
			denom := f + bm25K1*(1-bm25B+bm25B*length/avgLen)
			score += idf * f * (bm25K1 + 1) / denom
		}
		results[i].Score = score
	}

	// Stable sort keeps insertion order on equal scores.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}
