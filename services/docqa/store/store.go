// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store owns document persistence for the docqa service.
//
// Two implementations are provided: Badger (production, on-disk) and Memory
// (tests and one-shot CLI runs). Both honor the same contract, documented on
// the Store interface. The store is treated as externally synchronized per
// document id: concurrent writers to the same id are last-writer-wins.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
)

// ErrNotFound is returned by Get when no document exists under the id.
var ErrNotFound = errors.New("store: document not found")

// IsNotFound reports whether err indicates an absent document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the persistence contract consumed by the pipeline, the rollback
// manager, and the critic coordinator.
//
// # Contract
//
//   - Get returns a deep-enough copy: mutating the returned document does
//     not affect stored state until it is written back.
//   - Put writes the generated fields of doc under id. If a record already
//     exists (including a review stub created by AppendReview before the
//     first Put), its Reviews and Disagreements are preserved; those lists
//     are append-only and survive re-ingestion.
//   - UpdateSummary overwrites summary and, when entities is non-nil, the
//     entity list. It fails with ErrNotFound for an absent document.
//   - AppendReview / AppendDisagreement append to the respective list,
//     creating a stub record when the document does not exist yet. During
//     ingestion critics run before the document's first Put, so the stub
//     path is the normal case, not an edge case.
//   - List returns all document ids, in no particular order. Used to rebuild
//     the lexical index from a persisted corpus at startup.
type Store interface {
	Get(ctx context.Context, id string) (*datatypes.Document, error)
	Put(ctx context.Context, id string, doc *datatypes.Document) error
	UpdateSummary(ctx context.Context, id, summary string, entities []string) error
	AppendReview(ctx context.Context, id, kind string, payload json.RawMessage) error
	AppendDisagreement(ctx context.Context, id, phase string, payload json.RawMessage) error
	List(ctx context.Context) ([]string, error)
}

// merge applies the Put contract: incoming generated fields, existing
// append-only lists carried over.
func merge(existing, incoming *datatypes.Document) *datatypes.Document {
	out := *incoming
	if existing != nil {
		out.Reviews = append(append([]datatypes.ReviewRecord{}, existing.Reviews...), incoming.Reviews...)
		out.Disagreements = append(append([]datatypes.DisagreementRecord{}, existing.Disagreements...), incoming.Disagreements...)
	}
	return &out
}
