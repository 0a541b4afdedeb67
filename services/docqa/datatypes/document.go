// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the document model and wire types shared by the
// docqa service packages.
//
// The types here are deliberately dumb data carriers. Behavior lives in the
// pipeline, store, and critic packages; datatypes only owns identity
// generation and parsing of critic output.
package datatypes

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Document is the persisted record for one ingested document.
//
// # Description
//
// RawText is immutable once set at ingestion. Summary and Entities are the
// only fields mutated after creation, either by re-ingestion or by the
// validated user-edit path. Reviews and Disagreements are append-only and
// are never rewritten or deleted by this service.
//
// # Ownership
//
// Documents are owned by the Store. Callers must not hold a *Document across
// operations; every read re-fetches by id.
type Document struct {
	DocID    string   `json:"doc_id"`
	RawText  string   `json:"raw_text"`
	Sections []string `json:"sections"`
	Summary  string   `json:"summary"`
	Entities []string `json:"entities"`

	// Reviews holds advisory critic verdicts and pipeline events
	// (kb_index_error, qa_validator_note, policy_scan). Append-only.
	Reviews []ReviewRecord `json:"reviews,omitempty"`

	// Disagreements holds arbitration results recorded when two critics
	// diverged on the same artifact. Append-only.
	Disagreements []DisagreementRecord `json:"disagreements,omitempty"`
}

// ReviewRecord is one advisory verdict or pipeline event attached to a
// document. Kind identifies the reviewer or event source (e.g. "bias_summary",
// "perf_qa", "kb_index_error"); Payload is the structured verdict as produced
// by ParseVerdict or by the pipeline.
type ReviewRecord struct {
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// DisagreementRecord is one arbitration result, tagged with the pipeline
// phase that produced it ("summary_review" or "qa_review").
type DisagreementRecord struct {
	Phase     string          `json:"phase"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// NewReviewRecord stamps a review payload with the current wall clock.
func NewReviewRecord(kind string, payload json.RawMessage) ReviewRecord {
	return ReviewRecord{Kind: kind, Payload: payload, Timestamp: time.Now().UnixMilli()}
}

// NewDisagreementRecord stamps an arbitration payload with the current wall clock.
func NewDisagreementRecord(phase string, payload json.RawMessage) DisagreementRecord {
	return DisagreementRecord{Phase: phase, Payload: payload, Timestamp: time.Now().UnixMilli()}
}

// Snapshot captures the mutable fields of a document immediately before a
// mutating write. It is used at most once, to restore those fields if the
// write fails, and is never persisted.
type Snapshot struct {
	DocID    string
	Summary  string
	Entities []string
}

// MakeDocID derives an opaque document id from a human-readable name.
//
// # Description
//
// The id is the first 16 hex characters of sha1(name + nanosecond
// timestamp). The timestamp component makes collisions negligible for the
// corpus lifetime even when the same file is ingested repeatedly.
func MakeDocID(name string) string {
	base := fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
	sum := sha1.Sum([]byte(base))
	return hex.EncodeToString(sum[:])[:16]
}
