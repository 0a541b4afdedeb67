// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
)

// Memory is an in-memory Store used by tests and one-shot CLI invocations.
// Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*datatypes.Document
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*datatypes.Document)}
}

var _ Store = (*Memory)(nil)

// Get implements Store. The returned document is a copy.
func (m *Memory) Get(_ context.Context, id string) (*datatypes.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(doc), nil
}

// Put implements Store, preserving existing append-only lists.
func (m *Memory) Put(_ context.Context, id string, doc *datatypes.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = merge(m.docs[id], copyDoc(doc))
	return nil
}

// UpdateSummary implements Store.
func (m *Memory) UpdateSummary(_ context.Context, id, summary string, entities []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.Summary = summary
	if entities != nil {
		doc.Entities = append([]string{}, entities...)
	}
	return nil
}

// AppendReview implements Store, creating a stub record when needed.
func (m *Memory) AppendReview(_ context.Context, id, kind string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.stub(id)
	doc.Reviews = append(doc.Reviews, datatypes.NewReviewRecord(kind, payload))
	return nil
}

// AppendDisagreement implements Store, creating a stub record when needed.
func (m *Memory) AppendDisagreement(_ context.Context, id, phase string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.stub(id)
	doc.Disagreements = append(doc.Disagreements, datatypes.NewDisagreementRecord(phase, payload))
	return nil
}

// List implements Store.
func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) stub(id string) *datatypes.Document {
	doc, ok := m.docs[id]
	if !ok {
		doc = &datatypes.Document{DocID: id}
		m.docs[id] = doc
	}
	return doc
}

func copyDoc(doc *datatypes.Document) *datatypes.Document {
	out := *doc
	out.Sections = append([]string{}, doc.Sections...)
	out.Entities = append([]string{}, doc.Entities...)
	out.Reviews = append([]datatypes.ReviewRecord{}, doc.Reviews...)
	out.Disagreements = append([]datatypes.DisagreementRecord{}, doc.Disagreements...)
	return &out
}
