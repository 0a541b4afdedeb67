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
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
	badger "github.com/dgraph-io/badger/v4"
)

// docKeyPrefix namespaces document records inside the Badger keyspace.
const docKeyPrefix = "doc:"

// Badger is the on-disk Store backed by a BadgerDB keyspace. Documents are
// stored as JSON values under "doc:<id>"; every mutation is a
// read-modify-write inside one Badger transaction, which gives us the
// per-id atomicity the contract requires without a separate lock.
type Badger struct {
	db *badger.DB
}

var _ Store = (*Badger)(nil)

// OpenBadger opens (or creates) the document store at dir.
//
// The caller owns the returned store and must Close it. Badger's own
// logger is replaced with a quiet one; operational logging stays on slog.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store at %s: %w", dir, err)
	}
	slog.Info("Opened Badger document store", "dir", dir)
	return &Badger{db: db}, nil
}

// Close releases the underlying Badger database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Get implements Store.
func (b *Badger) Get(_ context.Context, id string) (*datatypes.Document, error) {
	var doc datatypes.Document
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return &doc, nil
}

// Put implements Store, preserving existing append-only lists.
func (b *Badger) Put(_ context.Context, id string, doc *datatypes.Document) error {
	return b.db.Update(func(txn *badger.Txn) error {
		existing, err := readDoc(txn, id)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return writeDoc(txn, id, merge(existing, doc))
	})
}

// UpdateSummary implements Store.
func (b *Badger) UpdateSummary(_ context.Context, id, summary string, entities []string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		doc, err := readDoc(txn, id)
		if err != nil {
			return err
		}
		doc.Summary = summary
		if entities != nil {
			doc.Entities = entities
		}
		return writeDoc(txn, id, doc)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

// AppendReview implements Store, creating a stub record when needed.
func (b *Badger) AppendReview(_ context.Context, id, kind string, payload json.RawMessage) error {
	return b.db.Update(func(txn *badger.Txn) error {
		doc, err := readOrStub(txn, id)
		if err != nil {
			return err
		}
		doc.Reviews = append(doc.Reviews, datatypes.NewReviewRecord(kind, payload))
		return writeDoc(txn, id, doc)
	})
}

// AppendDisagreement implements Store, creating a stub record when needed.
func (b *Badger) AppendDisagreement(_ context.Context, id, phase string, payload json.RawMessage) error {
	return b.db.Update(func(txn *badger.Txn) error {
		doc, err := readOrStub(txn, id)
		if err != nil {
			return err
		}
		doc.Disagreements = append(doc.Disagreements, datatypes.NewDisagreementRecord(phase, payload))
		return writeDoc(txn, id, doc)
	})
}

// List implements Store using a key-only prefix scan.
func (b *Badger) List(_ context.Context) ([]string, error) {
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(docKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(docKeyPrefix):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return ids, nil
}

func docKey(id string) []byte {
	return []byte(docKeyPrefix + id)
}

func readDoc(txn *badger.Txn, id string) (*datatypes.Document, error) {
	item, err := txn.Get(docKey(id))
	if err != nil {
		return nil, err
	}
	var doc datatypes.Document
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return &doc, nil
}

func readOrStub(txn *badger.Txn, id string) (*datatypes.Document, error) {
	doc, err := readDoc(txn, id)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &datatypes.Document{DocID: id}, nil
	}
	return doc, err
}

func writeDoc(txn *badger.Txn, id string, doc *datatypes.Document) error {
	val, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	return txn.Set(docKey(id), val)
}
