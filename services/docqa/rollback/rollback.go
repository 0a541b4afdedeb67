// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rollback protects a document's user-visible fields across a
// mutating write: snapshot the current summary and entities, attempt the
// write, restore the snapshot if the write fails.
//
// Rollback is best-effort and non-transactional. It is only ever invoked
// after an actual failed write attempt; a pure validation rejection is a
// no-write path and discards the snapshot unused. If the store write issued
// by Rollback itself fails, that error propagates to the caller; there is
// no retry.
package rollback

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/store"
)

// TakeSnapshot captures the current summary and entity list of the document.
//
// Returns nil (and no error) when the document does not exist: there is
// nothing to restore for a brand-new document, and callers treat a nil
// snapshot as "skip rollback".
func TakeSnapshot(ctx context.Context, st store.Store, docID string) (*datatypes.Snapshot, error) {
	doc, err := st.Get(ctx, docID)
	if store.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot document %s: %w", docID, err)
	}
	return &datatypes.Snapshot{
		DocID:    docID,
		Summary:  doc.Summary,
		Entities: append([]string{}, doc.Entities...),
	}, nil
}

// Rollback reissues a write restoring exactly the snapshotted fields,
// discarding whatever the failed operation partially wrote.
func Rollback(ctx context.Context, st store.Store, snap *datatypes.Snapshot) error {
	if snap == nil {
		return nil
	}
	if err := st.UpdateSummary(ctx, snap.DocID, snap.Summary, snap.Entities); err != nil {
		return fmt.Errorf("rollback write for document %s failed: %w", snap.DocID, err)
	}
	return nil
}
