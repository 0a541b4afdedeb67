// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract turns files on disk into raw text plus optional sections.
//
// Two implementations exist: a local reader for plain-text formats and an
// HTTP client for a sidecar that handles PDFs and office formats. The
// pipeline treats both through the Extractor interface and supplies its own
// section fallback when an extractor returns none.
package extract

import "context"

// Result is the extracted content of one file.
type Result struct {
	// RawText is the full plain text of the document. The pipeline treats
	// an all-whitespace RawText as a parse failure.
	RawText string `json:"raw_text"`

	// Sections are logical segments (headings, titles) in document order.
	// May be empty; callers derive sections by chunking when it is.
	Sections []string `json:"sections"`
}

// Extractor produces the raw content of a document file.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}
