// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kb

import (
	"strings"
	"unicode"
)

// TokenizerMode selects how chunk and query text is tokenized.
//
// Both modes are deterministic and total: they never error and return no
// tokens for empty or non-alphanumeric input rather than crashing.
type TokenizerMode string

const (
	// TokenizerUnicode splits on any rune that is not a letter or digit
	// and lowercases the result. This is the primary mode.
	TokenizerUnicode TokenizerMode = "unicode"

	// TokenizerWhitespace splits on whitespace only, lowercased. This is
	// the documented fallback when punctuation-aware splitting is not
	// wanted (e.g. corpora where symbols carry meaning).
	TokenizerWhitespace TokenizerMode = "whitespace"
)

// tokenize lowercases and splits text per the given mode.
func tokenize(text string, mode TokenizerMode) []string {
	lower := strings.ToLower(text)
	if mode == TokenizerWhitespace {
		return strings.Fields(lower)
	}
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
