// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chunk splits document text into bounded, paragraph-aligned chunks
// for indexing and retrieval.
//
// The split is lossless with respect to the cleaned form of the text:
// joining the chunks with Separator reproduces Clean(text) exactly. This is
// the invariant the knowledge base relies on, so that retrieved chunks are
// verbatim slices of the source.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Separator joins paragraphs inside a chunk and chunks back into the
// cleaned source text.
const Separator = "\n\n"

// paragraphBreak matches one or more blank lines between paragraphs.
var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Clean normalizes text to its paragraph form: paragraphs are trimmed
// non-empty blocks, joined by Separator. Blank-line runs collapse; leading
// and trailing whitespace is dropped. Clean of all-whitespace input is "".
func Clean(text string) string {
	return strings.Join(Paragraphs(text), Separator)
}

// Paragraphs returns the trimmed non-empty paragraphs of text in order.
func Paragraphs(text string) []string {
	var paras []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// Split packs paragraphs into chunks of at most maxChars characters,
// counted as Unicode code points.
//
// # Description
//
// Paragraphs are accumulated greedily in order; a paragraph that would push
// the current chunk past maxChars starts a new chunk. A single paragraph
// longer than maxChars is kept whole as an oversized chunk; the bound is
// paragraph-granular, because cutting inside a paragraph would break the
// round-trip law below.
//
// # Invariant
//
// For any text: strings.Join(Split(text, n), Separator) == Clean(text).
// All-whitespace input yields no chunks.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = 1500
	}
	const sepRunes = len(Separator)

	var chunks []string
	var buf string
	bufRunes := 0
	for _, p := range Paragraphs(text) {
		pRunes := utf8.RuneCountInString(p)
		switch {
		case buf == "":
			buf, bufRunes = p, pRunes
		case bufRunes+sepRunes+pRunes <= maxChars:
			buf += Separator + p
			bufRunes += sepRunes + pRunes
		default:
			chunks = append(chunks, buf)
			buf, bufRunes = p, pRunes
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}
