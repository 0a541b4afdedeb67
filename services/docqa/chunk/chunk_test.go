// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n\n \t ", ""},
		{"single paragraph", "hello world", "hello world"},
		{"trims paragraphs", "  hello  \n\n  world  ", "hello\n\nworld"},
		{"collapses blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"drops empty paragraphs", "a\n\n   \n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestParagraphs(t *testing.T) {
	paras := Paragraphs("first one\n\nsecond one\n\n\nthird")
	require.Equal(t, []string{"first one", "second one", "third"}, paras)

	assert.Nil(t, Paragraphs("   "))
}

func TestSplitRoundTrip(t *testing.T) {
	texts := []string{
		"",
		"one paragraph only",
		"para one\n\npara two\n\npara three",
		"  leading space \n\n\n\n trailing  \n\n",
		strings.Repeat("long paragraph text ", 100) + "\n\nshort",
	}
	sizes := []int{1, 10, 50, 1200, 100000}

	for _, text := range texts {
		for _, n := range sizes {
			got := strings.Join(Split(text, n), Separator)
			assert.Equal(t, Clean(text), got, "text %q size %d", text, n)
		}
	}
}

func TestSplitRespectsBound(t *testing.T) {
	var paras []string
	for i := 0; i < 20; i++ {
		paras = append(paras, strings.Repeat("x", 100))
	}
	text := strings.Join(paras, "\n\n")

	chunks := Split(text, 450)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 450)
	}
	// 4 paragraphs of 100 chars plus 3 separators is 406 <= 450.
	assert.Len(t, chunks, 5)
}

func TestSplitCountsRunes(t *testing.T) {
	// Two 10-character paragraphs (30 bytes each) plus the separator fit a
	// 25-character bound only when the bound counts code points.
	a := strings.Repeat("文", 10)
	b := strings.Repeat("語", 10)

	chunks := Split(a+"\n\n"+b, 25)
	assert.Equal(t, []string{a + Separator + b}, chunks)
}

func TestSplitOversizedParagraphKeptWhole(t *testing.T) {
	big := strings.Repeat("y", 5000)
	chunks := Split("small\n\n"+big+"\n\nother", 100)
	require.Len(t, chunks, 3)
	assert.Equal(t, "small", chunks[0])
	assert.Equal(t, big, chunks[1])
	assert.Equal(t, "other", chunks[2])
}

func TestSplitDefaultSize(t *testing.T) {
	chunks := Split("a\n\nb", 0)
	assert.Equal(t, []string{"a\n\nb"}, chunks)
}
