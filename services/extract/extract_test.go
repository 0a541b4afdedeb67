// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExtractPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n\nworld"), 0600))

	res, err := Local{}.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n\nworld", res.RawText)
	assert.Empty(t, res.Sections)
}

func TestLocalExtractCaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "NOTES.MD")
	require.NoError(t, os.WriteFile(path, []byte("# notes"), 0600))

	res, err := Local{}.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# notes", res.RawText)
}

func TestLocalExtractRejectsBinaryFormats(t *testing.T) {
	for _, name := range []string{"report.pdf", "deck.pptx", "archive", "image.png"} {
		_, err := Local{}.Extract(context.Background(), filepath.Join(t.TempDir(), name))
		assert.Error(t, err, "extension of %s must be rejected", name)
	}
}

func TestLocalExtractMissingFile(t *testing.T) {
	_, err := Local{}.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestHTTPClientExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"raw_text":"extracted body","sections":["s1","s2"]}`))
	}))
	defer srv.Close()

	res, err := NewHTTPClient(srv.URL).Extract(context.Background(), "/data/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "extracted body", res.RawText)
	assert.Equal(t, []string{"s1", "s2"}, res.Sections)
}

func TestHTTPClientExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).Extract(context.Background(), "/data/report.pdf")
	assert.Error(t, err)
}
