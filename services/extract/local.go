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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// plainTextExts are the formats the local extractor reads directly.
var plainTextExts = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
	".rst":      true,
	".log":      true,
}

// Local reads plain-text files straight from disk. It never attempts binary
// formats; point those at the HTTP extractor instead.
type Local struct{}

var _ Extractor = Local{}

// Extract implements Extractor.
func (Local) Extract(_ context.Context, path string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !plainTextExts[ext] {
		return nil, fmt.Errorf("unsupported file type %q for local extraction: %s", ext, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	slog.Debug("Extracted file locally", "path", path, "bytes", len(data))
	return &Result{RawText: string(data)}, nil
}
