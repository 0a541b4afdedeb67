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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.docqa.extract")

// HTTPClient calls an extractor sidecar over HTTP. The sidecar owns the
// heavy parsers (PDF, DOCX, HTML) and returns raw text plus sections.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Extractor = (*HTTPClient)(nil)

type extractRequest struct {
	Path string `json:"path"`
}

// NewHTTPClient builds a client for the extractor sidecar at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Extract implements Extractor by POSTing the file path to the sidecar's
// /v1/extract endpoint.
func (c *HTTPClient) Extract(ctx context.Context, path string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "HTTPClient.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("extract.path", path))

	body, err := json.Marshal(extractRequest{Path: path})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to marshal extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/extract", bytes.NewBuffer(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Extractor call failed", "path", path, "error", err)
		return nil, fmt.Errorf("extractor call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read extractor response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Extractor returned an error", "status_code", resp.StatusCode, "response", string(respBody))
		return nil, fmt.Errorf("extractor failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to decode extractor response: %w", err)
	}
	return &result, nil
}
