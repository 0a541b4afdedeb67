// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers holds the gin HTTP handlers for the docqa service.
//
// Handlers are factories closing over narrow interfaces (PipelineAPI, the
// store) so tests can drive them with fakes instead of a full pipeline.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/pipeline"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/store"
)

// PipelineAPI is the slice of the pipeline the HTTP layer needs.
type PipelineAPI interface {
	Ingest(ctx context.Context, path, docID string) (sections []string, summary string, entities []string, err error)
	Answer(ctx context.Context, question, docID string) (answer string, contexts []string, err error)
	ApplyUserEdit(ctx context.Context, docID, summary string, entities []string) error
}

type IngestDocumentRequest struct {
	Path  string `json:"path"`
	DocID string `json:"doc_id"`
}

type IngestDocumentResponse struct {
	DocID    string   `json:"doc_id"`
	Sections []string `json:"sections"`
	Summary  string   `json:"summary"`
	Entities []string `json:"entities"`
}

type UpdateSummaryRequest struct {
	Summary  string   `json:"summary"`
	Entities []string `json:"entities"`
}

// IngestDocument runs the ingestion pipeline for a file on the service host.
// A missing doc_id is derived from the file name.
func IngestDocument(api PipelineAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IngestDocumentRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
			return
		}
		docID := req.DocID
		if docID == "" {
			docID = datatypes.MakeDocID(filepath.Base(req.Path))
		}
		requestID := uuid.NewString()
		slog.Info("Ingest request received", "request_id", requestID, "doc_id", docID, "path", req.Path)

		sections, summary, entities, err := api.Ingest(c.Request.Context(), req.Path, docID)
		if err != nil {
			slog.Error("Ingestion failed", "request_id", requestID, "doc_id", docID, "error", err)
			c.JSON(ingestErrorStatus(err), gin.H{"error": err.Error(), "doc_id": docID})
			return
		}

		slog.Info("Ingestion succeeded", "request_id", requestID, "doc_id", docID,
			"sections", len(sections), "entities", len(entities))
		c.JSON(http.StatusCreated, IngestDocumentResponse{
			DocID:    docID,
			Sections: sections,
			Summary:  summary,
			Entities: entities,
		})
	}
}

// GetDocument returns the stored record for one document.
func GetDocument(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID := c.Param("docId")
		doc, err := st.Get(c.Request.Context(), docID)
		if store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found", "doc_id": docID})
			return
		}
		if err != nil {
			slog.Error("Failed to load document", "doc_id", docID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// GetReviews returns a document's append-only review and disagreement lists.
func GetReviews(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID := c.Param("docId")
		doc, err := st.Get(c.Request.Context(), docID)
		if store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found", "doc_id": docID})
			return
		}
		if err != nil {
			slog.Error("Failed to load document reviews", "doc_id", docID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"doc_id":        docID,
			"reviews":       doc.Reviews,
			"disagreements": doc.Disagreements,
		})
	}
}

// UpdateSummary applies a user edit to summary and entities through the
// validation and rollback path.
func UpdateSummary(api PipelineAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID := c.Param("docId")
		var req UpdateSummaryRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		err := api.ApplyUserEdit(c.Request.Context(), docID, req.Summary, req.Entities)
		if err != nil {
			if pipeline.IsValidationError(err) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "doc_id": docID})
				return
			}
			if store.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found", "doc_id": docID})
				return
			}
			slog.Error("User edit failed", "doc_id", docID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "doc_id": docID})
	}
}

// ingestErrorStatus maps pipeline ingestion errors to HTTP statuses.
func ingestErrorStatus(err error) int {
	switch {
	case pipeline.IsParsingError(err),
		pipeline.IsSummarizationError(err),
		pipeline.IsEntityExtractionError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
