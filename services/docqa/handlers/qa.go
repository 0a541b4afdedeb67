// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/pipeline"
)

type AskQuestionRequest struct {
	Question string `json:"question"`

	// DocID optionally scopes retrieval to start from one document's
	// sections. Retrieval still searches the whole corpus.
	DocID string `json:"doc_id"`
}

type AskQuestionResponse struct {
	Answer   string   `json:"answer"`
	Contexts []string `json:"contexts"`
	DocID    string   `json:"doc_id,omitempty"`
}

// AskQuestion answers a question grounded in retrieved corpus context.
// Grounding-validation rejections return 200 with the don't-know sentinel;
// only completion failures surface as errors.
func AskQuestion(api PipelineAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AskQuestionRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}
		requestID := uuid.NewString()
		slog.Info("QA request received", "request_id", requestID, "doc_id", req.DocID)

		answer, contexts, err := api.Answer(c.Request.Context(), req.Question, req.DocID)
		if err != nil {
			slog.Error("QA failed", "request_id", requestID, "doc_id", req.DocID, "error", err)
			if pipeline.IsQAError(err) {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, AskQuestionResponse{
			Answer:   answer,
			Contexts: contexts,
			DocID:    req.DocID,
		})
	}
}
