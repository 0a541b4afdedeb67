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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/pipeline"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/store"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/validators"
)

// fakeAPI scripts the PipelineAPI surface per test.
type fakeAPI struct {
	ingestErr  error
	answer     string
	contexts   []string
	answerErr  error
	editErr    error
	lastDocID  string
	lastPath   string
	lastEdit   string
	lastEnts   []string
	lastAnswer string
}

func (f *fakeAPI) Ingest(_ context.Context, path, docID string) ([]string, string, []string, error) {
	f.lastPath, f.lastDocID = path, docID
	if f.ingestErr != nil {
		return nil, "", nil, f.ingestErr
	}
	return []string{"s1"}, "the summary", []string{"Acme"}, nil
}

func (f *fakeAPI) Answer(_ context.Context, question, docID string) (string, []string, error) {
	f.lastAnswer, f.lastDocID = question, docID
	if f.answerErr != nil {
		return "", nil, f.answerErr
	}
	return f.answer, f.contexts, nil
}

func (f *fakeAPI) ApplyUserEdit(_ context.Context, docID, summary string, entities []string) error {
	f.lastDocID, f.lastEdit, f.lastEnts = docID, summary, entities
	return f.editErr
}

func newRouter(api PipelineAPI, st store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", HealthCheck)
	v1 := r.Group("/v1")
	v1.POST("/documents", IngestDocument(api))
	v1.GET("/documents/:docId", GetDocument(st))
	v1.GET("/documents/:docId/reviews", GetReviews(st))
	v1.PUT("/documents/:docId/summary", UpdateSummary(api))
	v1.POST("/qa", AskQuestion(api))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	w := doJSON(t, newRouter(&fakeAPI{}, store.NewMemory()), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIngestDocumentSuccess(t *testing.T) {
	api := &fakeAPI{}
	w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPost, "/v1/documents",
		IngestDocumentRequest{Path: "/data/report.txt", DocID: "d1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp IngestDocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "d1", resp.DocID)
	assert.Equal(t, "the summary", resp.Summary)
	assert.Equal(t, "/data/report.txt", api.lastPath)
}

func TestIngestDocumentDerivesDocID(t *testing.T) {
	api := &fakeAPI{}
	w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPost, "/v1/documents",
		IngestDocumentRequest{Path: "/data/report.txt"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, api.lastDocID, 16, "doc_id must be derived from the file name")
}

func TestIngestDocumentMissingPath(t *testing.T) {
	w := doJSON(t, newRouter(&fakeAPI{}, store.NewMemory()), http.MethodPost, "/v1/documents",
		IngestDocumentRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestDocumentErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"parsing error", &pipeline.ParsingError{Path: "x"}, http.StatusUnprocessableEntity},
		{"summarization error", &pipeline.SummarizationError{Reason: validators.ReasonTooShort}, http.StatusUnprocessableEntity},
		{"entity error", &pipeline.EntityExtractionError{Reason: validators.ReasonLowPresence}, http.StatusUnprocessableEntity},
		{"store failure", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{ingestErr: tt.err}
			w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPost, "/v1/documents",
				IngestDocumentRequest{Path: "/data/report.txt", DocID: "d1"})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGetDocument(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Put(context.Background(), "d1", &datatypes.Document{
		DocID: "d1", RawText: "body", Summary: "sum",
	}))
	r := newRouter(&fakeAPI{}, st)

	w := doJSON(t, r, http.MethodGet, "/v1/documents/d1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"summary":"sum"`)

	w = doJSON(t, r, http.MethodGet, "/v1/documents/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReviews(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.AppendReview(context.Background(), "d1", "bias_summary",
		json.RawMessage(`{"verdict":"pass"}`)))
	r := newRouter(&fakeAPI{}, st)

	w := doJSON(t, r, http.MethodGet, "/v1/documents/d1/reviews", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bias_summary")

	w = doJSON(t, r, http.MethodGet, "/v1/documents/missing/reviews", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateSummary(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		api := &fakeAPI{}
		w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPut, "/v1/documents/d1/summary",
			UpdateSummaryRequest{Summary: "edited", Entities: []string{"Acme"}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "d1", api.lastDocID)
		assert.Equal(t, "edited", api.lastEdit)
	})

	t.Run("validation rejection", func(t *testing.T) {
		api := &fakeAPI{editErr: &pipeline.ValidationError{Field: "summary", Reason: validators.ReasonTooShort}}
		w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPut, "/v1/documents/d1/summary",
			UpdateSummaryRequest{Summary: "x"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("missing document", func(t *testing.T) {
		api := &fakeAPI{editErr: store.ErrNotFound}
		w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPut, "/v1/documents/gone/summary",
			UpdateSummaryRequest{Summary: "whatever"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAskQuestion(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		api := &fakeAPI{answer: "forty-two", contexts: []string{"c1"}}
		w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPost, "/v1/qa",
			AskQuestionRequest{Question: "what is it?", DocID: "d1"})

		assert.Equal(t, http.StatusOK, w.Code)
		var resp AskQuestionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "forty-two", resp.Answer)
		assert.Equal(t, []string{"c1"}, resp.Contexts)
		assert.Equal(t, "d1", resp.DocID)
	})

	t.Run("dont know is 200", func(t *testing.T) {
		api := &fakeAPI{answer: pipeline.DontKnowAnswer, contexts: []string{pipeline.EmptyCorpusContext}}
		w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPost, "/v1/qa",
			AskQuestionRequest{Question: "unknowable?"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), pipeline.DontKnowAnswer)
	})

	t.Run("empty question", func(t *testing.T) {
		w := doJSON(t, newRouter(&fakeAPI{}, store.NewMemory()), http.MethodPost, "/v1/qa",
			AskQuestionRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("completion failure is 502", func(t *testing.T) {
		api := &fakeAPI{answerErr: &pipeline.QAError{Err: context.DeadlineExceeded}}
		w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPost, "/v1/qa",
			AskQuestionRequest{Question: "anything?"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("other failure is 500", func(t *testing.T) {
		api := &fakeAPI{answerErr: context.DeadlineExceeded}
		w := doJSON(t, newRouter(api, store.NewMemory()), http.MethodPost, "/v1/qa",
			AskQuestionRequest{Question: "anything?"})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
