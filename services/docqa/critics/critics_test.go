// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package critics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/store"
	"github.com/AleutianAI/AleutianDocQA/services/llm"
)

// scriptedLLM answers each call by matching a substring of the prompt.
type scriptedLLM struct {
	mu sync.Mutex

	// responses maps a prompt substring to the canned reply. First match
	// wins; unmatched prompts get a generic pass.
	responses map[string]string

	// failOn lists prompt substrings whose calls should error.
	failOn []string

	calls []string
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, prompt)
	for _, f := range s.failOn {
		if strings.Contains(prompt, f) {
			return "", errors.New("backend unavailable")
		}
	}
	for sub, resp := range s.responses {
		if strings.Contains(prompt, sub) {
			return resp, nil
		}
	}
	return `{"verdict":"pass"}`, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

var window = StageWindow{Start: time.Now().Add(-time.Second), End: time.Now()}

func reviewKinds(t *testing.T, st store.Store, docID string) []string {
	t.Helper()
	doc, err := st.Get(context.Background(), docID)
	require.NoError(t, err)
	kinds := make([]string, 0, len(doc.Reviews))
	for _, r := range doc.Reviews {
		kinds = append(kinds, r.Kind)
	}
	return kinds
}

func TestReviewSummaryPersistsAllVerdicts(t *testing.T) {
	st := store.NewMemory()
	mock := &scriptedLLM{}
	c := NewCoordinator(mock, st, time.Minute)

	c.ReviewSummary(context.Background(), "d1", "the summary", "the source text", window, window)

	kinds := reviewKinds(t, st, "d1")
	assert.ElementsMatch(t, []string{
		KindBiasSummary, KindCompletenessSummary, KindSecuritySummary,
		KindPerfSummarization, KindPerfEntities,
	}, kinds)

	doc, err := st.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Empty(t, doc.Disagreements, "agreement must not produce an arbitration record")
}

func TestReviewSummaryDivergenceArbitrates(t *testing.T) {
	for name, responses := range map[string]map[string]string{
		"bias fails": {
			"bias and unsupported claims": `{"verdict":"fail","bias_detected":true}`,
		},
		"completeness fails": {
			"completeness and distortions": `{"verdict":"fail","missing_points":["x"]}`,
		},
	} {
		t.Run(name, func(t *testing.T) {
			st := store.NewMemory()
			mock := &scriptedLLM{responses: responses}
			c := NewCoordinator(mock, st, time.Minute)

			c.ReviewSummary(context.Background(), "d1", "summary", "source", window, window)

			doc, err := st.Get(context.Background(), "d1")
			require.NoError(t, err)
			require.Len(t, doc.Disagreements, 1)
			assert.Equal(t, PhaseSummaryReview, doc.Disagreements[0].Phase)
		})
	}
}

func TestReviewSummaryBothFailNoArbitration(t *testing.T) {
	st := store.NewMemory()
	mock := &scriptedLLM{responses: map[string]string{
		"bias and unsupported claims":  `{"verdict":"fail"}`,
		"completeness and distortions": `{"verdict":"fail"}`,
	}}
	c := NewCoordinator(mock, st, time.Minute)

	c.ReviewSummary(context.Background(), "d1", "summary", "source", window, window)

	doc, err := st.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Empty(t, doc.Disagreements)
}

func TestCriticFailureIsSwallowed(t *testing.T) {
	st := store.NewMemory()
	mock := &scriptedLLM{failOn: []string{"bias and unsupported claims"}}
	c := NewCoordinator(mock, st, time.Minute)

	// Must not panic or error; the failed critic simply records nothing.
	c.ReviewSummary(context.Background(), "d1", "summary", "source", window, window)

	kinds := reviewKinds(t, st, "d1")
	assert.NotContains(t, kinds, KindBiasSummary)
	assert.Contains(t, kinds, KindCompletenessSummary)

	doc, err := st.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Empty(t, doc.Disagreements, "a failed critic cannot diverge")
}

func TestMalformedCriticOutputPersistedAsFail(t *testing.T) {
	st := store.NewMemory()
	mock := &scriptedLLM{responses: map[string]string{
		"sensitive-data leakage": "I think it looks fine!",
	}}
	c := NewCoordinator(mock, st, time.Minute)

	c.ReviewSummary(context.Background(), "d1", "summary", "source", window, window)

	doc, err := st.Get(context.Background(), "d1")
	require.NoError(t, err)
	for _, r := range doc.Reviews {
		if r.Kind == KindSecuritySummary {
			assert.Contains(t, string(r.Payload), `"parse_error":true`)
			return
		}
	}
	t.Fatal("security review not persisted")
}

func TestReviewAnswerPersistsQAKinds(t *testing.T) {
	st := store.NewMemory()
	mock := &scriptedLLM{}
	c := NewCoordinator(mock, st, time.Minute)

	c.ReviewAnswer(context.Background(), "d1", "the answer", "joined context", window)

	kinds := reviewKinds(t, st, "d1")
	assert.ElementsMatch(t, []string{
		KindBiasQA, KindCompletenessQA, KindSecurityQA, KindPerfQA,
	}, kinds)
}

func TestReviewAnswerWithoutDocIDPersistsNothing(t *testing.T) {
	st := store.NewMemory()
	mock := &scriptedLLM{responses: map[string]string{
		"bias and unsupported claims": `{"verdict":"fail"}`,
	}}
	c := NewCoordinator(mock, st, time.Minute)

	c.ReviewAnswer(context.Background(), "", "answer", "context", window)

	// The critics still ran (bias, completeness, security, arbiter, perf).
	assert.Equal(t, 5, mock.callCount())

	ids, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPerfNoteSkippedWithoutWindow(t *testing.T) {
	st := store.NewMemory()
	mock := &scriptedLLM{}
	c := NewCoordinator(mock, st, time.Minute)

	c.ReviewSummary(context.Background(), "d1", "summary", "source", StageWindow{}, StageWindow{})

	kinds := reviewKinds(t, st, "d1")
	assert.NotContains(t, kinds, KindPerfSummarization)
	assert.NotContains(t, kinds, KindPerfEntities)
}

func TestNewCoordinatorDefaultBudget(t *testing.T) {
	c := NewCoordinator(&scriptedLLM{}, store.NewMemory(), 0)
	assert.Equal(t, defaultBudget, c.budget)
}

func TestPromptTruncationKeepsRuneBoundary(t *testing.T) {
	got := head(strings.Repeat("値", 10), 7)
	assert.Equal(t, strings.Repeat("値", 2), got)
	assert.True(t, utf8.ValidString(got))
}

func TestVerdictHelpers(t *testing.T) {
	pass := datatypes.ParseVerdict(`{"verdict":"pass"}`)
	fail := datatypes.ParseVerdict(`{"verdict":"fail"}`)
	assert.True(t, pass.Passed())
	assert.True(t, fail.Failed())
}
