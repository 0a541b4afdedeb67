// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package critics runs the advisory reviewer fan-out over just-accepted
// artifacts (summaries and answers).
//
// # Description
//
// The Coordinator issues a fixed, ordered set of reviewer calls (bias,
// completeness, security, performance) against the completion backend and
// persists every verdict as a ReviewRecord. When the bias and completeness
// verdicts diverge (one pass, the other fail) it issues a fifth arbitration
// call and persists the result as a DisagreementRecord tagged with the
// pipeline phase.
//
// # Limitations
//
// Every critic failure is caught and logged individually. The Coordinator
// never returns an error to the primary pipeline and never blocks it beyond
// its own time budget, which callers must keep strictly shorter than the
// stage timeout of the primary path.
package critics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/observability"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/store"
	"github.com/AleutianAI/AleutianDocQA/services/llm"
)

var tracer = otel.Tracer("aleutian.docqa.critics")

// Review kinds attached to documents. Stable strings; consumers filter on them.
const (
	KindBiasSummary         = "bias_summary"
	KindCompletenessSummary = "completeness_summary"
	KindSecuritySummary     = "security_summary"
	KindPerfSummarization   = "perf_summarization"
	KindPerfEntities        = "perf_entity_extraction"
	KindBiasQA              = "bias_qa"
	KindCompletenessQA      = "completeness_qa"
	KindSecurityQA          = "security_qa"
	KindPerfQA              = "perf_qa"
)

// Disagreement phase tags.
const (
	PhaseSummaryReview = "summary_review"
	PhaseQAReview      = "qa_review"
)

const (
	summaryBiasContextMax = 5000
	summaryCompContextMax = 8000
	qaContextMax          = 8000
	defaultBudget         = 45 * time.Second
)

// StageWindow carries the wall-clock bounds of a primary-pipeline stage so
// the performance analyst can report latency for it.
type StageWindow struct {
	Start time.Time
	End   time.Time
}

// Coordinator fans out the advisory reviewers. Safe for concurrent use.
type Coordinator struct {
	llm     llm.LLMClient
	store   store.Store
	budget  time.Duration
	metrics *observability.Metrics
}

// NewCoordinator builds a Coordinator with the given time budget for one
// full review pass. A non-positive budget falls back to 45s.
func NewCoordinator(client llm.LLMClient, st store.Store, budget time.Duration) *Coordinator {
	if budget <= 0 {
		budget = defaultBudget
	}
	return &Coordinator{
		llm:     client,
		store:   st,
		budget:  budget,
		metrics: observability.GetMetrics(),
	}
}

// ReviewSummary runs the summary-phase critics for a freshly ingested
// document: bias and completeness (concurrently), then security, then the
// divergence check, then performance notes for the summarization and entity
// extraction stages. Never returns an error; all failures are advisory.
func (c *Coordinator) ReviewSummary(ctx context.Context, docID, summary, rawText string,
	summarize, entities StageWindow) {

	ctx, span := tracer.Start(ctx, "Coordinator.ReviewSummary")
	defer span.End()
	span.SetAttributes(attribute.String("doc.id", docID))

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	bias, comp := c.reviewPair(ctx, docID,
		reviewCall{
			kind:   KindBiasSummary,
			prompt: biasReviewPrompt,
			task: "Review this output for bias and unsupported claims.\n\nOUTPUT:\n" +
				summary + "\n\nCONTEXT (optional):\n" + head(rawText, summaryBiasContextMax),
		},
		reviewCall{
			kind:   KindCompletenessSummary,
			prompt: completenessReviewPrompt,
			task: "Review for completeness and distortions vs context.\n\nOUTPUT:\n" +
				summary + "\n\nCONTEXT:\n" + head(rawText, summaryCompContextMax),
		})

	c.runOne(ctx, docID, reviewCall{
		kind:   KindSecuritySummary,
		prompt: securityReviewPrompt,
		task:   "Check for sensitive-data leakage in the following text:\n" + summary,
	})

	c.arbitrate(ctx, docID, PhaseSummaryReview, bias, comp)

	c.perfNote(ctx, docID, KindPerfSummarization, "summarization", summarize, 0)
	c.perfNote(ctx, docID, KindPerfEntities, "entity_extraction", entities, 0)
}

// ReviewAnswer runs the QA-phase critics over an answer. Verdicts and
// disagreements are persisted only when docID is non-empty; corpus-wide
// questions have no document to attach records to, but the reviewers still
// run so their outcomes reach the logs.
func (c *Coordinator) ReviewAnswer(ctx context.Context, docID, answer, joinedContext string,
	qa StageWindow) {

	ctx, span := tracer.Start(ctx, "Coordinator.ReviewAnswer")
	defer span.End()
	span.SetAttributes(attribute.String("doc.id", docID))

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	ctxText := head(joinedContext, qaContextMax)
	bias, comp := c.reviewPair(ctx, docID,
		reviewCall{
			kind:   KindBiasQA,
			prompt: biasReviewPrompt,
			task: "Review this output for bias and unsupported claims.\n\nOUTPUT:\n" +
				answer + "\n\nCONTEXT (optional):\n" + ctxText,
		},
		reviewCall{
			kind:   KindCompletenessQA,
			prompt: completenessReviewPrompt,
			task: "Review for completeness and distortions vs context.\n\nOUTPUT:\n" +
				answer + "\n\nCONTEXT:\n" + ctxText,
		})

	c.runOne(ctx, docID, reviewCall{
		kind:   KindSecurityQA,
		prompt: securityReviewPrompt,
		task:   "Check for sensitive-data leakage in the following text:\n" + answer,
	})

	c.arbitrate(ctx, docID, PhaseQAReview, bias, comp)

	c.perfNote(ctx, docID, KindPerfQA, "qa", qa, 1)
}

type reviewCall struct {
	kind   string
	prompt string
	task   string
}

// reviewPair runs bias and completeness concurrently. They are symmetric
// inputs to the divergence check, so relative ordering between them does
// not matter; the check itself is sequenced after both complete.
func (c *Coordinator) reviewPair(ctx context.Context, docID string, a, b reviewCall) (*datatypes.Verdict, *datatypes.Verdict) {
	var va, vb *datatypes.Verdict
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		va = c.runOne(gctx, docID, a)
		return nil
	})
	g.Go(func() error {
		vb = c.runOne(gctx, docID, b)
		return nil
	})
	_ = g.Wait()
	return va, vb
}

// runOne executes a single reviewer call and persists its verdict. Returns
// nil when the completion call itself failed; a malformed response still
// yields a (failed) verdict via ParseVerdict.
func (c *Coordinator) runOne(ctx context.Context, docID string, call reviewCall) *datatypes.Verdict {
	raw, err := c.llm.Generate(ctx, call.prompt+"\n\n"+call.task, llm.GenerationParams{})
	if err != nil {
		slog.Warn("Critic call failed", "kind", call.kind, "doc_id", docID, "error", err)
		c.metrics.RecordCriticFailure(call.kind)
		return nil
	}
	verdict := datatypes.ParseVerdict(raw)
	c.persistReview(ctx, docID, call.kind, verdict.Payload)
	return &verdict
}

// arbitrate issues the arbitration call when the two verdicts diverge and
// appends exactly one DisagreementRecord for the phase. Agreement, or a
// missing verdict from a failed call, appends nothing.
func (c *Coordinator) arbitrate(ctx context.Context, docID, phase string, bias, comp *datatypes.Verdict) {
	if bias == nil || comp == nil {
		return
	}
	diverged := (bias.Passed() && comp.Failed()) || (bias.Failed() && comp.Passed())
	if !diverged {
		return
	}
	slog.Info("Critic verdicts diverged, arbitrating",
		"phase", phase, "doc_id", docID,
		"bias_verdict", bias.Verdict, "completeness_verdict", comp.Verdict)

	task := fmt.Sprintf("OUTPUT A:\n%s\n\nOUTPUT B:\n%s\n\nCompare and report disagreements.",
		string(bias.Payload), string(comp.Payload))
	raw, err := c.llm.Generate(ctx, arbiterPrompt+"\n\n"+task, llm.GenerationParams{})
	if err != nil {
		slog.Warn("Arbitration call failed", "phase", phase, "doc_id", docID, "error", err)
		c.metrics.RecordCriticFailure("arbiter")
		return
	}
	details := datatypes.ParseVerdict(raw)
	if docID == "" {
		return
	}
	if err := c.store.AppendDisagreement(ctx, docID, phase, details.Payload); err != nil {
		slog.Warn("Failed to persist disagreement", "phase", phase, "doc_id", docID, "error", err)
		return
	}
	c.metrics.RecordDisagreement(phase)
}

// perfNote asks the performance analyst for a latency note on one stage.
func (c *Coordinator) perfNote(ctx context.Context, docID, kind, op string, w StageWindow, toolCalls int) {
	if w.Start.IsZero() || w.End.IsZero() {
		return
	}
	task := fmt.Sprintf(
		"Operation: %s\nstart_ms=%d end_ms=%d tokens_in=0 tokens_out=0 tool_calls=%d\n"+
			"Provide JSON metrics and high-level observations.",
		op, w.Start.UnixMilli(), w.End.UnixMilli(), toolCalls)
	raw, err := c.llm.Generate(ctx, perfAnalyzerPrompt+"\n\n"+task, llm.GenerationParams{})
	if err != nil {
		slog.Warn("Perf critic call failed", "kind", kind, "doc_id", docID, "error", err)
		c.metrics.RecordCriticFailure(kind)
		return
	}
	verdict := datatypes.ParseVerdict(raw)
	c.persistReview(ctx, docID, kind, verdict.Payload)
}

func (c *Coordinator) persistReview(ctx context.Context, docID, kind string, payload json.RawMessage) {
	if docID == "" {
		return
	}
	if err := c.store.AppendReview(ctx, docID, kind, payload); err != nil {
		slog.Warn("Failed to persist review", "kind", kind, "doc_id", docID, "error", err)
	}
}

// head truncates s to at most n bytes, backing up so a multibyte rune is
// never split.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
