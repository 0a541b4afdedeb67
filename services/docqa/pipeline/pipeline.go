// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline sequences the document ingestion and question-answering
// stages and owns the failure and fallback policy end to end.
//
// # Description
//
// Ingestion runs Extract -> Summarize -> ExtractEntities -> ReviewSummary
// (advisory) -> IndexChunks -> Persist. QA runs Retrieve -> Answer ->
// ReviewAnswer (advisory). Stages execute in fixed order with no backward
// transitions; validators gate the generated artifacts inline, while critic
// reviews run off the critical path and can never fail a call.
//
// # Failure Policy
//
// Extraction failures are fatal with no partial writes. Summary and entity
// failures are fatal in strict mode and absorbed into documented fallbacks
// in degraded mode. Index failures are recorded as a kb_index_error review
// and do not abort ingestion. QA grounding rejections degrade to the
// "don't know" sentinel; only completion-call failures raise QAError.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/chunk"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/critics"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/kb"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/observability"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/rollback"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/store"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/validators"
	"github.com/AleutianAI/AleutianDocQA/services/extract"
	"github.com/AleutianAI/AleutianDocQA/services/llm"
	"github.com/AleutianAI/AleutianDocQA/services/policy_engine"
)

var tracer = otel.Tracer("aleutian.docqa.pipeline")

// DontKnowAnswer is the sentinel returned when answer validation rejects.
const DontKnowAnswer = "I don't know from the provided documents."

// EmptyCorpusContext stands in for retrieved context when nothing is indexed.
const EmptyCorpusContext = "KB is empty."

// FallbackSummaryText is the degraded summary when the source has no usable
// leading lines to fall back on.
const FallbackSummaryText = "Summary unavailable due to validation."

// Review kinds emitted by the pipeline itself (critic kinds live in the
// critics package).
const (
	KindIndexError    = "kb_index_error"
	KindValidatorNote = "qa_validator_note"
	KindPolicyScan    = "policy_scan"
)

const (
	promptSourceMax     = 120000
	fallbackSourceLines = 6
)

// Indexer is the retrieval surface the pipeline writes and queries. The
// production implementation is KBIndexer; tests inject failing ones to
// exercise the kb_index_error path.
type Indexer interface {
	Index(docID string, chunks []string) error
	Search(query string, topK int) ([]kb.SearchResult, error)
	Size() int
}

// KBIndexer adapts the in-process lexical index to the Indexer interface.
// kb.Index cannot fail on write, so Index always returns nil.
type KBIndexer struct {
	KB *kb.Index
}

func (a KBIndexer) Index(docID string, chunks []string) error {
	a.KB.Index(docID, chunks)
	return nil
}

func (a KBIndexer) Search(query string, topK int) ([]kb.SearchResult, error) {
	return a.KB.Search(query, topK)
}

func (a KBIndexer) Size() int { return a.KB.Size() }

// Config holds the pipeline tuning knobs.
type Config struct {
	// StrictValidation selects the failure policy for generation stages.
	// false (degraded): validator rejections fall back to placeholder
	// artifacts and ingestion continues. true (strict): rejections abort
	// ingestion with a typed error. The two modes are never mixed.
	StrictValidation bool

	// ChunkSize bounds index chunks in characters.
	ChunkSize int

	// SectionChunkSize bounds derived sections when the extractor returns none.
	SectionChunkSize int

	// FallbackSummaryMax truncates the degraded-mode summary.
	FallbackSummaryMax int

	// DocSections is how many stored sections seed the QA context when a
	// document id is given.
	DocSections int

	// RetrievalTopK / RetrievalTopKNoDoc are the search result counts with
	// and without a target document.
	RetrievalTopK      int
	RetrievalTopKNoDoc int

	// StageTimeout bounds each collaborator call (extraction, completion).
	StageTimeout time.Duration

	// Validation holds the validator thresholds.
	Validation validators.Config
}

// DefaultConfig returns the production pipeline configuration. Degraded
// validation is the default; set StrictValidation explicitly to opt into
// fail-fast ingestion.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          1200,
		SectionChunkSize:   3000,
		FallbackSummaryMax: 600,
		DocSections:        5,
		RetrievalTopK:      5,
		RetrievalTopKNoDoc: 8,
		StageTimeout:       2 * time.Minute,
		Validation:         validators.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.SectionChunkSize <= 0 {
		c.SectionChunkSize = d.SectionChunkSize
	}
	if c.FallbackSummaryMax <= 0 {
		c.FallbackSummaryMax = d.FallbackSummaryMax
	}
	if c.DocSections <= 0 {
		c.DocSections = d.DocSections
	}
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = d.RetrievalTopK
	}
	if c.RetrievalTopKNoDoc <= 0 {
		c.RetrievalTopKNoDoc = d.RetrievalTopKNoDoc
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = d.StageTimeout
	}
	if c.Validation == (validators.Config{}) {
		c.Validation = d.Validation
	}
	return c
}

// Pipeline drives every other docqa component. Safe for concurrent use
// across distinct document ids; concurrent ingestion of the same id is
// last-writer-wins.
type Pipeline struct {
	cfg       Config
	extractor extract.Extractor
	llm       llm.LLMClient
	store     store.Store
	index     Indexer
	critics   *critics.Coordinator
	policy    *policy_engine.Engine
	metrics   *observability.Metrics
}

// New assembles a pipeline. policy may be nil to disable content scanning;
// every other collaborator is required.
func New(cfg Config, ex extract.Extractor, client llm.LLMClient, st store.Store,
	idx Indexer, cr *critics.Coordinator, policy *policy_engine.Engine) *Pipeline {

	return &Pipeline{
		cfg:       cfg.withDefaults(),
		extractor: ex,
		llm:       client,
		store:     st,
		index:     idx,
		critics:   cr,
		policy:    policy,
		metrics:   observability.GetMetrics(),
	}
}

// =============================================================================
// Ingestion
// =============================================================================

// Ingest runs the full ingestion state machine for the file at path,
// persisting the document under docID.
//
// # Outputs
//
//   - sections, summary, entities on success.
//   - *ParsingError when extraction fails or yields only whitespace; no
//     document record exists for docID afterwards.
//   - *SummarizationError / *EntityExtractionError in strict mode when a
//     generation stage is rejected.
func (p *Pipeline) Ingest(ctx context.Context, path, docID string) (sections []string, summary string, entities []string, err error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("doc.id", docID),
		attribute.String("doc.path", path),
		attribute.Bool("pipeline.strict", p.cfg.StrictValidation),
	)
	slog.Info("Ingesting document", "doc_id", docID, "path", path)

	degraded := false
	defer func() {
		switch {
		case err != nil:
			p.metrics.RecordIngest(observability.StatusError)
		case degraded:
			p.metrics.RecordIngest(observability.StatusDegraded)
		default:
			p.metrics.RecordIngest(observability.StatusSuccess)
		}
	}()

	// 1) Extract
	parseStart := time.Now()
	rawText, sections, err := p.extract(ctx, path)
	p.metrics.ObserveStage("parse", time.Since(parseStart))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", nil, err
	}

	// Content scan is advisory, like the critics. Findings are persisted as
	// a review event; they never block ingestion.
	p.scanContent(ctx, docID, rawText)

	// Snapshot prior state. Nil for a brand-new document; only re-ingestion
	// has anything to restore.
	snapshot, err := rollback.TakeSnapshot(ctx, p.store, docID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", nil, err
	}

	// 2) Summarize
	sumWindow := critics.StageWindow{Start: time.Now()}
	summary, sumDegraded, err := p.summarize(ctx, rawText)
	sumWindow.End = time.Now()
	p.metrics.ObserveStage("summarize", sumWindow.End.Sub(sumWindow.Start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", nil, err
	}
	degraded = degraded || sumDegraded

	// 3) ExtractEntities
	entWindow := critics.StageWindow{Start: time.Now()}
	entities, entDegraded, err := p.extractEntities(ctx, rawText)
	entWindow.End = time.Now()
	p.metrics.ObserveStage("entities", entWindow.End.Sub(entWindow.Start))
	if err != nil {
		// Strict-mode failure during re-ingestion may have nothing written
		// yet, but a prior record can exist; restore it before unwinding.
		if rbErr := rollback.Rollback(ctx, p.store, snapshot); rbErr != nil {
			slog.Error("Rollback after entity failure also failed", "doc_id", docID, "error", rbErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", nil, err
	}
	degraded = degraded || entDegraded

	// 4) ReviewSummary (advisory)
	p.critics.ReviewSummary(ctx, docID, summary, rawText, sumWindow, entWindow)

	// 5) IndexChunks
	indexStart := time.Now()
	chunks := chunk.Split(rawText, p.cfg.ChunkSize)
	if idxErr := p.index.Index(docID, chunks); idxErr != nil {
		slog.Warn("Index write failed, document will not be searchable",
			"doc_id", docID, "error", idxErr)
		payload, _ := json.Marshal(map[string]string{"error": idxErr.Error()})
		if revErr := p.store.AppendReview(ctx, docID, KindIndexError, payload); revErr != nil {
			slog.Warn("Failed to record index error review", "doc_id", docID, "error", revErr)
		}
	} else {
		p.metrics.SetIndexedChunks(p.index.Size())
	}
	p.metrics.ObserveStage("index", time.Since(indexStart))

	// 6) Persist
	doc := &datatypes.Document{
		DocID:    docID,
		RawText:  rawText,
		Sections: sections,
		Summary:  summary,
		Entities: entities,
	}
	if err = p.store.Put(ctx, docID, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", nil, fmt.Errorf("failed to persist document %s: %w", docID, err)
	}

	slog.Info("Ingestion complete", "doc_id", docID,
		"sections", len(sections), "entities", len(entities), "chunks", len(chunks),
		"degraded", degraded)
	return sections, summary, entities, nil
}

// extract calls the extraction collaborator and derives sections when the
// extractor returns none.
func (p *Pipeline) extract(ctx context.Context, path string) (string, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	res, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return "", nil, &ParsingError{Path: path, Err: err}
	}
	if strings.TrimSpace(res.RawText) == "" {
		return "", nil, &ParsingError{Path: path, Err: fmt.Errorf("extractor returned empty raw text")}
	}
	sections := res.Sections
	if len(sections) == 0 {
		sections = chunk.Split(res.RawText, p.cfg.SectionChunkSize)
	}
	return res.RawText, sections, nil
}

// summarize generates and gates the document summary. The bool reports
// whether the degraded fallback was used.
func (p *Pipeline) summarize(ctx context.Context, rawText string) (string, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	task := "Summarize the following document. Be concise, section-aware, <=300 words if possible:\n" +
		head(rawText, promptSourceMax)
	summary, err := p.llm.Generate(callCtx, summarizerPrompt+"\n\n"+task, llm.GenerationParams{})
	if err != nil {
		if p.cfg.StrictValidation {
			return "", false, &SummarizationError{Err: err}
		}
		slog.Warn("Summarization call failed, using fallback summary", "error", err)
		return p.fallbackSummary(rawText), true, nil
	}

	if res := validators.ValidateSummary(p.cfg.Validation, rawText, summary); !res.Accepted {
		if p.cfg.StrictValidation {
			return "", false, &SummarizationError{Reason: res.Reason}
		}
		slog.Warn("Summary rejected, using fallback summary", "reason", res.Reason)
		return p.fallbackSummary(rawText), true, nil
	}
	return summary, false, nil
}

// fallbackSummary is the degraded-mode summary: the first few non-empty
// source lines, truncated.
func (p *Pipeline) fallbackSummary(rawText string) string {
	var lines []string
	for _, l := range strings.Split(rawText, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
		if len(lines) == fallbackSourceLines {
			break
		}
	}
	s := strings.Join(lines, "\n")
	if s == "" {
		s = FallbackSummaryText
	}
	return head(s, p.cfg.FallbackSummaryMax)
}

// extractEntities generates and gates the entity list. The bool reports
// whether the sentinel fallback was used.
func (p *Pipeline) extractEntities(ctx context.Context, rawText string) ([]string, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	task := "Extract key entities (PERSON, ORG, DATE, MONEY, LOCATION, LAW/CLAUSE) one per line:\n" +
		head(rawText, promptSourceMax)
	out, err := p.llm.Generate(callCtx, entityPrompt+"\n\n"+task, llm.GenerationParams{})
	if err != nil {
		if p.cfg.StrictValidation {
			return nil, false, &EntityExtractionError{Err: err}
		}
		slog.Warn("Entity extraction call failed, using sentinel", "error", err)
		return []string{validators.EntitySentinel}, true, nil
	}

	var entities []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			entities = append(entities, line)
		}
	}

	if res := validators.ValidateEntities(p.cfg.Validation, rawText, entities); !res.Accepted {
		if p.cfg.StrictValidation {
			return nil, false, &EntityExtractionError{Reason: res.Reason}
		}
		slog.Warn("Entity list rejected, using sentinel",
			"reason", res.Reason, "presence_ratio", res.PresenceRatio)
		return []string{validators.EntitySentinel}, true, nil
	}
	return entities, false, nil
}

// scanContent runs the policy engine over the raw text and records findings
// as a policy_scan review.
func (p *Pipeline) scanContent(ctx context.Context, docID, rawText string) {
	if p.policy == nil {
		return
	}
	findings := p.policy.ScanText(rawText)
	if len(findings) == 0 {
		return
	}
	slog.Warn("Policy scan flagged document content", "doc_id", docID, "findings", len(findings))
	payload, err := json.Marshal(map[string]any{"findings": findings})
	if err != nil {
		return
	}
	if err := p.store.AppendReview(ctx, docID, KindPolicyScan, payload); err != nil {
		slog.Warn("Failed to record policy scan review", "doc_id", docID, "error", err)
	}
}

// =============================================================================
// Question Answering
// =============================================================================

// Answer runs the QA state machine. docID may be empty for a corpus-wide
// question.
//
// # Description
//
// With a docID, context is the document's first stored sections plus a
// corpus-wide index query; the index has no per-document filter, so
// retrieval deliberately broadens beyond the named document. Without a
// docID, retrieval queries the whole index with a larger result count.
//
// # Outputs
//
//   - The answer and the contexts it was grounded in. A grounding-validation
//     rejection returns the "don't know" sentinel, never an error.
//   - *QAError when the completion call itself fails.
func (p *Pipeline) Answer(ctx context.Context, question, docID string) (answer string, contexts []string, err error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Answer")
	defer span.End()
	span.SetAttributes(attribute.String("doc.id", docID))

	dontKnow := false
	defer func() {
		switch {
		case err != nil:
			p.metrics.RecordQA(observability.StatusError)
		case dontKnow:
			p.metrics.RecordQA(observability.StatusDontKnow)
		default:
			p.metrics.RecordQA(observability.StatusSuccess)
		}
	}()

	// 1) Retrieve
	contexts = p.retrieve(ctx, question, docID)

	// 2) Answer
	qaWindow := critics.StageWindow{Start: time.Now()}
	answer, dontKnow, err = p.generateAnswer(ctx, question, docID, contexts)
	qaWindow.End = time.Now()
	p.metrics.ObserveStage("qa", qaWindow.End.Sub(qaWindow.Start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", nil, err
	}

	// 3) ReviewAnswer (advisory)
	p.critics.ReviewAnswer(ctx, docID, answer, strings.Join(contexts, "\n\n"), qaWindow)

	return answer, contexts, nil
}

// retrieve builds the ordered context list for a question.
func (p *Pipeline) retrieve(ctx context.Context, question, docID string) []string {
	var contexts []string
	topK := p.cfg.RetrievalTopKNoDoc

	if docID != "" {
		topK = p.cfg.RetrievalTopK
		doc, err := p.store.Get(ctx, docID)
		if err != nil && !store.IsNotFound(err) {
			slog.Warn("Failed to load document sections for retrieval", "doc_id", docID, "error", err)
		}
		if doc != nil {
			n := p.cfg.DocSections
			if n > len(doc.Sections) {
				n = len(doc.Sections)
			}
			contexts = append(contexts, doc.Sections[:n]...)
		}
	}

	hits, err := p.index.Search(question, topK)
	if err != nil {
		// Empty corpus is a signal, not a failure. Surface it as explicit
		// context so the answer stage can say so.
		contexts = append(contexts, EmptyCorpusContext)
		return contexts
	}
	for _, h := range hits {
		contexts = append(contexts, h.Text)
	}
	return contexts
}

// generateAnswer calls the completion collaborator and gates the answer.
// The bool reports whether the don't-know sentinel was substituted.
func (p *Pipeline) generateAnswer(ctx context.Context, question, docID string, contexts []string) (string, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	task := fmt.Sprintf(
		"Question: %s\n\nContext:\n%s\n\nAnswer strictly from the context; if unknown, say you don't know.",
		question, strings.Join(contexts, "\n\n"))
	answer, err := p.llm.Generate(callCtx, qaPrompt+"\n\n"+task, llm.GenerationParams{})
	if err != nil {
		return "", false, &QAError{Err: err}
	}

	if res := validators.ValidateAnswer(p.cfg.Validation, answer, contexts); !res.Accepted {
		slog.Info("Answer rejected, returning don't-know sentinel",
			"doc_id", docID, "reason", res.Reason)
		if docID != "" {
			payload, _ := json.Marshal(map[string]string{"reason": string(res.Reason)})
			if revErr := p.store.AppendReview(ctx, docID, KindValidatorNote, payload); revErr != nil {
				slog.Warn("Failed to record validator note", "doc_id", docID, "error", revErr)
			}
		}
		return DontKnowAnswer, true, nil
	}
	return answer, false, nil
}

// =============================================================================
// User Edits
// =============================================================================

// ApplyUserEdit validates and writes a user-provided summary and entity
// list.
//
// # Description
//
// A rejection by either validator raises *ValidationError and performs no
// write at all; the prior state is untouched and the snapshot is discarded
// unused. Only a write that was attempted and failed triggers rollback; if
// the rollback write itself fails, that error propagates instead.
func (p *Pipeline) ApplyUserEdit(ctx context.Context, docID, summary string, entities []string) error {
	ctx, span := tracer.Start(ctx, "Pipeline.ApplyUserEdit")
	defer span.End()
	span.SetAttributes(attribute.String("doc.id", docID))

	snapshot, err := rollback.TakeSnapshot(ctx, p.store, docID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	doc, err := p.store.Get(ctx, docID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to load document %s for edit: %w", docID, err)
	}

	if summary != "" {
		if res := validators.ValidateSummary(p.cfg.Validation, doc.RawText, summary); !res.Accepted {
			return &ValidationError{Field: "summary", Reason: res.Reason}
		}
	}
	if entities != nil {
		if res := validators.ValidateEntities(p.cfg.Validation, doc.RawText, entities); !res.Accepted {
			return &ValidationError{Field: "entities", Reason: res.Reason, Ratio: res.PresenceRatio}
		}
	}

	if err := p.store.UpdateSummary(ctx, docID, summary, entities); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if rbErr := rollback.Rollback(ctx, p.store, snapshot); rbErr != nil {
			return rbErr
		}
		return fmt.Errorf("failed to write edit for document %s: %w", docID, err)
	}
	slog.Info("Applied user edit", "doc_id", docID, "entities_updated", entities != nil)
	return nil
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
