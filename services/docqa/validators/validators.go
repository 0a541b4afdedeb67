// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validators gates generated artifacts (summaries, entity lists,
// answers) with cheap lexical heuristics.
//
// These checks are advisory quality floors, not semantic correctness
// proofs: a validator accepting an artifact does not mean the artifact is
// right, and a rejection does not mean it is wrong. False accepts and false
// rejects are expected and tolerated; the pipeline's degraded-mode
// fallbacks exist precisely because of that.
//
// All validators are pure functions over their inputs; they allocate but
// never block, suspend, or touch shared state.
package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Reason is a machine-readable rejection code from the closed set below.
type Reason string

const (
	ReasonEmpty       Reason = "empty"
	ReasonTooShort    Reason = "too_short"
	ReasonTooLong     Reason = "too_long"
	ReasonLowCoverage Reason = "low_coverage"
	ReasonTooMany     Reason = "too_many"
	ReasonLowPresence Reason = "low_presence"
	ReasonUngrounded  Reason = "ungrounded"
)

// Result is a validation verdict. Reason is set only when Accepted is false.
// PresenceRatio is populated by ValidateEntities so callers can report how
// far below the threshold a rejected list fell.
type Result struct {
	Accepted      bool
	Reason        Reason
	PresenceRatio float64
}

func accept() Result         { return Result{Accepted: true} }
func reject(r Reason) Result { return Result{Reason: r} }

// Config holds the tuning knobs. The loose defaults are deliberate: they
// were chosen to tolerate noisy extraction output (HTML in particular)
// while still catching empty or off-source generations.
type Config struct {
	// SummaryMinChars / SummaryMaxChars bound summary length in characters
	// (Unicode code points, not bytes).
	SummaryMinChars int
	SummaryMaxChars int

	// CoverageTokens is how many leading source tokens the summary is
	// checked against; MinCoverageHits is how many unique summary tokens
	// must appear among them.
	CoverageTokens  int
	MinCoverageHits int

	// MaxEntities caps entity list length.
	MaxEntities int

	// MinPresenceRatio is the minimum fraction of entities that must occur
	// verbatim (case-insensitive) in the source text.
	MinPresenceRatio float64

	// MinGroundedHits is how many distinct alphabetic answer tokens must
	// appear in the retrieved contexts.
	MinGroundedHits int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		SummaryMinChars:  40,
		SummaryMaxChars:  4000,
		CoverageTokens:   500,
		MinCoverageHits:  2,
		MaxEntities:      200,
		MinPresenceRatio: 0.2,
		MinGroundedHits:  2,
	}
}

// DontKnowMarker is the phrase that makes an answer self-evidently grounded:
// an answer admitting ignorance is accepted unconditionally.
const DontKnowMarker = "don't know"

// EntitySentinel is the single-element list value meaning the extractor
// found nothing. It is always accepted.
const EntitySentinel = "No entities found."

// entitySentinels are the accepted lowercase spellings of the sentinel.
var entitySentinels = map[string]struct{}{
	"no entities found.": {},
	"no entities found":  {},
	"none":               {},
}

// ValidateSummary checks a generated or user-edited summary against its
// source text.
//
// Rejections: empty/whitespace input (empty), length outside
// [SummaryMinChars, SummaryMaxChars] (too_short/too_long), or fewer than
// MinCoverageHits unique lowercase summary tokens among the first
// CoverageTokens lowercase source tokens (low_coverage).
func ValidateSummary(cfg Config, rawText, summary string) Result {
	if strings.TrimSpace(summary) == "" {
		return reject(ReasonEmpty)
	}
	if n := utf8.RuneCountInString(summary); n < cfg.SummaryMinChars {
		return reject(ReasonTooShort)
	} else if n > cfg.SummaryMaxChars {
		return reject(ReasonTooLong)
	}

	srcTokens := strings.Fields(strings.ToLower(rawText))
	if len(srcTokens) > cfg.CoverageTokens {
		srcTokens = srcTokens[:cfg.CoverageTokens]
	}
	src := make(map[string]struct{}, len(srcTokens))
	for _, t := range srcTokens {
		src[t] = struct{}{}
	}

	hits := 0
	seen := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(summary)) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := src[t]; ok {
			hits++
		}
	}
	if hits < cfg.MinCoverageHits {
		return reject(ReasonLowCoverage)
	}
	return accept()
}

// ValidateEntities checks an extracted or user-edited entity list against
// the source text.
//
// A nil list is trivially accepted (nothing was asserted). The sentinel
// "no entities found" list is always accepted. Otherwise the list is
// rejected when longer than MaxEntities (too_many) or when the fraction of
// entities present verbatim in the lowercase source falls below
// MinPresenceRatio (low_presence, with the computed ratio reported).
func ValidateEntities(cfg Config, rawText string, entities []string) Result {
	if entities == nil {
		return accept()
	}
	if len(entities) > cfg.MaxEntities {
		return reject(ReasonTooMany)
	}
	if len(entities) == 1 {
		if _, ok := entitySentinels[strings.ToLower(strings.TrimSpace(entities[0]))]; ok {
			return accept()
		}
	}
	if len(entities) == 0 {
		return accept()
	}

	rawLower := strings.ToLower(rawText)
	present := 0
	for _, e := range entities {
		if strings.TrimSpace(e) == "" {
			continue
		}
		if strings.Contains(rawLower, strings.ToLower(e)) {
			present++
		}
	}
	ratio := float64(present) / float64(len(entities))
	if ratio < cfg.MinPresenceRatio {
		return Result{Reason: ReasonLowPresence, PresenceRatio: ratio}
	}
	return Result{Accepted: true, PresenceRatio: ratio}
}

// ValidateAnswer checks a generated answer against the retrieved contexts.
//
// Empty/whitespace answers are rejected (empty). An answer containing
// DontKnowMarker is accepted unconditionally. Otherwise at least
// MinGroundedHits distinct alphabetic lowercase answer tokens must appear
// somewhere in the concatenated lowercase contexts (ungrounded).
func ValidateAnswer(cfg Config, answer string, contexts []string) Result {
	if strings.TrimSpace(answer) == "" {
		return reject(ReasonEmpty)
	}
	lowerAnswer := strings.ToLower(answer)
	if strings.Contains(lowerAnswer, DontKnowMarker) {
		return accept()
	}

	joined := strings.ToLower(strings.Join(contexts, "\n"))
	hits := 0
	seen := make(map[string]struct{})
	for _, t := range strings.Fields(lowerAnswer) {
		if !isAlpha(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if strings.Contains(joined, t) {
			hits++
		}
	}
	if hits < cfg.MinGroundedHits {
		return reject(ReasonUngrounded)
	}
	return accept()
}

// isAlpha reports whether s is non-empty and letters only.
func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
