// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/validators"
)

// =============================================================================
// Error Types
// =============================================================================

// ParsingError indicates extraction produced unusable output. Fatal: the
// ingestion call unwinds with no partial writes.
type ParsingError struct {
	Path string
	Err  error
}

func (e *ParsingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to parse %s", e.Path)
}

func (e *ParsingError) Unwrap() error { return e.Err }

// SummarizationError indicates summary generation or validation failed while
// the pipeline was running in strict mode.
type SummarizationError struct {
	Reason validators.Reason
	Err    error
}

func (e *SummarizationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("summarization rejected: %s", e.Reason)
	}
	return fmt.Sprintf("summarization failed: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// EntityExtractionError indicates entity extraction or validation failed
// while the pipeline was running in strict mode.
type EntityExtractionError struct {
	Reason validators.Reason
	Err    error
}

func (e *EntityExtractionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("entity extraction rejected: %s", e.Reason)
	}
	return fmt.Sprintf("entity extraction failed: %v", e.Err)
}

func (e *EntityExtractionError) Unwrap() error { return e.Err }

// QAError indicates the completion call for an answer failed outright.
// Validation rejections do not produce a QAError; they degrade to the
// "don't know" sentinel instead.
type QAError struct {
	Err error
}

func (e *QAError) Error() string { return fmt.Sprintf("question answering failed: %v", e.Err) }

func (e *QAError) Unwrap() error { return e.Err }

// ValidationError blocks a user edit. It always means no write happened.
type ValidationError struct {
	Field  string
	Reason validators.Reason
	Ratio  float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s failed validation: %s", e.Field, e.Reason)
}

// =============================================================================
// Error Predicates
// =============================================================================

// IsParsingError reports whether err is (or wraps) a ParsingError.
func IsParsingError(err error) bool {
	var t *ParsingError
	return errors.As(err, &t)
}

// IsSummarizationError reports whether err is (or wraps) a SummarizationError.
func IsSummarizationError(err error) bool {
	var t *SummarizationError
	return errors.As(err, &t)
}

// IsEntityExtractionError reports whether err is (or wraps) an EntityExtractionError.
func IsEntityExtractionError(err error) bool {
	var t *EntityExtractionError
	return errors.As(err, &t)
}

// IsQAError reports whether err is (or wraps) a QAError.
func IsQAError(err error) bool {
	var t *QAError
	return errors.As(err, &t)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}
