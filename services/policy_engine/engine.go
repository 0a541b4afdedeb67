// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy_engine

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianDocQA/services/policy_engine/enforcement"
	"gopkg.in/yaml.v3"
)

// Engine is the entry point for sensitive-content classification. It holds
// the compiled rule set and scans document text against it during ingestion.
type Engine struct {
	Classifiers []Classification
}

// NewEngine initializes the engine from the policy definitions embedded in
// the binary via the enforcement package.
//
// It performs the following operations:
// 1. Unmarshals the embedded YAML data.
// 2. Compiles all regex patterns.
// 3. Sorts classifications by priority.
//
// Returns an error if the embedded YAML is malformed or contains invalid regex.
func NewEngine() (*Engine, error) {
	var classificationFile ClassificationFile
	if err := yaml.Unmarshal(enforcement.DataClassificationPatterns, &classificationFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded policy file: %w", err)
	}

	// Compile the regex patterns for performance and sort by priority
	if err := classificationFile.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex %w", err)
	}

	classificationFile.SortByPriority()

	return &Engine{Classifiers: classificationFile.Classifications}, nil
}

// ClassifyText performs a quick boolean check on text to determine its
// classification.
//
// It iterates through classifications by priority and returns the name of
// the *first* classification that matches. If no match is found, it returns
// "public". Optimized for high-throughput categorization rather than
// detailed auditing.
func (e *Engine) ClassifyText(text string) string {
	data := []byte(text)
	for _, classifier := range e.Classifiers {
		for _, re := range classifier.CompiledPatterns {
			if re.Match(data) {
				return classifier.Name
			}
		}
	}
	return "public"
}

// ScanText performs a comprehensive audit of document text.
//
// It splits the content into lines and checks every line against every
// pattern in the engine, capturing line numbers and the specific text that
// triggered each match. Intended for the ingestion pipeline, where the
// findings are attached to the document as a policy_scan review.
func (e *Engine) ScanText(content string) []ScanFinding {
	var findings []ScanFinding
	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		for _, classifier := range e.Classifiers {
			for _, pattern := range classifier.Patterns {
				match := pattern.compiledPattern.FindString(line)
				if match != "" {
					finding := ScanFinding{
						LineNumber:         lineNum + 1,
						MatchedContent:     strings.TrimSpace(match),
						ClassificationName: classifier.Name,
						PatternId:          pattern.Id,
						PatternDescription: pattern.Description,
						Confidence:         pattern.Confidence,
					}
					findings = append(findings, finding)
				}
			}
		}
	}
	return findings
}
