// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"strings"
)

// Verdict outcome strings critics are instructed to emit.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
	VerdictWarn = "warn"
)

// maxRawVerdict bounds how much unparseable critic output is preserved in
// the failure payload.
const maxRawVerdict = 2000

// Verdict is the parsed result of one critic call.
//
// # Description
//
// Critics return free-form text that is *expected* to be strict JSON with a
// "verdict" key, but the model is not trusted to honor that. ParseVerdict
// never fails: output that is not a JSON object becomes a fail verdict with
// ParseError set and the raw text (truncated) preserved, so the review trail
// keeps whatever the critic actually said.
type Verdict struct {
	// Verdict is "pass", "fail", "warn", or "" when the critic emitted a
	// JSON object without a usable verdict field.
	Verdict string

	// ParseError is true when the critic output was not a JSON object.
	ParseError bool

	// Payload is the normalized JSON persisted as the review record body.
	Payload json.RawMessage
}

// Passed reports whether the critic explicitly passed the artifact.
func (v Verdict) Passed() bool { return v.Verdict == VerdictPass }

// Failed reports whether the critic explicitly failed the artifact.
// A parse failure counts as a fail, matching the persisted payload.
func (v Verdict) Failed() bool { return v.Verdict == VerdictFail }

// ParseVerdict parses critic output into a Verdict. See Verdict for the
// contract; this function never returns an error.
func ParseVerdict(raw string) Verdict {
	trimmed := strings.TrimSpace(raw)

	// Models frequently wrap "STRICT JSON" in a markdown fence anyway.
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return parseFailure(raw)
	}

	verdict := ""
	if rawVerdict, ok := fields["verdict"]; ok {
		// Ignore a non-string verdict field rather than erroring out.
		_ = json.Unmarshal(rawVerdict, &verdict)
	}

	// Re-marshal so the persisted payload is exactly what was understood.
	payload, err := json.Marshal(fields)
	if err != nil {
		return parseFailure(raw)
	}

	return Verdict{Verdict: verdict, Payload: payload}
}

// parseFailure wraps unusable critic output as a fail verdict.
func parseFailure(raw string) Verdict {
	truncated := raw
	if len(truncated) > maxRawVerdict {
		truncated = truncated[:maxRawVerdict]
	}
	payload, _ := json.Marshal(map[string]any{
		"verdict":     VerdictFail,
		"parse_error": true,
		"raw":         truncated,
	})
	return Verdict{Verdict: VerdictFail, ParseError: true, Payload: payload}
}
