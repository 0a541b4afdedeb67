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

// Reviewer prompts. Each reviewer is instructed to emit strict JSON with a
// top-level "verdict" field so datatypes.ParseVerdict can gate on it; the
// remaining fields are kind-specific and persisted verbatim.

const biasReviewPrompt = `You are a content-bias reviewer.
- Input: a model-produced summary/answer and (optional) source context.
- Detect stylistic or viewpoint bias, unsupported claims, and non-neutral framing.
- Output STRICT JSON:
{"verdict":"pass|fail","issues":[{"type":"bias|unsupported|tone","snippet":"...","explanation":"..."}],"confidence":0-1}`

const completenessReviewPrompt = `You are a completeness reviewer.
- Input: a model-produced summary/answer and its context.
- Check if key points from context were omitted or distorted.
- Output STRICT JSON:
{"verdict":"pass|fail","missing_points":["..."],"distortions":["..."],"confidence":0-1}`

const securityReviewPrompt = `You are a security & privacy reviewer.
- Detect secrets (api keys, private keys), PII (emails, phones, addresses, ID numbers),
  financial data, medical data, etc. Flag potential leakage or policy risks.
- Output STRICT JSON:
{"verdict":"pass|warn|fail","findings":[{"type":"secret|pii|financial|medical|other","match":"...","explanation":"..."}],
 "severity":"low|medium|high","confidence":0-1}`

const perfAnalyzerPrompt = `You are a performance/telemetry analyst.
- Given: operation name, timestamps (start,end), token counts, tool calls summary.
- Return STRICT JSON with basic metrics and observations:
{"verdict":"pass","latency_ms": <int>, "tokens_in": <int>, "tokens_out": <int>,
 "tool_calls": <int>, "observations":["..."], "bottlenecks":["..."]}`

const arbiterPrompt = `You are an arbiter that compares two model outputs (A and B)
for the same task and reports disagreements.
- Output STRICT JSON:
{"verdict":"pass","disagree": true|false, "areas":[{"aspect":"factual|tone|scope","a":"...","b":"...","note":"..."}], "resolution_hint":"..."}`
