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

const summarizerPrompt = `You are a precise summarization agent.
- Given raw text (and optionally sections), produce a concise, faithful, section-wise summary.
- Keep bullets tight; avoid marketing tone.
- Return plain text summary (<= 300 words if possible).`

const entityPrompt = `You are an entity extraction agent.
- Extract important entities: PERSON, ORG, DATE, MONEY, LOCATION, LAW/CLAUSE if present.
- Output a newline-separated list of unique entities (short labels).`

const qaPrompt = `You are a grounded Q&A agent.
- You will be given a user question and a set of retrieved context chunks from the corpus.
- Answer strictly from those chunks; if unknown, say 'I don't know from the provided documents.'
- Include inline quotes (short) or section refs like [Chunk #].`
