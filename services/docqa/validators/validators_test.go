// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sourceText = `The quarterly revenue report shows strong growth in the
cloud division. Operating margins improved to 23 percent while headcount
remained flat. The board approved a new capital allocation plan.`

func TestValidateSummary(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name       string
		summary    string
		accepted   bool
		wantReason Reason
	}{
		{
			name:       "empty summary rejected",
			summary:    "",
			wantReason: ReasonEmpty,
		},
		{
			name:       "whitespace only rejected",
			summary:    "   \n\t  ",
			wantReason: ReasonEmpty,
		},
		{
			name:       "below min length rejected",
			summary:    strings.Repeat("x", 39),
			wantReason: ReasonTooShort,
		},
		{
			name:       "above max length rejected",
			summary:    strings.Repeat("x", 4001),
			wantReason: ReasonTooLong,
		},
		{
			name:       "off-source summary rejected",
			summary:    "Penguins migrate across Antarctica during winter storms yearly.",
			wantReason: ReasonLowCoverage,
		},
		{
			name:     "grounded summary accepted",
			summary:  "Revenue grew in the cloud division and operating margins improved.",
			accepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateSummary(cfg, sourceText, tt.summary)
			assert.Equal(t, tt.accepted, res.Accepted)
			if !tt.accepted {
				assert.Equal(t, tt.wantReason, res.Reason)
			}
		})
	}
}

func TestValidateSummaryLengthBoundaries(t *testing.T) {
	cfg := DefaultConfig()

	// Exactly at the minimum, built from source words so coverage passes.
	atMin := "the quarterly revenue report shows ok"
	for len(atMin) < cfg.SummaryMinChars {
		atMin += " revenue"
	}
	atMin = atMin[:cfg.SummaryMinChars]
	assert.True(t, ValidateSummary(cfg, sourceText, atMin).Accepted)

	oneUnder := strings.Repeat("a", cfg.SummaryMinChars-1)
	assert.Equal(t, ReasonTooShort, ValidateSummary(cfg, sourceText, oneUnder).Reason)

	// Bounds count code points, not bytes: 35 characters of mostly multibyte
	// text is 75 bytes but still too short.
	multibyteShort := strings.Repeat("文", 20) + " revenue report"
	assert.Equal(t, ReasonTooShort, ValidateSummary(cfg, sourceText, multibyteShort).Reason)

	multibyteOK := strings.Repeat("文", 30) + " quarterly revenue report"
	assert.True(t, ValidateSummary(cfg, sourceText, multibyteOK).Accepted)
}

func TestValidateEntities(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("nil list accepted", func(t *testing.T) {
		assert.True(t, ValidateEntities(cfg, sourceText, nil).Accepted)
	})

	t.Run("empty list accepted", func(t *testing.T) {
		assert.True(t, ValidateEntities(cfg, sourceText, []string{}).Accepted)
	})

	t.Run("sentinel accepted regardless of source", func(t *testing.T) {
		assert.True(t, ValidateEntities(cfg, "", []string{EntitySentinel}).Accepted)
		assert.True(t, ValidateEntities(cfg, "", []string{"none"}).Accepted)
		assert.True(t, ValidateEntities(cfg, "", []string{"No Entities Found"}).Accepted)
	})

	t.Run("too many entities rejected", func(t *testing.T) {
		many := make([]string, cfg.MaxEntities+1)
		for i := range many {
			many[i] = "revenue"
		}
		assert.Equal(t, ReasonTooMany, ValidateEntities(cfg, sourceText, many).Reason)
	})

	t.Run("two of three present accepted", func(t *testing.T) {
		res := ValidateEntities(cfg, sourceText, []string{"cloud division", "capital allocation", "unicorn farm"})
		assert.True(t, res.Accepted)
		assert.InDelta(t, 2.0/3.0, res.PresenceRatio, 0.001)
	})

	t.Run("all fabricated rejected with ratio", func(t *testing.T) {
		res := ValidateEntities(cfg, sourceText, []string{"unicorn farm", "dragon lair", "moon base", "mars colony", "atlantis", "shangri-la"})
		assert.False(t, res.Accepted)
		assert.Equal(t, ReasonLowPresence, res.Reason)
		assert.Equal(t, 0.0, res.PresenceRatio)
	})

	t.Run("presence is case insensitive", func(t *testing.T) {
		res := ValidateEntities(cfg, sourceText, []string{"CLOUD DIVISION"})
		assert.True(t, res.Accepted)
	})
}

func TestValidateAnswer(t *testing.T) {
	cfg := DefaultConfig()
	contexts := []string{
		"The quarterly revenue report shows strong growth in the cloud division.",
		"Operating margins improved to 23 percent.",
	}

	t.Run("empty answer rejected", func(t *testing.T) {
		res := ValidateAnswer(cfg, "  ", contexts)
		assert.Equal(t, ReasonEmpty, res.Reason)
	})

	t.Run("dont know accepted with no contexts", func(t *testing.T) {
		res := ValidateAnswer(cfg, "I don't know from the provided documents.", nil)
		assert.True(t, res.Accepted)
	})

	t.Run("grounded answer accepted", func(t *testing.T) {
		res := ValidateAnswer(cfg, "Revenue grew in the cloud division.", contexts)
		assert.True(t, res.Accepted)
	})

	t.Run("fabricated answer rejected", func(t *testing.T) {
		res := ValidateAnswer(cfg, "Zyx qwv plk.", contexts)
		assert.Equal(t, ReasonUngrounded, res.Reason)
	})

	t.Run("numbers do not count toward grounding", func(t *testing.T) {
		res := ValidateAnswer(cfg, "23 23 23 23", contexts)
		assert.Equal(t, ReasonUngrounded, res.Reason)
	})
}
