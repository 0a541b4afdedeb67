// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docqa

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})
	assert.Equal(t, 12310, cfg.Port)
	assert.Equal(t, "ollama", cfg.LLMBackend)
	assert.Equal(t, "aleutian-otel-collector:4317", cfg.OTelEndpoint)
	assert.Equal(t, 2*time.Minute, cfg.StageTimeout)
	assert.Equal(t, 45*time.Second, cfg.CriticBudget)
}

func TestApplyConfigDefaultsClampsCriticBudget(t *testing.T) {
	cfg := applyConfigDefaults(Config{
		StageTimeout: 30 * time.Second,
		CriticBudget: time.Minute, // longer than the stage timeout
	})
	assert.Equal(t, 45*time.Second, cfg.CriticBudget)
	assert.Less(t, cfg.CriticBudget, time.Minute)
}

func TestNewServiceSmoke(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")

	svc, err := New(Config{GinMode: "test"})
	require.NoError(t, err)
	defer svc.Close()

	require.NotNil(t, svc.Router())
	require.NotNil(t, svc.Pipeline())
	require.NotNil(t, svc.Store())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNewServiceWithBadgerStore(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")

	svc, err := New(Config{GinMode: "test", DataDir: t.TempDir()})
	require.NoError(t, err)
	svc.Close()
}
