package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOllamaClientRequiresBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	_, err := NewOllamaClient()
	assert.Error(t, err)
}

func TestNewOllamaClientDefaults(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434/")
	t.Setenv("OLLAMA_MODEL", "")

	c, err := NewOllamaClient()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", c.baseURL)
	assert.Equal(t, "gpt-oss", c.model)
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		assert.EqualValues(t, 20, req.Options["top_k"])

		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    req.Model,
			Response: "generated text",
			Done:     true,
		})
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_BASE_URL", srv.URL)
	t.Setenv("OLLAMA_MODEL", "test-model")
	c, err := NewOllamaClient()
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "hello", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "generated text", out)
}

func TestOllamaGenerateParamOverrides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 0.7, req.Options["temperature"])
		assert.EqualValues(t, 128, req.Options["num_predict"])
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_BASE_URL", srv.URL)
	t.Setenv("OLLAMA_MODEL", "test-model")
	c, err := NewOllamaClient()
	require.NoError(t, err)

	temp := float32(0.7)
	maxTokens := 128
	_, err = c.Generate(context.Background(), "hello", GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	require.NoError(t, err)
}

func TestOllamaGenerateModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'missing' not found"}`))
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_BASE_URL", srv.URL)
	t.Setenv("OLLAMA_MODEL", "missing")
	c, err := NewOllamaClient()
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "hello", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull")
}

func TestOllamaGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_BASE_URL", srv.URL)
	t.Setenv("OLLAMA_MODEL", "test-model")
	c, err := NewOllamaClient()
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "hello", GenerationParams{})
	assert.Error(t, err)
}
