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

func newTestOllama(t *testing.T, url string) *OllamaProvider {
	t.Helper()
	provider, err := NewOllamaProvider(Config{
		BaseURL: url + "/",
		Model:   "llama3.1",
		Timeout: 5,
	}, nil)
	require.NoError(t, err)
	return provider
}

func TestOllamaProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream, "request must not stream")
		assert.Equal(t, "Extract clauses.", req.System)

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3.1",
			Response:        `{"Levers": ["Volume discount"]}`,
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       20,
		})
	}))
	defer server.Close()

	resp, err := newTestOllama(t, server.URL).Generate(context.Background(), GenerateRequest{
		System: "Extract clauses.",
		Prompt: "Contract text",
		JSON:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"Levers": ["Volume discount"]}`, resp.Text)
	assert.Equal(t, 30, resp.TokensUsed)
}

func TestOllamaProvider_Generate_EstimatesTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "12345678", Done: true})
	}))
	defer server.Close()

	resp, err := newTestOllama(t, server.URL).Generate(context.Background(), GenerateRequest{Prompt: "abcdefgh"})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.TokensUsed)
	assert.Equal(t, "llama3.1", resp.Model)
}

func TestOllamaProvider_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model failed to load"}`))
	}))
	defer server.Close()

	_, err := newTestOllama(t, server.URL).Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.StatusCode)
	assert.Contains(t, se.Message, "model failed to load")
	assert.True(t, IsTransient(err))
}

func TestOllamaProvider_Generate_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("model 'llama3.1' not found"))
	}))
	defer server.Close()

	_, err := newTestOllama(t, server.URL).Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.False(t, IsTransient(err), "404 is permanent")
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaProvider_Generate_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "  ", Done: true})
	}))
	defer server.Close()

	_, err := newTestOllama(t, server.URL).Generate(context.Background(), GenerateRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models": []}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	provider := newTestOllama(t, server.URL)
	assert.True(t, provider.IsAvailable(context.Background()))

	server.Close()
	assert.False(t, provider.IsAvailable(context.Background()), "server is gone")
}

func TestNewOllamaProvider_RequiresModel(t *testing.T) {
	_, err := NewOllamaProvider(Config{}, nil)
	assert.Error(t, err)
}
