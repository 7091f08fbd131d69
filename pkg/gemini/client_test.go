package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func TestGenerateText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "systemInstruction")
		gc, ok := body["generationConfig"].(map[string]any)
		require.True(t, ok)
		assert.InDelta(t, 0.5, gc["temperature"], 0.0001)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Reviewed "}, {"text": "chapter"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 4},
			"modelVersion": "gemini-2.5-flash-001"
		}`))
	})

	temp := 0.5
	resp, err := c.GenerateText(context.Background(), TextRequest{
		Model:           "gemini-2.5-flash",
		System:          "You are a proofreader.",
		Prompt:          "Review this",
		Temperature:     &temp,
		MaxOutputTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, "Reviewed chapter", resp.Text)
	assert.Equal(t, "gemini-2.5-flash-001", resp.Model)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, int32(12), resp.InputTokens)
	assert.Equal(t, int32(4), resp.OutputTokens)
}

func TestGenerateText_NoCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})

	_, err := c.GenerateText(context.Background(), TextRequest{Model: "gemini-2.5-flash", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestGenerateText_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`))
	})

	_, err := c.GenerateText(context.Background(), TextRequest{Model: "gemini-2.5-flash", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini: generate content")
}
