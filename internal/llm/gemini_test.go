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

func geminiReply(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
}

func TestGeminiGenerate(t *testing.T) {
	var gotBody geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(geminiReply(`{"Device": []}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient("test-key", "")
	require.NoError(t, err)
	client.WithBaseURL(server.URL)

	text, err := client.Generate(context.Background(), "extract the query", GenerateOptions{
		Temperature:     0,
		MaxOutputTokens: 512,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"Device": []}`, text)

	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "extract the query", gotBody.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.0, gotBody.GenerationConfig.Temperature)
	assert.Equal(t, 512, gotBody.GenerationConfig.MaxOutputTokens)
}

func TestGeminiGenerateNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer server.Close()

	client, err := NewGeminiClient("test-key", "")
	require.NoError(t, err)
	client.WithBaseURL(server.URL)

	_, err = client.Generate(context.Background(), "prompt", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestGeminiGenerateBadRequestNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": 400, "message": "invalid payload", "status": "INVALID_ARGUMENT"},
		})
	}))
	defer server.Close()

	client, err := NewGeminiClient("test-key", "")
	require.NoError(t, err)
	client.WithBaseURL(server.URL)

	_, err = client.Generate(context.Background(), "prompt", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad request")
	assert.Equal(t, 1, calls)
}

func TestGeminiGenerateRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{"code": 503, "message": "overloaded", "status": "UNAVAILABLE"},
			})
			return
		}
		json.NewEncoder(w).Encode(geminiReply("recovered"))
	}))
	defer server.Close()

	client, err := NewGeminiClient("test-key", "")
	require.NoError(t, err)
	client.WithBaseURL(server.URL)

	text, err := client.Generate(context.Background(), "prompt", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 3, calls)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient("", "model")
	assert.Error(t, err)
}
