package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "test-model",
	}, WithRetryPolicy(retry.DefaultPolicy().NoWait()), WithLimiter(nil))
}

func TestCompleteSendsPromptAndChunk(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"summary\":\"ok\"}"}}]}`))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Complete(context.Background(), "system", "Analyze this.", "hello world")

	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Content)
	assert.Equal(t, "Analyze this.\n\nTranscript:\nhello world", got.Messages[1].Content)
	assert.Equal(t, "test-model", got.Model)
}

func TestCompleteRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Complete(context.Background(), "s", "u", "")

	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), "s", "u", "")

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	c := NewClient(config.LLMConfig{BaseURL: "http://127.0.0.1:0"})
	_, err := c.Complete(context.Background(), "s", "u", "chunk")
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"commentary", "Sure! Here it is: {\"a\":{\"b\":2}} Hope that helps.", `{"a":{"b":2}}`, false},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"no braces", "I cannot help with that.", "", true},
		{"reversed", "} nope {", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Summary string `json:"summary"`
	}
	require.NoError(t, DecodeJSON("noise {\"summary\":\"hi\"} noise", &target))
	assert.Equal(t, "hi", target.Summary)

	assert.Error(t, DecodeJSON("{not json}", &target))
}
