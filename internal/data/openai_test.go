package data

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

func newTestCompletionRepo(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *completionRepo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCompletionRepo(CompletionConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
		Timeout: timeout,
	}).(*completionRepo)
}

func TestCompletionRepo_Complete(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	r := newTestCompletionRepo(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/chat/completions", req.URL.Path)
		assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
		body, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4-0613",
			"choices":[{"index":0,"message":{"role":"assistant","content":"hello back"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	}, time.Second)

	completion, err := r.Complete(context.Background(), []domain.Entry{
		{Role: domain.RoleSystem, Content: "base"},
		{Role: domain.RoleAssistant, Content: "earlier"},
		{Role: domain.RoleUser, Content: "hello"},
	}, "gpt-4", 256)
	require.NoError(t, err)

	assert.Equal(t, "hello back", completion.Text)
	assert.Equal(t, 12, completion.PromptTokens)
	assert.Equal(t, 3, completion.CompletionTokens)

	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "user", got.Messages[2].Role)
}

func TestCompletionRepo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transport bool
	}{
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestCompletionRepo(t, func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
			}, time.Second)

			_, err := r.Complete(context.Background(), []domain.Entry{{Role: domain.RoleUser, Content: "hi"}}, "gpt-4", 10)
			require.Error(t, err)

			var transportErr *domain.TransportError
			var modelErr *domain.ModelError
			if tt.transport {
				assert.ErrorAs(t, err, &transportErr)
			} else {
				require.ErrorAs(t, err, &modelErr)
				assert.Equal(t, tt.status, modelErr.StatusCode)
				assert.Equal(t, "boom", modelErr.Message)
			}
		})
	}
}

func TestCompletionRepo_EmptyChoices(t *testing.T) {
	r := newTestCompletionRepo(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","choices":[],"usage":{}}`)
	}, time.Second)

	_, err := r.Complete(context.Background(), []domain.Entry{{Role: domain.RoleUser, Content: "hi"}}, "gpt-4", 10)
	var modelErr *domain.ModelError
	assert.ErrorAs(t, err, &modelErr)
}

func TestCompletionRepo_Timeout(t *testing.T) {
	r := newTestCompletionRepo(t, func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-req.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := r.Complete(context.Background(), []domain.Entry{{Role: domain.RoleUser, Content: "hi"}}, "gpt-4", 10)
	var transportErr *domain.TransportError
	assert.ErrorAs(t, err, &transportErr)
}
