package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/usecase"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/tokenizer"
)

// memoryContextRepo implements repo.ContextRepo for testing
type memoryContextRepo struct {
	mu      sync.Mutex
	records []domain.ContextRecord
}

func (m *memoryContextRepo) List(ctx context.Context) ([]domain.ContextRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ContextRecord(nil), m.records...), nil
}

func (m *memoryContextRepo) Upsert(ctx context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].Name == name {
			m.records[i].Value = value
			return nil
		}
	}
	m.records = append(m.records, domain.ContextRecord{Name: name, Value: value})
	return nil
}

func (m *memoryContextRepo) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].Name == name {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryContextRepo) Close() error { return nil }

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := domain.DefaultModelCatalog()
	directives := usecase.NewDirectiveTable(catalog)
	contexts := usecase.NewContextStoreUsecase(&memoryContextRepo{}, directives, nil,
		usecase.ContextStoreConfig{Mode: domain.PermissionAdmin, AdminIDs: []string{"ou_admin"}}, logger)
	require.NoError(t, contexts.Load(context.Background()))
	estimator := usecase.NewTokenEstimator(catalog, tokenizer.Heuristic{})

	return NewServer(contexts, estimator, "gpt-3.5-turbo", 0, logger).Handler()
}

func do(t *testing.T, h http.Handler, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestContextLifecycle(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPut, "/api/contexts/Reviewer", "ou_admin", map[string]string{"value": "Review the code."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/contexts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Contexts []ContextItem `json:"contexts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Contexts, 1)
	assert.Equal(t, "reviewer", list.Contexts[0].Name)
	assert.Equal(t, "Review the code.", list.Contexts[0].Value)

	w = do(t, h, http.MethodDelete, "/api/contexts/reviewer", "ou_admin", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/api/contexts", "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Contexts)
}

func TestContextErrors(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		want   int
	}{
		{"reserved name", http.MethodPut, "/api/contexts/help", "ou_admin", map[string]string{"value": "x"}, http.StatusConflict},
		{"not an admin", http.MethodPut, "/api/contexts/notes", "ou_other", map[string]string{"value": "x"}, http.StatusForbidden},
		{"no caller", http.MethodDelete, "/api/contexts/notes", "", nil, http.StatusForbidden},
		{"empty value", http.MethodPut, "/api/contexts/notes", "ou_admin", map[string]string{"value": ""}, http.StatusBadRequest},
		{"bad body", http.MethodPut, "/api/contexts/notes", "ou_admin", "not an object", http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/contexts", "ou_admin", nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestEstimate(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/estimate", "", EstimateRequest{
		Messages: []domain.Entry{
			{Role: domain.RoleSystem, Content: "be brief"},
			{Role: domain.RoleUser, Content: "hello"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "gpt-3.5-turbo", resp.Model)
	assert.Positive(t, resp.Tokens)
	assert.Equal(t, 4096-1024, resp.Budget)
	assert.True(t, resp.Fits)
}

func TestEstimate_UnsupportedModel(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/api/estimate", "", EstimateRequest{Model: "llama"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
