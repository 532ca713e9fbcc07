package domain

import (
	"errors"
	"testing"
)

func TestModelCatalog_Resolve(t *testing.T) {
	catalog := DefaultModelCatalog()

	tests := []struct {
		model string
		want  string
	}{
		{"gpt-3.5-turbo-0301", "gpt-3.5-turbo-0301"},
		{"gpt-3.5-turbo", "gpt-3.5-turbo-0613"},
		{"gpt-3.5-turbo-1106", "gpt-3.5-turbo-0613"},
		{"gpt-3.5-turbo-16k", "gpt-3.5-turbo-16k-0613"},
		{"gpt-4", "gpt-4-0613"},
		{"gpt-4-0314", "gpt-4-0314"},
		{"gpt-4-32k", "gpt-4-32k-0613"},
		{"gpt-4o-mini", "gpt-4o-2024-08-06"},
		{"moonshot-v1-32k", "moonshot-v1-8k"},
	}
	for _, tt := range tests {
		spec, err := catalog.Resolve(tt.model)
		if err != nil {
			t.Errorf("Resolve(%q) unexpected error: %v", tt.model, err)
			continue
		}
		if spec.Name != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.model, spec.Name, tt.want)
		}
	}
}

func TestModelCatalog_ResolveUnsupported(t *testing.T) {
	_, err := DefaultModelCatalog().Resolve("llama-2")
	if !errors.Is(err, ErrUnsupportedModel) {
		t.Errorf("Expected ErrUnsupportedModel, got %v", err)
	}
}

func TestModelCatalog_Alias(t *testing.T) {
	catalog := DefaultModelCatalog()
	if model, ok := catalog.Alias("GPT4"); !ok || model != "gpt-4" {
		t.Errorf("Expected gpt4 alias to select gpt-4, got %q", model)
	}
	if _, ok := catalog.Alias("stream"); ok {
		t.Error("Expected stream not to be a model alias")
	}
}

func TestModelSpec_Budget(t *testing.T) {
	spec := ModelSpec{ContextWindow: 4096, ReplyReserve: 1024}
	if spec.Budget() != 3072 {
		t.Errorf("Expected budget 3072, got %d", spec.Budget())
	}
}
