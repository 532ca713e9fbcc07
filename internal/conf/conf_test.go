package conf

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FEISHU_APP_ID", "cli_test")
	t.Setenv("FEISHU_APP_SECRET", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MODELS_CONFIG_PATH", "")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Chdir(t.TempDir())

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "GPT", cfg.Feishu.BotName)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Prompt.DefaultModel)
	assert.Equal(t, "!", cfg.Prompt.DirectiveMarker)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, domain.PermissionAdmin, cfg.Context.Permission)
	assert.Equal(t, 100, cfg.History.FetchLimit)
	assert.False(t, cfg.History.Summarize)
	assert.Equal(t, 4, cfg.History.SummaryMinDropped)
	assert.Equal(t, "tiktoken", cfg.Tokenizer)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.True(t, strings.HasSuffix(cfg.Context.DBPath, filepath.Join(".feishu-gpt", "contexts.db")))
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("BOT_NAME", "Helper")
	t.Setenv("DEFAULT_MODEL", "gpt-4")
	t.Setenv("CONTEXT_PERMISSION", "OPEN")
	t.Setenv("ADMIN_IDS", "ou_1, ou_2,,")
	t.Setenv("HISTORY_FETCH_LIMIT", "40")
	t.Setenv("SUMMARIZE_OVERFLOW", "true")
	t.Setenv("COMPLETION_TIMEOUT_SECONDS", "5")
	t.Setenv("MAX_REPLY_TOKENS", "256")
	t.Setenv("CONTEXT_DB_PATH", "/tmp/ctx.db")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Helper", cfg.Feishu.BotName)
	assert.Equal(t, domain.PermissionOpen, cfg.Context.Permission)
	assert.Equal(t, []string{"ou_1", "ou_2"}, cfg.Context.AdminIDs)
	assert.Equal(t, 40, cfg.History.FetchLimit)
	assert.True(t, cfg.History.Summarize)
	assert.Equal(t, 5*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, "/tmp/ctx.db", cfg.Context.DBPath)

	prompt := cfg.ToPromptConfig()
	assert.Equal(t, "gpt-4", prompt.DefaultModel)
	assert.Equal(t, 256, prompt.MaxReplyTokens)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"missing feishu", map[string]string{"FEISHU_APP_ID": ""}, "FEISHU_APP_ID/FEISHU_APP_SECRET"},
		{"missing key", map[string]string{"OPENAI_API_KEY": ""}, "OPENAI_API_KEY"},
		{"unknown default model", map[string]string{"DEFAULT_MODEL": "llama"}, "DEFAULT_MODEL"},
		{"bad permission", map[string]string{"CONTEXT_PERMISSION": "everyone"}, "CONTEXT_PERMISSION"},
		{"missing models file", map[string]string{"MODELS_CONFIG_PATH": "/nonexistent/models.yaml"}, "MODELS_CONFIG_PATH"},
		{"bad timeout", map[string]string{"COMPLETION_TIMEOUT_SECONDS": "0"}, "COMPLETION_TIMEOUT_SECONDS"},
		{"reply fills window", map[string]string{"MAX_REPLY_TOKENS": "4096"}, "MAX_REPLY_TOKENS"},
		{"negative reply", map[string]string{"MAX_REPLY_TOKENS": "-1"}, "MAX_REPLY_TOKENS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := LoadFromEnv().Validate()
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidate_MaxReplyTokensBelowWindow(t *testing.T) {
	setRequiredEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("MAX_REPLY_TOKENS", "4095")
	assert.NoError(t, LoadFromEnv().Validate())

	t.Setenv("DEFAULT_MODEL", "gpt-4o")
	t.Setenv("MAX_REPLY_TOKENS", "16000")
	assert.NoError(t, LoadFromEnv().Validate())
}

func TestLogConfig(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogConfig{Level: "DEBUG"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LogConfig{Level: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: "chatty"}.SlogLevel())

	logger := NewLogger(LogConfig{Level: "error", Format: "json"}, os.Stderr)
	assert.IsType(t, &slog.JSONHandler{}, logger.Handler())
}
