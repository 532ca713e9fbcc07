package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Completion service configuration
	OpenAI OpenAIConfig

	// Prompt configuration
	Prompt PromptConfigValues

	// Context store configuration
	Context ContextConfig

	// History configuration
	History HistoryConfig

	// Models configuration (loaded from YAML)
	Models *domain.ModelCatalog

	// Tokenizer kind: tiktoken or heuristic
	Tokenizer string

	// Log configuration
	Log LogConfig

	// Admin API port, 0 disables the API
	APIPort int

	modelsErr error
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	BotName   string // Bot display name, matched in @mentions and /commands
}

// OpenAIConfig contains completion service configuration
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // empty for api.openai.com, or any compatible endpoint
	Timeout        time.Duration
	MaxReplyTokens int
}

// PromptConfigValues contains prompt-related configuration values
type PromptConfigValues struct {
	SystemPrompt    string
	DefaultModel    string
	DirectiveMarker string
}

// ContextConfig contains context store configuration
type ContextConfig struct {
	DBPath     string
	Permission domain.PermissionMode
	AdminIDs   []string
}

// HistoryConfig contains history settings
type HistoryConfig struct {
	FetchLimit        int
	Summarize         bool
	SummaryMinDropped int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Context DB path
	contextDBPath := os.Getenv("CONTEXT_DB_PATH")
	if contextDBPath == "" {
		homeDir, _ := os.UserHomeDir()
		contextDBPath = filepath.Join(homeDir, ".feishu-gpt", "contexts.db")
	}

	// Load models from YAML
	models, modelsErr := LoadModelsConfig(os.Getenv("MODELS_CONFIG_PATH"))

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			BotName:   envOrDefault("BOT_NAME", "GPT"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        os.Getenv("OPENAI_BASE_URL"),
			Timeout:        time.Duration(envInt("COMPLETION_TIMEOUT_SECONDS", 60)) * time.Second,
			MaxReplyTokens: envInt("MAX_REPLY_TOKENS", 0),
		},
		Prompt: PromptConfigValues{
			SystemPrompt:    envOrDefault("SYSTEM_PROMPT", usecase.DefaultPromptConfig.SystemPrompt),
			DefaultModel:    envOrDefault("DEFAULT_MODEL", usecase.DefaultPromptConfig.DefaultModel),
			DirectiveMarker: envOrDefault("DIRECTIVE_MARKER", usecase.DefaultDirectiveMarker),
		},
		Context: ContextConfig{
			DBPath:     contextDBPath,
			Permission: domain.PermissionMode(strings.ToLower(envOrDefault("CONTEXT_PERMISSION", string(domain.PermissionAdmin)))),
			AdminIDs:   splitList(os.Getenv("ADMIN_IDS")),
		},
		History: HistoryConfig{
			FetchLimit:        envInt("HISTORY_FETCH_LIMIT", usecase.DefaultHistoryFetchLimit),
			Summarize:         os.Getenv("SUMMARIZE_OVERFLOW") == "true",
			SummaryMinDropped: envInt("SUMMARY_MIN_DROPPED", usecase.DefaultSummaryMinDropped),
		},
		Models:    models,
		Tokenizer: envOrDefault("TOKENIZER", "tiktoken"),
		Log: LogConfig{
			Level:  envOrDefault("LOG_LEVEL", "info"),
			Format: envOrDefault("LOG_FORMAT", "text"),
		},
		APIPort:   envInt("API_PORT", 8080),
		modelsErr: modelsErr,
	}
}

// ToPromptConfig converts to prompt configuration
func (c *Config) ToPromptConfig() usecase.PromptConfig {
	return usecase.PromptConfig{
		SystemPrompt:   c.Prompt.SystemPrompt,
		DefaultModel:   c.Prompt.DefaultModel,
		MaxReplyTokens: c.OpenAI.MaxReplyTokens,
	}
}

// ToContextStoreConfig converts to context store configuration
func (c *ContextConfig) ToContextStoreConfig() usecase.ContextStoreConfig {
	return usecase.ContextStoreConfig{
		Mode:     c.Permission,
		AdminIDs: c.AdminIDs,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.modelsErr != nil {
		return &ConfigError{Field: "MODELS_CONFIG_PATH", Message: c.modelsErr.Error()}
	}
	if c.Models == nil {
		return &ConfigError{Field: "MODELS_CONFIG_PATH", Message: "no model table"}
	}
	spec, err := c.Models.Resolve(c.Prompt.DefaultModel)
	if err != nil {
		return &ConfigError{Field: "DEFAULT_MODEL", Message: err.Error()}
	}
	if c.OpenAI.MaxReplyTokens < 0 {
		return &ConfigError{Field: "MAX_REPLY_TOKENS", Message: "must not be negative"}
	}
	if c.OpenAI.MaxReplyTokens >= spec.ContextWindow {
		return &ConfigError{
			Field:   "MAX_REPLY_TOKENS",
			Message: fmt.Sprintf("must be below the %d token context window of %s", spec.ContextWindow, spec.Name),
		}
	}
	switch c.Context.Permission {
	case domain.PermissionAdmin, domain.PermissionOpen:
	default:
		return &ConfigError{Field: "CONTEXT_PERMISSION", Message: "must be admin or open"}
	}
	if strings.ContainsAny(c.Prompt.DirectiveMarker, " \t\n") || c.Prompt.DirectiveMarker == "" {
		return &ConfigError{Field: "DIRECTIVE_MARKER", Message: "must be non-empty without whitespace"}
	}
	if c.OpenAI.Timeout <= 0 {
		return &ConfigError{Field: "COMPLETION_TIMEOUT_SECONDS", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
