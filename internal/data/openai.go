package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
)

// CompletionConfig configures the completion service client
type CompletionConfig struct {
	APIKey  string
	BaseURL string // empty for api.openai.com; https://api.moonshot.cn/v1 etc. for compatible services
	Timeout time.Duration
}

// completionRepo implements the completion repository using an
// OpenAI-compatible chat completion API
type completionRepo struct {
	client  *openai.Client
	timeout time.Duration
}

// NewCompletionRepo creates a new completion repository
func NewCompletionRepo(cfg CompletionConfig) repo.CompletionRepo {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &completionRepo{
		client:  openai.NewClientWithConfig(config),
		timeout: cfg.Timeout,
	}
}

// Complete sends the prompt and returns the first choice
func (r *completionRepo) Complete(ctx context.Context, entries []domain.Entry, model string, maxTokens int) (*domain.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    chatRole(e.Role),
			Content: e.Content,
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, classifyError(model, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &domain.ModelError{Model: model, Message: "no response choices"}
	}

	return &domain.Completion{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func chatRole(role domain.Role) string {
	switch role {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// classifyError maps client errors to transport errors (worth retrying
// later) and model errors (the request itself was rejected).
func classifyError(model string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.HTTPStatusCode) {
			return &domain.TransportError{Op: "chat completion", Err: err}
		}
		return &domain.ModelError{Model: model, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 || retryableStatus(reqErr.HTTPStatusCode) {
			return &domain.TransportError{Op: "chat completion", Err: err}
		}
		return &domain.ModelError{Model: model, StatusCode: reqErr.HTTPStatusCode, Message: fmt.Sprint(reqErr.Err)}
	}

	return &domain.TransportError{Op: "chat completion", Err: err}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
