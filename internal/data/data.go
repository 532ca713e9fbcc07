package data

import (
	"log/slog"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/feishu"
)

// Repositories contains all repositories
type Repositories struct {
	Message    repo.MessageRepo
	Completion repo.CompletionRepo
	Context    repo.ContextRepo
}

// NewRepositories creates all repositories
func NewRepositories(
	feishuClient *feishu.Client,
	completionCfg CompletionConfig,
	contextDBPath string,
	logger *slog.Logger,
) (*Repositories, error) {
	contextRepo, err := NewContextRepo(contextDBPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Message:    NewFeishuRepo(feishuClient, logger.With("component", "feishu")),
		Completion: NewCompletionRepo(completionCfg),
		Context:    contextRepo,
	}, nil
}
