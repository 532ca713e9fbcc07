package repo

import (
	"context"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

// CompletionRepo is the completion service interface
type CompletionRepo interface {
	// Complete sends the prompt to the model and returns its first choice.
	// Failures are *domain.TransportError or *domain.ModelError
	Complete(ctx context.Context, entries []domain.Entry, model string, maxTokens int) (*domain.Completion, error)
}
