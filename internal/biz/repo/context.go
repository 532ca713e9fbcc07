package repo

import (
	"context"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

// ContextRepo persists named contexts
type ContextRepo interface {
	// List returns all contexts in insertion order
	List(ctx context.Context) ([]domain.ContextRecord, error)

	// Upsert inserts a context or replaces the value of an existing one,
	// keeping its position
	Upsert(ctx context.Context, name, value string) error

	// Delete removes a context. Deleting a missing name is not an error
	Delete(ctx context.Context, name string) error

	Close() error
}
