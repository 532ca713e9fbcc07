package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
)

// ReservedNames tells which names are taken by directives
type ReservedNames interface {
	IsReserved(name string) bool
}

// PrivilegeChecker tells whether a user may administer the bot
type PrivilegeChecker interface {
	IsPrivileged(ctx context.Context, userID string) (bool, error)
}

// ContextStoreUsecase manages named contexts. Reads are served from an
// in-memory snapshot that is reloaded after every mutation.
type ContextStoreUsecase struct {
	repo     repo.ContextRepo
	reserved ReservedNames
	checker  PrivilegeChecker
	mode     domain.PermissionMode
	admins   []string
	logger   *slog.Logger

	mu    sync.RWMutex
	cache []domain.ContextRecord
}

// ContextStoreConfig configures who may change contexts
type ContextStoreConfig struct {
	Mode     domain.PermissionMode
	AdminIDs []string
}

// NewContextStoreUsecase creates a new context store usecase
func NewContextStoreUsecase(
	contextRepo repo.ContextRepo,
	reserved ReservedNames,
	checker PrivilegeChecker,
	cfg ContextStoreConfig,
	logger *slog.Logger,
) *ContextStoreUsecase {
	if cfg.Mode == "" {
		cfg.Mode = domain.PermissionAdmin
	}
	return &ContextStoreUsecase{
		repo:     contextRepo,
		reserved: reserved,
		checker:  checker,
		mode:     cfg.Mode,
		admins:   cfg.AdminIDs,
		logger:   logger,
	}
}

// Load fills the snapshot from the repository.
func (uc *ContextStoreUsecase) Load(ctx context.Context) error {
	records, err := uc.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list contexts: %w", err)
	}
	uc.mu.Lock()
	uc.cache = records
	uc.mu.Unlock()
	return nil
}

// List returns the stored contexts in insertion order.
func (uc *ContextStoreUsecase) List() []domain.ContextRecord {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return slices.Clone(uc.cache)
}

// Lookup returns the context with the given name.
func (uc *ContextStoreUsecase) Lookup(name string) (domain.ContextRecord, bool) {
	name = domain.NormalizeContextName(name)
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	for _, r := range uc.cache {
		if r.Name == name {
			return r, true
		}
	}
	return domain.ContextRecord{}, false
}

// Upsert stores value under name on behalf of caller.
func (uc *ContextStoreUsecase) Upsert(ctx context.Context, caller, name, value string) error {
	name = domain.NormalizeContextName(name)
	if name == "" {
		return fmt.Errorf("%w: context name is empty", domain.ErrInvalidArgument)
	}
	if uc.reserved != nil && uc.reserved.IsReserved(name) {
		return fmt.Errorf("%w: %q", domain.ErrReservedName, name)
	}
	if value == "" {
		return fmt.Errorf("%w: context value is empty", domain.ErrInvalidArgument)
	}
	if err := uc.authorize(ctx, caller); err != nil {
		return err
	}

	if err := uc.repo.Upsert(ctx, name, value); err != nil {
		return fmt.Errorf("upsert context: %w", err)
	}
	uc.logger.Info("context saved", "name", name, "caller", caller)
	return uc.Load(ctx)
}

// Delete removes name on behalf of caller. Removing a missing context succeeds.
func (uc *ContextStoreUsecase) Delete(ctx context.Context, caller, name string) error {
	name = domain.NormalizeContextName(name)
	if name == "" {
		return fmt.Errorf("%w: context name is empty", domain.ErrInvalidArgument)
	}
	if err := uc.authorize(ctx, caller); err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete context: %w", err)
	}
	uc.logger.Info("context deleted", "name", name, "caller", caller)
	return uc.Load(ctx)
}

func (uc *ContextStoreUsecase) authorize(ctx context.Context, caller string) error {
	if uc.mode == domain.PermissionOpen {
		return nil
	}
	if caller != "" && slices.Contains(uc.admins, caller) {
		return nil
	}
	if uc.checker == nil || caller == "" {
		return domain.ErrPermissionDenied
	}
	ok, err := uc.checker.IsPrivileged(ctx, caller)
	if err != nil {
		uc.logger.Warn("privilege check failed", "caller", caller, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	if !ok {
		return domain.ErrPermissionDenied
	}
	return nil
}
