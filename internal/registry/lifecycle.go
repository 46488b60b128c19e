package registry

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// IndexHook is executed when an index is created or dropped.
// Hooks are called synchronously after the catalog change.
type IndexHook interface {
	// OnCreate is called once for a newly created index.
	// If this hook returns an error, the create operation reports it.
	OnCreate(ctx context.Context, collection *core.Collection, index core.Index) error

	// OnDrop is called after an index definition has been removed.
	OnDrop(ctx context.Context, collection *core.Collection, index core.Index) error
}

// IndexHookFunc adapts plain functions to IndexHook. Nil functions are skipped.
type IndexHookFunc struct {
	OnCreateFunc func(ctx context.Context, collection *core.Collection, index core.Index) error
	OnDropFunc   func(ctx context.Context, collection *core.Collection, index core.Index) error
}

// OnCreate calls the OnCreateFunc if it's not nil.
func (f IndexHookFunc) OnCreate(ctx context.Context, collection *core.Collection, index core.Index) error {
	if f.OnCreateFunc != nil {
		return f.OnCreateFunc(ctx, collection, index)
	}
	return nil
}

// OnDrop calls the OnDropFunc if it's not nil.
func (f IndexHookFunc) OnDrop(ctx context.Context, collection *core.Collection, index core.Index) error {
	if f.OnDropFunc != nil {
		return f.OnDropFunc(ctx, collection, index)
	}
	return nil
}

// LifecycleManager holds the index hooks and runs them in registration order.
type LifecycleManager struct {
	mu    sync.RWMutex
	hooks []IndexHook
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		hooks: make([]IndexHook, 0),
	}
}

// RegisterHook registers a hook.
func (lm *LifecycleManager) RegisterHook(hook IndexHook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = append(lm.hooks, hook)
}

func (lm *LifecycleManager) snapshot() []IndexHook {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	hooks := make([]IndexHook, len(lm.hooks))
	copy(hooks, lm.hooks)
	return hooks
}

// ExecuteCreateHooks runs every create hook. Execution stops at the first error.
func (lm *LifecycleManager) ExecuteCreateHooks(ctx context.Context, collection *core.Collection, index core.Index) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnCreate(ctx, collection, index); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteDropHooks runs every drop hook. Execution stops at the first error.
func (lm *LifecycleManager) ExecuteDropHooks(ctx context.Context, collection *core.Collection, index core.Index) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnDrop(ctx, collection, index); err != nil {
			return err
		}
	}
	return nil
}

// HookCount returns the number of registered hooks.
func (lm *LifecycleManager) HookCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.hooks)
}
