package sitecontent

import (
	"context"
	"fmt"
	"log/slog"
)

// Hook system allows extending update behavior without modifying core code.
// Hooks are called at specific points of the merge-and-persist cycle.

// Hooks defines all available lifecycle hooks
type Hooks struct {
	// Update lifecycle hooks
	BeforeUpdate []BeforeUpdateHook
	AfterUpdate  []AfterUpdateHook

	// Invalidation hooks, called once per invalidator after it returns
	AfterInvalidate []AfterInvalidateHook

	// Error hooks
	OnError []ErrorHook
}

// HookContext carries information through the hook chain
type HookContext struct {
	Context   context.Context
	Metadata  map[string]interface{} // Custom metadata passed between hooks
	StopChain bool                   // Set to true to stop processing remaining hooks
}

// NewHookContext creates a new hook context
func NewHookContext(ctx context.Context) *HookContext {
	return &HookContext{
		Context:  ctx,
		Metadata: make(map[string]interface{}),
	}
}

// BeforeUpdateHook is called before a patch is merged. Returning an error
// rejects the update.
type BeforeUpdateHook func(hctx *HookContext, key string, patch Document) error

// AfterUpdateHook is called after the merged document was saved. Errors are
// logged; the write already happened.
type AfterUpdateHook func(hctx *HookContext, key string, sections []string, doc Document) error

// AfterInvalidateHook is called after an invalidator handled an event. err is
// nil on success.
type AfterInvalidateHook func(hctx *HookContext, event InvalidationEvent, err error)

// ErrorHook is called when an operation fails
type ErrorHook func(hctx *HookContext, operation string, err error)

// merge appends the hooks of other to h
func (h *Hooks) merge(other *Hooks) {
	if other == nil {
		return
	}
	h.BeforeUpdate = append(h.BeforeUpdate, other.BeforeUpdate...)
	h.AfterUpdate = append(h.AfterUpdate, other.AfterUpdate...)
	h.AfterInvalidate = append(h.AfterInvalidate, other.AfterInvalidate...)
	h.OnError = append(h.OnError, other.OnError...)
}

// executeBeforeUpdate runs all BeforeUpdate hooks
func (h *Hooks) executeBeforeUpdate(ctx context.Context, key string, patch Document) error {
	if len(h.BeforeUpdate) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.BeforeUpdate {
		if err := hook(hctx, key, patch); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

// executeAfterUpdate runs all AfterUpdate hooks
func (h *Hooks) executeAfterUpdate(ctx context.Context, logger *slog.Logger, key string, sections []string, doc Document) {
	if len(h.AfterUpdate) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterUpdate {
		if err := hook(hctx, key, sections, doc); err != nil {
			logger.Warn("After update hook failed", "document_key", key, "error", err)
		}
		if hctx.StopChain {
			break
		}
	}
}

// executeAfterInvalidate runs all AfterInvalidate hooks
func (h *Hooks) executeAfterInvalidate(ctx context.Context, event InvalidationEvent, err error) {
	if len(h.AfterInvalidate) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterInvalidate {
		hook(hctx, event, err)
		if hctx.StopChain {
			break
		}
	}
}

// executeOnError runs all OnError hooks
func (h *Hooks) executeOnError(ctx context.Context, operation string, err error) {
	if len(h.OnError) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.OnError {
		hook(hctx, operation, err)
		if hctx.StopChain {
			break
		}
	}
}

// LoggingHook logs every saved update and failure
func LoggingHook(logger *slog.Logger) *Hooks {
	return &Hooks{
		AfterUpdate: []AfterUpdateHook{
			func(hctx *HookContext, key string, sections []string, doc Document) error {
				logger.Info("Content updated", "document_key", key, "sections", sections)
				return nil
			},
		},
		OnError: []ErrorHook{
			func(hctx *HookContext, operation string, err error) {
				logger.Error("Content operation failed", "operation", operation, "error", err)
			},
		},
	}
}

// ProtectSections rejects patches that write any of the given sections
func ProtectSections(sections ...string) BeforeUpdateHook {
	protected := make(map[string]struct{}, len(sections))
	for _, s := range sections {
		protected[s] = struct{}{}
	}
	return func(hctx *HookContext, key string, patch Document) error {
		for section := range patch {
			if _, ok := protected[section]; ok {
				return &UpdateError{Key: key, Op: "validate", Err: fmt.Errorf("%w: section %q is read-only", ErrUpdateRejected, section)}
			}
		}
		return nil
	}
}
