package reindex

import (
	"context"
	"sync"

	"github.com/yanqian/campus-faq/internal/domain/faq"
)

// Handler rebuilds the local index after a record store change.
type Handler func(ctx context.Context, reason string) error

// HandlerNotifier supports setting the rebuild handler after construction.
type HandlerNotifier interface {
	faq.ReindexNotifier
	SetHandler(handler Handler)
}

// ImmediateNotifier calls the handler in-line on every notification.
type ImmediateNotifier struct {
	mu      sync.RWMutex
	handler Handler
}

// NewImmediateNotifier constructs the notifier.
func NewImmediateNotifier(handler Handler) *ImmediateNotifier {
	return &ImmediateNotifier{handler: handler}
}

// SetHandler replaces the handler used for notifications.
func (n *ImmediateNotifier) SetHandler(handler Handler) {
	n.mu.Lock()
	n.handler = handler
	n.mu.Unlock()
}

// Notify runs the handler synchronously so callers observe the new index on return.
func (n *ImmediateNotifier) Notify(ctx context.Context, reason string) error {
	n.mu.RLock()
	handler := n.handler
	n.mu.RUnlock()
	if handler == nil {
		return nil
	}
	return handler(ctx, reason)
}

var _ HandlerNotifier = (*ImmediateNotifier)(nil)
