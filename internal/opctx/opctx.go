// Package opctx provides the per-operation timeout budgets that bound
// every blocking call a worker makes, so no worker can block the
// coordinator thread or its own loop longer than spec section 5 allows.
package opctx

import (
	"context"
	"time"
)

// Budgets for the water-cooler BLE worker's GATT operations.
const (
	ScanTimeout    = 10 * time.Second
	ConnectTimeout = 5 * time.Second
	WriteTimeout   = 2 * time.Second
)

// WithTimeout adds a deadline to ctx unless it already carries an earlier
// one, returning a no-op cancel func in that case (mirrors context's own
// WithDeadline contract: callers always defer the returned cancel).
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if existing, ok := ctx.Deadline(); ok && existing.Before(time.Now().Add(timeout)) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// IsTimeoutOrCanceled reports whether err originates from a context
// deadline or cancellation, the condition BLE operations treat as
// KindBLETimeout rather than a hard failure.
func IsTimeoutOrCanceled(err error) bool {
	return err == context.DeadlineExceeded || err == context.Canceled
}
