package common

import (
	"errors"
	"sync/atomic"
)

// ErrReentrantCall signals that a guarded action was invoked while another
// guarded action on the same instance was still in flight.
var ErrReentrantCall = errors.New("reentrant call rejected")

// Latch serializes guarded actions. Acquire fails immediately when the latch
// is held; it never queues or blocks, so an overlapping action can observe the
// rejection instead of a half-updated ledger.
type Latch struct {
	held atomic.Bool
}

// Acquire takes the latch or fails with ErrReentrantCall.
func (l *Latch) Acquire() error {
	if l == nil {
		return nil
	}
	if !l.held.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Release frees the latch. Releasing an unheld latch is a no-op.
func (l *Latch) Release() {
	if l == nil {
		return
	}
	l.held.Store(false)
}
