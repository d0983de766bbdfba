package core

// limiter.go bounds how many uploads and transformations run at once.
//
// Every operation holds one slot of a buffered-channel semaphore while it
// decodes, transforms or encodes a dataset. When all slots are busy a caller
// waits up to maxWait and then gets ErrTooManyOperations. Shutdown waits for
// in-flight work with WaitForDrain.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyOperations is returned when no slot frees up within the wait
// limit. Clients should retry after a short delay.
var ErrTooManyOperations = errors.New("too many concurrent operations, please try again later")

const (
	// DefaultMaxConcurrentOps is used when the configured limit is not positive.
	DefaultMaxConcurrentOps = 8

	// DefaultMaxWaitTime is how long Acquire waits for a slot by default.
	DefaultMaxWaitTime = 30 * time.Second

	drainPollInterval = 50 * time.Millisecond
)

// OperationLimiter is a counting semaphore with a bounded wait.
type OperationLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
	total   atomic.Int64
	refused atomic.Int64
}

// NewOperationLimiter allows at most maxConcurrent operations at once.
func NewOperationLimiter(maxConcurrent int, maxWait time.Duration) *OperationLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentOps
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &OperationLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. A cancelled ctx wins over
// the wait limit. Every successful Acquire must be paired with Release.
func (l *OperationLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.TryAcquire() {
		return nil
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		l.total.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		l.refused.Add(1)
		return ErrTooManyOperations
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *OperationLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		l.total.Add(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *OperationLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Run executes fn while holding a slot.
func (l *OperationLimiter) Run(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// ActiveCount is the number of operations holding a slot.
func (l *OperationLimiter) ActiveCount() int { return int(l.active.Load()) }

// MaxConcurrent is the number of slots.
func (l *OperationLimiter) MaxConcurrent() int { return cap(l.slots) }

// Available is the number of free slots.
func (l *OperationLimiter) Available() int { return cap(l.slots) - len(l.slots) }

// WaitForDrain blocks until no operation holds a slot or ctx is done.
func (l *OperationLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a point-in-time view of the limiter for /api/status.
type LimiterStatus struct {
	Active        int   `json:"active"`
	Available     int   `json:"available"`
	MaxConcurrent int   `json:"max_concurrent"`
	Completed     int64 `json:"acquired_total"`
	Refused       int64 `json:"refused_total"`
}

// Status reports the current counters.
func (l *OperationLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
		Completed:     l.total.Load(),
		Refused:       l.refused.Load(),
	}
}
