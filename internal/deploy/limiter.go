package deploy

// limiter.go bounds how many restores run against the platform at once.
//
// Slots are a buffered channel. A single restore waits up to maxWait for a
// slot before failing with ErrTooManyDeployments. Batch items were admitted
// with their batch, so they queue until a slot frees or the batch context
// ends, and a batch never runs more workers than there are slots.
// WaitForDrain lets the server finish in-flight restores before shutting
// down.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyDeployments is returned when no deploy slot frees up within the
// wait window. Callers should retry after a short delay.
var ErrTooManyDeployments = errors.New("too many concurrent deployments, please try again later")

// DefaultMaxConcurrent is the default number of parallel restores.
const DefaultMaxConcurrent = 4

// DefaultMaxWait is how long to wait for a slot before rejecting.
const DefaultMaxWait = 30 * time.Second

// Limiter controls concurrent restores with a semaphore.
type Limiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter allows at most maxConcurrent simultaneous restores. Callers that
// cannot get a slot within maxWait receive ErrTooManyDeployments.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	return &Limiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot for a single restore, waiting at most maxWait. The
// caller must Release it when the restore ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.take(waitCtx, "single"); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		limiterRejections.Inc()
		return ErrTooManyDeployments
	}
	return nil
}

// AcquireQueued takes a slot for a batch item, waiting until one frees up or
// ctx is done. The caller must Release it.
func (l *Limiter) AcquireQueued(ctx context.Context) error {
	return l.take(ctx, "batch")
}

func (l *Limiter) take(ctx context.Context, mode string) error {
	start := time.Now()
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		slotsInUse.Inc()
		slotWait.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clamp bounds a requested batch parallelism to the slot count. n <= 0 asks
// for every slot.
func (l *Limiter) Clamp(n int) int {
	if n <= 0 || n > cap(l.semaphore) {
		return cap(l.semaphore)
	}
	return n
}

// TryAcquire takes a slot without blocking.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		slotsInUse.Inc()
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	slotsInUse.Dec()

	<-l.semaphore
}

// ActiveCount returns the number of restores holding a slot.
func (l *Limiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *Limiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *Limiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no restore holds a slot or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a point-in-time view of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status reports the limiter state for the health endpoint.
func (l *Limiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
