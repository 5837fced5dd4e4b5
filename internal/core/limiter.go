package core

// limiter.go bounds concurrent batch ingestion per entity.
//
// The duplicate check and the bulk insert of one batch are separate store
// round trips, so two batches of the same entity running at once can both
// pass the check for the same key. With a capacity of one the limiter
// serializes batches per entity; the store's unique index still rejects
// anything that slips through from other writers.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyBatches is returned when no slot frees up within the wait time.
var ErrTooManyBatches = errors.New("too many batches in progress, please try again later")

// DefaultMaxConcurrentBatches serializes batches.
const DefaultMaxConcurrentBatches = 1

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// IngestLimiter is a counting semaphore with a bounded wait.
type IngestLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewIngestLimiter creates a limiter with maxConcurrent slots.
func NewIngestLimiter(maxConcurrent int, maxWait time.Duration) *IngestLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentBatches
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &IngestLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits for a slot. The caller must Release after a nil return.
func (l *IngestLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyBatches
	}
}

// Release frees a slot taken by Acquire.
func (l *IngestLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.slots
}

// ActiveCount returns the number of batches holding a slot.
func (l *IngestLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no batch holds a slot or ctx ends.
func (l *IngestLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
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

// LimiterStatus is a snapshot for health output.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *IngestLimiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
