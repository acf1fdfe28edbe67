package capture

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Exclusive hands out a single lease on an underlying Opener. A second
// Open while the lease is held fails fast with ErrSourceBusy rather than
// queueing.
type Exclusive struct {
	opener Opener
	sem    *semaphore.Weighted
}

// NewExclusive wraps opener with a single-holder lease.
func NewExclusive(opener Opener) *Exclusive {
	return &Exclusive{
		opener: opener,
		sem:    semaphore.NewWeighted(1),
	}
}

// Open acquires the lease and opens the source. The lease is returned when
// the source is released.
func (e *Exclusive) Open(ctx context.Context) (Source, error) {
	if !e.sem.TryAcquire(1) {
		return nil, ErrSourceBusy
	}

	src, err := e.opener.Open(ctx)
	if err != nil {
		e.sem.Release(1)
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	return &guarded{
		Source: src,
		after:  func() { e.sem.Release(1) },
	}, nil
}

// Busy reports whether the lease is currently held.
func (e *Exclusive) Busy() bool {
	if e.sem.TryAcquire(1) {
		e.sem.Release(1)
		return false
	}
	return true
}
