// Package pool provides the bounded worker pool of the blocking driver.
package pool

import (
	"context"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
)

const (
	maxSize    = 512
	maxBacklog = 1 << 16
)

// Pool limits how many requests hold a worker at once.
// Requests that find every worker busy wait in a bounded backlog,
// like connections in a listen queue; when the backlog is full too,
// they are turned away.
type Pool struct {
	sem     chan struct{}
	backlog chan struct{} // nil means waiting is unbounded
}

// New creates a pool with at least one worker and at most 512.
// The backlog is capped at 65536; a negative backlog lets any number of
// callers wait for a worker.
func New(size, backlog int) *Pool {
	if size <= 0 {
		size = 1
	}
	if size > maxSize {
		size = maxSize
	}
	p := &Pool{sem: make(chan struct{}, size)}
	if backlog > maxBacklog {
		backlog = maxBacklog
	}
	if backlog >= 0 {
		p.backlog = make(chan struct{}, backlog)
	}
	return p
}

// Acquire reserves one worker.
// If every worker is busy, it waits in the backlog until a worker is released
// or ctx is done. It returns apperr.ErrWorkerPoolExhausted without waiting
// when the backlog is full, and ctx.Err() if the wait is aborted.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	default:
	}

	if p.backlog != nil {
		select {
		case p.backlog <- struct{}{}:
			defer func() { <-p.backlog }()
		default:
			return apperr.ErrWorkerPoolExhausted
		}
	}

	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired worker.
func (p *Pool) Release() {
	<-p.sem
}

// Size returns the number of workers.
func (p *Pool) Size() int { return cap(p.sem) }

// InUse returns the number of workers currently held.
func (p *Pool) InUse() int { return len(p.sem) }

// Waiting returns the number of callers queued in the backlog.
// It is always zero for an unbounded backlog.
func (p *Pool) Waiting() int {
	if p.backlog == nil {
		return 0
	}
	return len(p.backlog)
}
