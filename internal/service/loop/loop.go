// Package loop runs short, non-blocking tasks on a small fixed set of workers.
//
// It is the scheduler of the non-blocking driver: a worker runs one stage of a
// request, the stage starts its I/O and returns, and the stage that follows is
// submitted back here when the response arrives.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const (
	minWorkers = 1
	maxWorkers = 128
)

// Loop is a fixed worker pool fed by a task queue. It implements future.Executor.
type Loop struct {
	workers int
	tasks   chan func()
	log     *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	quit    chan struct{}
	cancel  context.CancelFunc
	g       *errgroup.Group

	busy     atomic.Int64
	executed atomic.Int64
}

// Stats is a snapshot of the loop.
type Stats struct {
	Workers  int   `json:"workers"`
	Busy     int64 `json:"busy"`
	Queued   int   `json:"queued"`
	Executed int64 `json:"executed"`
}

// New creates a loop with workers in [1, 128] and a queue of the given size.
// Workers do not run until Start.
func New(workers, queue int, logger *slog.Logger) *Loop {
	if workers < minWorkers {
		workers = minWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if queue < 0 {
		queue = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		workers: workers,
		tasks:   make(chan func(), queue),
		log:     logger.With("component", "loop"),
		quit:    make(chan struct{}),
	}
}

// Start launches the workers.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("loop is already running")
	}
	if l.stopped {
		return errors.New("loop has been stopped")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < l.workers; i++ {
		id := fmt.Sprintf("loop-%d", i+1)
		g.Go(func() error {
			l.run(ctx, id)
			return nil
		})
	}

	l.g = g
	l.cancel = cancel
	l.running = true
	l.log.Info("loop started", "workers", l.workers, "queue", cap(l.tasks))
	return nil
}

// Stop signals the workers and waits for them to exit or for ctx to end.
// Tasks submitted after Stop run on the submitting goroutine.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.quit)
	if !l.running {
		l.mu.Unlock()
		l.drain()
		return nil
	}
	l.running = false
	cancel, g := l.cancel, l.g
	l.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.drain()
		l.log.Info("loop stopped", "executed", l.executed.Load())
		return nil
	case <-ctx.Done():
		l.log.Warn("timeout waiting for loop workers to stop")
		return ctx.Err()
	}
}

// Submit queues task. It never blocks the caller: when the queue is full the
// hand-off is done by a helper goroutine.
func (l *Loop) Submit(task func()) {
	select {
	case <-l.quit:
		l.exec(task)
		return
	default:
	}

	select {
	case l.tasks <- task:
		l.afterSend()
	default:
		go func() {
			select {
			case l.tasks <- task:
				l.afterSend()
			case <-l.quit:
				l.exec(task)
			}
		}()
	}
}

// afterSend runs the queue if Stop drained it before the send landed.
func (l *Loop) afterSend() {
	select {
	case <-l.quit:
		l.drain()
	default:
	}
}

// Workers returns the number of workers.
func (l *Loop) Workers() int { return l.workers }

// Stats returns a snapshot of worker occupancy.
func (l *Loop) Stats() Stats {
	return Stats{
		Workers:  l.workers,
		Busy:     l.busy.Load(),
		Queued:   len(l.tasks),
		Executed: l.executed.Load(),
	}
}

func (l *Loop) run(ctx context.Context, id string) {
	l.log.Debug("worker started", "worker", id)
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("worker stopping", "worker", id)
			return
		case task := <-l.tasks:
			l.exec(task)
		}
	}
}

// drain runs whatever was queued when the workers exited, so no pending
// continuation is lost.
func (l *Loop) drain() {
	for {
		select {
		case task := <-l.tasks:
			l.exec(task)
		default:
			return
		}
	}
}

func (l *Loop) exec(task func()) {
	l.busy.Add(1)
	defer func() {
		l.busy.Add(-1)
		l.executed.Add(1)
		if r := recover(); r != nil {
			l.log.Error("task panicked", "panic", r)
		}
	}()
	task()
}
