package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Runner executes a single job to completion.
type Runner interface {
	Run(ctx context.Context, id string, in Input) error
}

// Dispatcher runs jobs in the background. Dispatch never blocks the caller;
// at most `workers` jobs execute concurrently and the rest wait their turn.
type Dispatcher struct {
	runner Runner
	slots  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running map[string]context.CancelFunc
}

// NewDispatcher creates a dispatcher with the given concurrency limit.
func NewDispatcher(runner Runner, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner:  runner,
		slots:   make(chan struct{}, workers),
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]context.CancelFunc),
	}
}

// Dispatch starts job id in the background and returns immediately.
func (d *Dispatcher) Dispatch(id string, in Input) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	ctx, cancel := context.WithCancel(d.ctx)
	d.running[id] = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer d.release(id, cancel)

		select {
		case d.slots <- struct{}{}:
			defer func() { <-d.slots }()
		case <-ctx.Done():
			// Cancelled while waiting; the runner records it.
		}

		if err := d.runner.Run(ctx, id, in); err != nil {
			slog.Debug("dispatcher: job ended with error", "job", id, "error", err)
		}
	}()
	return nil
}

func (d *Dispatcher) release(id string, cancel context.CancelFunc) {
	cancel()
	d.mu.Lock()
	delete(d.running, id)
	d.mu.Unlock()
}

// Cancel signals job id to stop. It reports false if the job is not running.
func (d *Dispatcher) Cancel(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cancel, ok := d.running[id]
	if ok {
		cancel()
	}
	return ok
}

// Running returns the number of jobs dispatched and not yet finished.
func (d *Dispatcher) Running() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.running)
}

// Shutdown stops accepting jobs, cancels in-flight ones and waits for them
// to record their final state or for ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
