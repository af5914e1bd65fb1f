package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// TaskPool runs fire-and-forget work. A failing or panicking task is logged
// and never reaches the code that submitted it.
type TaskPool struct {
	ctx    context.Context
	cancel context.CancelFunc
	pool   *pool.Pool
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewTaskPool(logger *slog.Logger) *TaskPool {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskPool{
		ctx:    ctx,
		cancel: cancel,
		pool:   pool.New(),
		logger: logger,
	}
}

// Submit schedules fn. It never blocks. Tasks submitted after Close are
// dropped with a warning.
func (p *TaskPool) Submit(name string, fn func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Warn("task dropped after shutdown", slog.String("task", name))
		return
	}
	p.pool.Go(func() {
		var err error
		var catcher panics.Catcher
		catcher.Try(func() { err = fn(p.ctx) })
		if r := catcher.Recovered(); r != nil {
			err = fmt.Errorf("panic: %v", r.Value)
		}
		if err != nil {
			p.logger.Error("background task failed",
				slog.String("task", name),
				slog.String("error", err.Error()),
			)
		}
	})
}

// Close stops accepting tasks and waits for running ones. When ctx expires
// first, running tasks see their context cancelled.
func (p *TaskPool) Close(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	current := p.pool
	p.pool = pool.New()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		current.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
	p.cancel()
}

// Wait blocks until every task submitted so far has finished. The pool stays
// usable afterwards.
func (p *TaskPool) Wait() {
	p.mu.Lock()
	current := p.pool
	p.pool = pool.New()
	p.mu.Unlock()
	current.Wait()
}
